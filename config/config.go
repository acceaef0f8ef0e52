package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config/config.yml"

	defaultDataURL          = "https://fc-data.ssi.com.vn/"
	defaultDataStreamURL    = "https://fc-datahub.ssi.com.vn/"
	defaultTradingURL       = "https://fc-tradeapi.ssi.com.vn/"
	defaultTradingStreamURL = "https://fc-tradehub.ssi.com.vn/"
	defaultPaperURL         = "https://iboard-tapi.ssi.com.vn"
)

type Config struct {
	SSIFlow  SSIFlowConfig  `yaml:"ssiflow"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Channels ChannelsConfig `yaml:"channels"`
	Data     DataConfig     `yaml:"data"`
	Trading  TradingConfig  `yaml:"trading"`
}

type SSIFlowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch     CloudWatchConfig `yaml:"cloudwatch"`
	ReportInterval time.Duration    `yaml:"report_interval"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type ChannelsConfig struct {
	RawBuffer int `yaml:"raw_buffer"`
}

// DataConfig configures the market data gateway: REST endpoint, streaming hub
// and the explicit symbol/index subscription lists per channel.
type DataConfig struct {
	ConsumerID     string   `yaml:"consumer_id"`
	ConsumerSecret string   `yaml:"consumer_secret"`
	URL            string   `yaml:"url"`
	StreamURL      string   `yaml:"stream_url"`
	MarketSymbols  []string `yaml:"market_symbols"`
	BarSymbols     []string `yaml:"bar_symbols"`
	IndexNames     []string `yaml:"index_names"`
	ForeignSymbols []string `yaml:"foreign_symbols"`
}

type TradingConfig struct {
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Accounts  []AccountConfig `yaml:"accounts"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type AccountConfig struct {
	AccountID      string `yaml:"account_id"`
	Market         string `yaml:"market"`
	ConsumerID     string `yaml:"consumer_id"`
	ConsumerSecret string `yaml:"consumer_secret"`
	URL            string `yaml:"url"`
	StreamURL      string `yaml:"stream_url"`
	PaperTrading   bool   `yaml:"paper_trading"`
	AuthToken      string `yaml:"auth_token"`
	TwoFAType      int    `yaml:"two_fa_type"`
	NotifyID       int    `yaml:"notify_id"`
}

// DataServiceConfig is the resolved credential/endpoint set handed to the
// data stream and historical data clients. SessionID is an opaque identifier
// issued at load time so credential material never participates in map keys
// or equality checks.
type DataServiceConfig struct {
	SessionID      string
	ConsumerID     string
	ConsumerSecret string
	URL            string
	StreamURL      string
}

// TradingServiceConfig is the resolved configuration of one trading account
// session. The (AccountID, Market) pair is the routing identity.
type TradingServiceConfig struct {
	SessionID      string
	AccountID      string
	Market         string
	ConsumerID     string
	ConsumerSecret string
	URL            string
	StreamURL      string
	PaperTrading   bool
	PaperURL       string
	AuthToken      string
	TwoFAType      int
	NotifyID       int
}

// DataService resolves the data gateway configuration with defaults applied
// and a fresh session id.
func (c *Config) DataService() DataServiceConfig {
	d := DataServiceConfig{
		SessionID:      uuid.NewString(),
		ConsumerID:     c.Data.ConsumerID,
		ConsumerSecret: c.Data.ConsumerSecret,
		URL:            c.Data.URL,
		StreamURL:      c.Data.StreamURL,
	}
	if d.URL == "" {
		d.URL = defaultDataURL
	}
	if d.StreamURL == "" {
		d.StreamURL = defaultDataStreamURL
	}
	return d
}

// TradingServices resolves one TradingServiceConfig per configured account.
func (c *Config) TradingServices() []TradingServiceConfig {
	out := make([]TradingServiceConfig, 0, len(c.Trading.Accounts))
	for _, a := range c.Trading.Accounts {
		t := TradingServiceConfig{
			SessionID:      uuid.NewString(),
			AccountID:      strings.ToUpper(a.AccountID),
			Market:         a.Market,
			ConsumerID:     a.ConsumerID,
			ConsumerSecret: a.ConsumerSecret,
			URL:            a.URL,
			StreamURL:      a.StreamURL,
			PaperTrading:   a.PaperTrading,
			PaperURL:       defaultPaperURL,
			AuthToken:      a.AuthToken,
			TwoFAType:      a.TwoFAType,
			NotifyID:       a.NotifyID,
		}
		if t.URL == "" {
			t.URL = defaultTradingURL
		}
		if t.StreamURL == "" {
			t.StreamURL = defaultTradingStreamURL
		}
		if t.Market == "" {
			t.Market = "VNFE"
		}
		out = append(out, t)
	}
	return out
}

func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, defaultConfigPath, map[string]string{
		environmentProduction: "config/config.production.yml",
		environmentStaging:    "config/config.staging.yml",
	})

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{
			ReportInterval: 30 * time.Second,
		},
		Trading: TradingConfig{
			Timeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override credentials from environment variables if available
	if v := os.Getenv("SSI_DATA_CONSUMER_ID"); v != "" {
		config.Data.ConsumerID = strings.TrimSpace(v)
	}
	if v := os.Getenv("SSI_DATA_CONSUMER_SECRET"); v != "" {
		config.Data.ConsumerSecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("SSI_TRADING_CONSUMER_ID"); v != "" {
		for i := range config.Trading.Accounts {
			if config.Trading.Accounts[i].ConsumerID == "" {
				config.Trading.Accounts[i].ConsumerID = strings.TrimSpace(v)
			}
		}
	}
	if v := os.Getenv("SSI_TRADING_CONSUMER_SECRET"); v != "" {
		for i := range config.Trading.Accounts {
			if config.Trading.Accounts[i].ConsumerSecret == "" {
				config.Trading.Accounts[i].ConsumerSecret = strings.TrimSpace(v)
			}
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.SSIFlow.Name == "" {
		return fmt.Errorf("ssiflow.name is required")
	}

	if cfg.SSIFlow.Version == "" {
		return fmt.Errorf("ssiflow.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}

	if cfg.Trading.Timeout <= 0 {
		return fmt.Errorf("trading.timeout must be greater than 0")
	}

	strict := IsProductionLike(AppEnvironment())
	if strict && (cfg.Data.ConsumerID == "" || cfg.Data.ConsumerSecret == "") {
		return fmt.Errorf("data credentials are required in %s", AppEnvironment())
	}

	seen := make(map[string]struct{}, len(cfg.Trading.Accounts))
	for i, a := range cfg.Trading.Accounts {
		if a.AccountID == "" {
			return fmt.Errorf("trading.accounts[%d].account_id is required", i)
		}
		if strict && !a.PaperTrading && (a.ConsumerID == "" || a.ConsumerSecret == "") {
			return fmt.Errorf("trading.accounts[%d]: credentials are required in %s", i, AppEnvironment())
		}
		if strict && a.PaperTrading && a.AuthToken == "" {
			return fmt.Errorf("trading.accounts[%d]: auth_token is required in %s", i, AppEnvironment())
		}
		id := strings.ToUpper(a.AccountID)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("trading.accounts: duplicate account_id %q", a.AccountID)
		}
		seen[id] = struct{}{}
	}

	for _, name := range append(append(append(append([]string{},
		cfg.Data.MarketSymbols...), cfg.Data.BarSymbols...),
		cfg.Data.IndexNames...), cfg.Data.ForeignSymbols...) {
		if name == "ALL" {
			return fmt.Errorf("data: subscription lists must enumerate symbols explicitly, %q is reserved", name)
		}
	}

	return nil
}
