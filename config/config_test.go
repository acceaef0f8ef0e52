package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for
// LoadConfig and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	return f.Name()
}

const minimalYAML = `ssiflow:
  name: "TestApp"
  version: "1.0"
channels:
  raw_buffer: 16
data:
  consumer_id: "cid"
  consumer_secret: "secret"
  market_symbols: ["VN30F2407"]
  index_names: ["VN30"]
trading:
  accounts:
  - account_id: "0901358"
    market: "VNFE"
    consumer_id: "cid"
    consumer_secret: "secret"
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.SSIFlow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.SSIFlow.Name)
	}
	if cfg.Channels.RawBuffer != 16 {
		t.Errorf("unexpected raw buffer: %d", cfg.Channels.RawBuffer)
	}
	// defaults applied when omitted
	if cfg.Trading.Timeout != 10*time.Second {
		t.Errorf("unexpected trading timeout: %v", cfg.Trading.Timeout)
	}
	if cfg.Metrics.ReportInterval != 30*time.Second {
		t.Errorf("unexpected report interval: %v", cfg.Metrics.ReportInterval)
	}
}

func TestLoadConfigReservedSymbol(t *testing.T) {
	content := strings.Replace(minimalYAML, `["VN30F2407"]`, `["ALL"]`, 1)
	if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
		t.Fatal("expected error for reserved symbol ALL")
	}
}

func TestLoadConfigDuplicateAccount(t *testing.T) {
	content := minimalYAML + `  - account_id: "0901358"
    market: "VNFE"
`
	if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
		t.Fatal("expected error for duplicate account id")
	}
}

func TestDataServiceDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	d := cfg.DataService()
	if d.URL == "" || d.StreamURL == "" {
		t.Fatalf("expected default endpoints, got %+v", d)
	}
	if d.SessionID == "" {
		t.Fatal("expected session id to be issued at load time")
	}
	// session ids are opaque and unique per resolution
	if cfg.DataService().SessionID == d.SessionID {
		t.Fatal("expected fresh session id per resolution")
	}
}

func TestTradingServices(t *testing.T) {
	cfg, err := LoadConfig(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	svcs := cfg.TradingServices()
	if len(svcs) != 1 {
		t.Fatalf("expected 1 trading service, got %d", len(svcs))
	}
	s := svcs[0]
	if s.AccountID != "0901358" || s.Market != "VNFE" {
		t.Fatalf("unexpected routing identity: %+v", s)
	}
	if s.URL == "" || s.SessionID == "" {
		t.Fatalf("defaults not applied: %+v", s)
	}
}

func TestProductionRequiresCredentials(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	content := `ssiflow:
  name: "TestApp"
  version: "1.0"
channels:
  raw_buffer: 16
data:
  market_symbols: ["VN30F2407"]
trading:
  accounts:
  - account_id: "0901358"
    market: "VNFE"
`
	if _, err := LoadConfig(writeTempConfig(t, content)); err == nil {
		t.Fatal("expected error for missing credentials in production")
	}

	// development keeps the permissive behaviour
	t.Setenv("APP_ENV", "development")
	if _, err := LoadConfig(writeTempConfig(t, content)); err != nil {
		t.Fatalf("LoadConfig in development: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SSI_DATA_CONSUMER_SECRET", "env-secret")
	cfg, err := LoadConfig(writeTempConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Data.ConsumerSecret != "env-secret" {
		t.Fatalf("env override not applied: %q", cfg.Data.ConsumerSecret)
	}
}
