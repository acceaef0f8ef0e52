package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ssiflow/config"
	"ssiflow/internal/channel"
	"ssiflow/logger"
	"ssiflow/marketdata"
	"ssiflow/router"
	"ssiflow/store"
	"ssiflow/stream"
	"ssiflow/trading"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.SSIFlow.Name,
		"version": cfg.SSIFlow.Version,
	}).Info("starting ssiflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}
	logger.StartReport(ctx, log, cfg.Metrics.ReportInterval)

	dataCfg := cfg.DataService()
	metrics := store.NewMetrics()

	services := router.NewServices()
	services.AddDataService(marketdata.NewService(dataCfg, cfg.Trading.Timeout))

	allChannels := make([]*channel.Channels, 0, 4)
	newChannels := func() *channel.Channels {
		c := channel.NewChannels(cfg.Channels.RawBuffer)
		allChannels = append(allChannels, c)
		return c
	}

	if len(cfg.Data.MarketSymbols) > 0 {
		adapter, err := stream.NewMarketAdapter(dataCfg, cfg.Data.MarketSymbols, newChannels(), metrics)
		if err != nil {
			log.WithError(err).Error("failed to build market stream")
			os.Exit(1)
		}
		services.AddDataStream(adapter)
	}
	if len(cfg.Data.BarSymbols) > 0 {
		adapter, err := stream.NewBarAdapter(dataCfg, cfg.Data.BarSymbols, newChannels(), metrics)
		if err != nil {
			log.WithError(err).Error("failed to build bar stream")
			os.Exit(1)
		}
		services.AddDataStream(adapter)
	}
	if len(cfg.Data.IndexNames) > 0 {
		adapter, err := stream.NewIndexAdapter(dataCfg, cfg.Data.IndexNames, newChannels(), metrics)
		if err != nil {
			log.WithError(err).Error("failed to build index stream")
			os.Exit(1)
		}
		services.AddDataStream(adapter)
	}
	if len(cfg.Data.ForeignSymbols) > 0 {
		adapter, err := stream.NewForeignRoomAdapter(dataCfg, cfg.Data.ForeignSymbols, newChannels(), metrics)
		if err != nil {
			log.WithError(err).Error("failed to build foreign room stream")
			os.Exit(1)
		}
		services.AddDataStream(adapter)
	}

	for _, accountCfg := range cfg.TradingServices() {
		var session trading.Service
		if accountCfg.PaperTrading {
			session = trading.NewPaperSession(accountCfg, cfg.Trading)
		} else {
			session = trading.NewSession(accountCfg, cfg.Trading)
		}
		services.AddTradingService(session)
		if !accountCfg.PaperTrading {
			services.AddTradingStream(stream.NewTradingStream(accountCfg))
		}
		log.WithFields(logger.Fields{
			"account": accountCfg.AccountID,
			"market":  accountCfg.Market,
			"paper":   accountCfg.PaperTrading,
		}).Info("trading session registered")
	}

	if err := services.StartDataStreams(ctx); err != nil {
		log.WithError(err).Error("failed to start data streams")
		os.Exit(1)
	}
	if err := services.StartTradingStreams(ctx); err != nil {
		log.WithError(err).Error("failed to start trading streams")
		os.Exit(1)
	}

	// A stream that dies stays dead; resubscription needs operator attention,
	// so surface it loudly and keep the rest of the service running.
	for _, ds := range services.DataStreams() {
		go func(ds router.DataStream) {
			select {
			case err := <-ds.Fatal():
				log.WithFields(logger.Fields{
					"channel": string(ds.Channel()),
				}).WithError(err).Error("data stream failed")
			case <-ctx.Done():
			}
		}(ds)
	}
	for _, ts := range services.TradingStreams() {
		go func(ts router.TradingStream) {
			select {
			case err := <-ts.Fatal():
				log.WithFields(logger.Fields{
					"account": ts.AccountID(),
				}).WithError(err).Error("trading stream failed")
			case <-ctx.Done():
			}
		}(ts)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		services.StopDataStreams()
		services.StopTradingStreams()
		for _, c := range allChannels {
			c.Close()
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("ssiflow stopped")
}
