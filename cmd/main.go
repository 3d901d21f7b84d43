package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blockchain-explorer/internal/config"
	"blockchain-explorer/internal/database"
	"blockchain-explorer/internal/emitters"
	"blockchain-explorer/internal/events"
	"blockchain-explorer/internal/explorer"
	"blockchain-explorer/internal/fetchers"
	"blockchain-explorer/internal/logger"
	"blockchain-explorer/internal/normalize"
	"blockchain-explorer/internal/rest"
	"blockchain-explorer/internal/scheduler"
	"blockchain-explorer/internal/server"
	"blockchain-explorer/internal/store"
	"blockchain-explorer/internal/syncer"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error().Interface("panic", r).Msg("Application panicked, recovering")
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger().Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Display.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load display time zone")
	}

	client := rest.NewClient(cfg.API.BaseURL, cfg.API.ApiKey, cfg.API.RateLimit, cfg.API.MaxRetries,
		cfg.API.RetryDelay, cfg.HTTP.Timeout, logger.Component("rest"))
	defer client.Close()

	normalizer := normalize.New(loc, logger.Component("normalize"))
	pages := fetchers.NewPageFetcher(client, normalizer, logger.Component("fetcher"))
	stats := fetchers.NewStatsFetcher(client, logger.Component("fetcher"))
	wallets := fetchers.NewWalletFetcher(client, normalizer, logger.Component("fetcher"))

	emitter := &events.LogEmitter{Logger: logger.Component("events")}
	fanout := &events.FanoutEmitter{}
	emitter.WrappedEmitter = fanout

	if cfg.Kafka.Enabled() {
		kafkaEmitter := emitters.NewKafkaEmitter(cfg.Kafka.BrokerAddress, cfg.Kafka.Topic, logger.Component("kafka"))
		defer func() {
			if err := kafkaEmitter.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close Kafka writer")
			}
		}()
		fanout.Add(kafkaEmitter)
	}

	if cfg.Database.Enabled() {
		if err := database.InitDB(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer database.Close()

		if err := database.RunMigrations(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("Failed to run migrations")
		}
		fanout.Add(database.ArchiveEmitter{})
	}

	st := store.New()
	engine := syncer.NewEngine(syncer.Config{
		PageSize:        cfg.Sync.PageSize,
		MaxPages:        cfg.Sync.MaxPages,
		DisplayPageSize: cfg.Sync.DisplayPageSize,
		Network:         cfg.NetworkName(),
		ExplorerBaseURL: cfg.Display.ExplorerBaseURL,
	}, pages, st, emitter, logger.Component("syncer"))

	ex := explorer.New(explorer.Config{
		PageSize:        cfg.Sync.DisplayPageSize,
		AddressHRPs:     cfg.Wallet.HRPs,
		ExplorerBaseURL: cfg.Display.ExplorerBaseURL,
	}, st, wallets, logger.Component("explorer"))

	sched := scheduler.New(scheduler.Config{Interval: cfg.Sync.RefreshInterval},
		engine, stats, wallets, ex, logger.Component("scheduler"))
	ex.SetRefresher(sched)

	hub := server.NewHub(cfg.Server.AllowedOrigins, logger.Component("ws"))
	ex.Subscribe(func(s explorer.Summary) { hub.Broadcast(s) })

	router := server.NewRouter(logger.Component("http"), server.RouterDependencies{
		API:            server.NewAPIHandlers(ex, logger.Component("api")),
		Hub:            hub,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	srv := server.New(cfg.Server.Addr, router, log)

	connectStartupWallet(ctx, ex, cfg.Wallet.Address)

	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start refresh scheduler")
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	log.Info().
		Str("network", cfg.Network).
		Str("api", cfg.API.BaseURL).
		Dur("interval", cfg.Sync.RefreshInterval).
		Msg("Explorer running")

	<-ctx.Done()

	sched.Stop()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
}
