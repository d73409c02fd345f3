package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kanakku/internal/cache"
	"kanakku/internal/config"
	"kanakku/internal/events"
	apphttp "kanakku/internal/http"
	"kanakku/internal/extract"
	applog "kanakku/internal/log"
	"kanakku/internal/services"
	"kanakku/internal/storage"
	"kanakku/internal/tabular"
	gsheet "kanakku/internal/tabular/google"
	mem "kanakku/internal/tabular/memory"
	"kanakku/internal/tabular/sqlite"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if closeStore != nil {
		defer closeStore()
	}
	logger.Info("Initialized data backend", "backend", cfg.DataBackend)

	if err := storage.Migrate(ctx, store); err != nil {
		logger.Error("Failed to migrate sheets", "error", err)
		os.Exit(1)
	}

	var publisher *events.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = events.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to connect to AMQP, events disabled", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
			logger.Info("Connected event publisher", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	memo := cache.NewLRUCache[services.Summary](cfg.CacheMaxSize, cfg.CacheTTL)
	cacheMgr := cache.NewManager()
	cacheMgr.Register(memo)
	cacheMgr.StartCleanup(10 * time.Minute)
	defer cacheMgr.Stop()

	repos := storage.New(store)
	svcs := services.New(repos, publisher, memo)

	var parser extract.Parser
	switch cfg.ExtractEngine {
	case "openai":
		parser = extract.NewOpenAIParser(cfg.ExtractBaseURL, cfg.ExtractAPIKey, cfg.ExtractModel, cfg.ExtractTimeout)
	default:
		parser = extract.MockParser{}
	}

	srv := apphttp.NewServer(":"+cfg.Port, svcs, repos, parser, cfg.DefaultCurrency)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kanakku server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

func openStore(ctx context.Context, cfg *config.Config) (tabular.Store, func() error, error) {
	switch cfg.DataBackend {
	case "sheets":
		cli, err := gsheet.NewFromEnv(ctx)
		if err != nil {
			return nil, nil, err
		}
		return cli, nil, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLiteDBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return mem.New(), nil, nil
	}
}
