// Package main provides the API server entry point for the treasury tracker service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/treasury-tracker/internal/api"
	"github.com/treasury-tracker/internal/coingecko"
	"github.com/treasury-tracker/internal/config"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/service"
	"github.com/treasury-tracker/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize the snapshot store
	var store storage.SnapshotStore
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		store = storage.NewPostgresStore(postgres)
		logger.Info("Using Postgres snapshot store")

	default:
		fileStore, err := storage.NewFileStore(cfg.Store.FilePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open snapshot file store")
		}
		defer fileStore.Close()
		store = fileStore
		logger.WithField("path", cfg.Store.FilePath).Info("Using file snapshot store")
	}

	// Optional Redis price cache
	var priceCache *storage.PriceCache
	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redis.Close()
		priceCache = storage.NewPriceCache(redis, cfg.PriceCache.TTL)
		logger.Info("Price cache enabled")
	}

	// Optional ClickHouse holdings history sink
	var historyRepo *storage.HistoryRepository
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := clickhouse.EnsureSchema(ctx); err != nil {
			cancel()
			logger.WithError(err).Fatal("Failed to ensure ClickHouse schema")
		}
		cancel()

		historyRepo = storage.NewHistoryRepository(clickhouse)
		logger.Info("Holdings history sink enabled")
	}

	// Upstream client
	client := coingecko.NewClient(
		cfg.CoinGecko.APIKey,
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithTimeout(cfg.CoinGecko.RequestTimeout),
		coingecko.WithRequestsPerSecond(cfg.CoinGecko.RequestsPerSecond),
	)

	// Initialize services
	var historySink service.HistorySink
	var historySource service.HistorySource
	if historyRepo != nil {
		historySink = historyRepo
		historySource = historyRepo
	}

	captureService := service.NewCaptureService(client, store, priceCache, historySink, cfg.Capture)
	dashboardService := service.NewDashboardService(store, historySource)

	logger.Info("Services initialized")

	// Optional interval capture scheduler
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	if cfg.Capture.Interval > 0 {
		if err := captureService.Start(schedulerCtx); err != nil {
			logger.WithError(err).Fatal("Failed to start capture scheduler")
		}
		defer captureService.Stop()
	}

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: float64(cfg.RateLimit.RequestsPerSecond),
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, captureService, dashboardService)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
