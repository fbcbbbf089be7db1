// Package main provides a CLI tool for one-shot snapshot captures.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/treasury-tracker/internal/coingecko"
	"github.com/treasury-tracker/internal/config"
	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/service"
	"github.com/treasury-tracker/internal/storage"
	"github.com/treasury-tracker/internal/types"
)

func main() {
	var (
		asset   = flag.String("asset", "", "Capture a single asset (e.g. bitcoin); empty captures all configured assets")
		merged  = flag.Bool("merged", false, "Capture the combined BTC+ETH table instead")
		timeout = flag.Duration("timeout", 2*time.Minute, "Overall capture timeout")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.GetGlobalLogger().WithError(err).Fatal("Failed to load configuration")
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	if *asset != "" && *merged {
		logger.Fatal("-asset and -merged are mutually exclusive")
	}

	var store storage.SnapshotStore
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Postgres")
		}
		defer postgres.Close()
		store = storage.NewPostgresStore(postgres)

	default:
		fileStore, err := storage.NewFileStore(cfg.Store.FilePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open snapshot file store")
		}
		defer fileStore.Close()
		store = fileStore
	}

	var priceCache *storage.PriceCache
	if cfg.Database.Redis.Enabled {
		redis, err := storage.NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, capturing without price cache")
		} else {
			defer redis.Close()
			priceCache = storage.NewPriceCache(redis, cfg.PriceCache.TTL)
		}
	}

	var historySink service.HistorySink
	if cfg.Database.ClickHouse.Enabled {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Warn("ClickHouse unavailable, capturing without history sink")
		} else {
			defer clickhouse.Close()
			historySink = storage.NewHistoryRepository(clickhouse)
		}
	}

	client := coingecko.NewClient(
		cfg.CoinGecko.APIKey,
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithTimeout(cfg.CoinGecko.RequestTimeout),
		coingecko.WithRequestsPerSecond(cfg.CoinGecko.RequestsPerSecond),
	)

	captureService := service.NewCaptureService(client, store, priceCache, historySink, cfg.Capture)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *merged:
		snap, err := captureService.CaptureMerged(ctx)
		if err != nil {
			logger.WithError(err).Fatal("Merged capture failed")
		}
		logger.WithFields(map[string]interface{}{
			"snapshotId": snap.ID,
			"companies":  len(snap.Data),
		}).Info("Merged capture complete")

	case *asset != "":
		snap, err := captureService.CaptureAsset(ctx, types.AssetID(*asset))
		if err != nil {
			logger.WithError(err).Fatal("Capture failed")
		}
		if snap == nil {
			logger.WithField("asset", *asset).Warn("Nothing captured: upstream table was empty")
			return
		}
		logger.WithFields(map[string]interface{}{
			"snapshotId": snap.ID,
			"companies":  len(snap.Data),
		}).Info("Capture complete")

	default:
		result, err := captureService.CaptureAll(ctx)
		if err != nil {
			// Only store failures abort a run; exit non-zero so cron notices
			logger.WithError(err).Error("Capture run aborted")
			os.Exit(1)
		}
		logger.WithFields(map[string]interface{}{
			"captured": len(result.Captured),
			"skipped":  len(result.Skipped),
			"failed":   len(result.Failed),
		}).Info("Capture run complete")
	}
}
