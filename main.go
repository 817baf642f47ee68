package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cararth-ingest/config"
	"cararth-ingest/fetch"
	"cararth-ingest/metrics"
	"cararth-ingest/scraper"
	"cararth-ingest/scraper/dealer"
	"cararth-ingest/services"
	"cararth-ingest/storage"
	"cararth-ingest/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Cararth Ingestion Pipeline starting ===")
	logger.Info("Config — city: %s | pages: %d | concurrency: %d | rate: %dms | retries: %d",
		cfg.City, cfg.MaxPages, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.MaxRetries)

	metrics.Register()
	metrics.Serve(cfg.MetricsAddr)

	pgWriter, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer pgWriter.Close()

	rejectedCSV, err := storage.NewCSVWriter(cfg.RejectedCSVPath)
	if err != nil {
		logger.Error("Failed to create rejected-listings CSV: %v", err)
		os.Exit(1)
	}
	defer rejectedCSV.Close()

	imageStore, err := storage.NewLocalImageStore(cfg.ImageStoreDir)
	if err != nil {
		logger.Error("Failed to create image store: %v", err)
		os.Exit(1)
	}

	fetcher := fetch.NewResilient(fetch.Options{
		Timeout:         time.Duration(cfg.FetchTimeoutMs) * time.Millisecond,
		MaxAttempts:     cfg.MaxRetries,
		BaseDelay:       2 * time.Second,
		BreakerTrip:     uint32(cfg.BreakerTrip),
		BreakerCooldown: time.Duration(cfg.BreakerCoolSec) * time.Second,
	}, logger)

	trust := services.NewTrustLayer(services.DefaultTrustPolicy(), logger)

	var adapters []*dealer.Adapter
	for _, src := range config.Sources() {
		gate := services.NewImageGate(fetcher, imageStore, logger, src.MaxImages)
		adapter, err := dealer.NewAdapter(src, fetcher, gate, trust, pgWriter, rejectedCSV, logger, cfg.RateLimit())
		if err != nil {
			// A bad source config aborts that source only.
			logger.Error("Skipping source: %v", err)
			continue
		}
		adapters = append(adapters, adapter)
	}
	if len(adapters) == 0 {
		logger.Error("No usable source configs. Exiting.")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := scraper.NewRunner(adapters, logger, cfg.MaxConcurrency)
	report := runner.Run(ctx, cfg.City, cfg.MaxPages)

	certified, err := pgWriter.FetchCertified()
	if err != nil {
		logger.Warn("Could not load certified listings for the report: %v", err)
	}

	services.NewReportService(logger).Print(report, certified)

	// Partial failures are reported, not fatal; only an inability to
	// start the run at all exits nonzero.
	if report.TotalErrors() > 0 {
		logger.Warn("Run completed with %d processing errors (see report)", report.TotalErrors())
	}
}
