package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"teamkasse/internal/amqp"
	"teamkasse/internal/config"
	"teamkasse/internal/export"
	gsheet "teamkasse/internal/export/google"
	"teamkasse/internal/ledger"
	applog "teamkasse/internal/log"
	"teamkasse/internal/services"
	"teamkasse/internal/storage"
	"teamkasse/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup("worker")
	logger.Info("Starting kasse-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Snapshot export is optional and off unless configured.
	var exporter export.SnapshotExporter
	if cfg.SheetsExportEnabled() {
		client, err := gsheet.New(context.Background(), cfg)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Snapshot export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Snapshot export disabled - no spreadsheet configured")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	balances := services.NewBalanceService(repo, nil, ledger.Options{
		LegacyCreditFallback: cfg.LegacyCreditFallback,
	})
	balanceWorker := worker.NewBalanceWorker(balances, exporter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := amqpClient.ConsumeBalanceRecalc(ctx, balanceWorker.HandleRecalcMessage); err != nil {
			if err != context.Canceled {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Periodic full recompute covers lost messages and drift.
	go balanceWorker.RunPeriodic(ctx, cfg.RecalcInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight recalcs a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
