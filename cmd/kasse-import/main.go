package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"

	"teamkasse/internal/amqp"
	"teamkasse/internal/config"
	"teamkasse/internal/ledger"
	applog "teamkasse/internal/log"
	"teamkasse/internal/services"
	"teamkasse/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.Setup("import")

	file := flag.String("file", "", "path to the punishment CSV export")
	flag.Parse()
	if *file == "" {
		logger.Error("Missing required -file flag")
		flag.Usage()
		os.Exit(2)
	}

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

	// Without AMQP the import recalculates balances itself before exiting.
	var publisher services.RecalcPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, will recalculate balances locally", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.Error("Failed to open import file", "error", err, "file", *file)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	imports := services.NewImportService(repo, publisher)
	res, err := imports.ImportPunishments(ctx, f)
	if err != nil {
		logger.Error("Import failed", "error", err, "file", *file)
		os.Exit(1)
	}

	logger.Info("Import finished",
		"file", *file,
		"players", len(res.Players),
		"payments", len(res.Payments),
		"fines", len(res.Fines),
		"skipped", res.Skipped)

	if publisher == nil {
		balances := services.NewBalanceService(repo, nil, ledger.Options{
			LegacyCreditFallback: cfg.LegacyCreditFallback,
		})
		updated, err := balances.UpdatePlayersWithCalculatedBalances(ctx)
		if err != nil {
			logger.Error("Local balance recalc failed", "error", err)
			os.Exit(1)
		}
		logger.Info("Balances recalculated locally", "updated", updated)
	}
}
