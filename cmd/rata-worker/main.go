package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"rata/internal/amqp"
	"rata/internal/config"
	"rata/internal/services"
	"rata/internal/storage"
)

// rata-worker runs the due-check scheduler without the API server, for
// deployments where the API and the execution loop scale separately.
func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting rata-worker")

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

	var events services.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			defer amqpClient.Close()
			events = amqpClient
			logger.Info("AMQP client initialized - ledger entries will sync downstream")
		}
	} else {
		logger.Info("AMQP disabled - ledger entries stay local")
	}

	ledger := services.NewLedgerService(repo, events)
	executor := services.NewExecutor(repo, ledger, nil)
	scheduler := services.NewScheduler(repo, executor, cfg.Owner, cfg.ScanInterval, nil)

	logger.Info("Due-check scheduler configured",
		"interval", cfg.ScanInterval,
		"owner", cfg.Owner,
		"sqlite_db", cfg.SQLiteDBPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("Rata-worker shutdown complete")
}
