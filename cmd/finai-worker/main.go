// finai-worker consumes queued budget alerts and hands them off to the
// owner's registered web-push endpoints.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finai/internal/config"
	applog "finai/internal/log"
	"finai/internal/notify"
	"finai/internal/storage"
	"finai/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentNotify)
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store storage.Store
	switch cfg.DataBackend {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("Failed to initialize Postgres store", applog.FieldError, err)
			os.Exit(1)
		}
		store = pg
	default:
		sq, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		store = sq
	}
	defer store.Close()

	amqpClient, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	handler := func(msg *notify.BudgetAlertMessage) error {
		subs, err := store.ListPushSubscriptions(ctx, msg.OwnerID)
		if err != nil {
			return err
		}
		if len(subs) == 0 {
			logger.Info("No push subscriptions for owner, dropping alerts",
				applog.FieldOwnerID, msg.OwnerID, "alerts", msg.Count)
			return nil
		}
		for _, sub := range subs {
			logger.Info("Delivering budget alerts",
				applog.FieldOwnerID, msg.OwnerID,
				"endpoint", sub.Endpoint,
				"alerts", msg.Count)
		}
		return nil
	}

	logger.Info("Starting finai-worker", "queue", cfg.AMQPQueue)
	if err := amqpClient.ConsumeBudgetAlerts(ctx, handler); err != nil && err != context.Canceled {
		logger.Error("Alert consumption failed", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
