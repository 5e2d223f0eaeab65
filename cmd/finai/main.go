package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finai/internal/advisor"
	"finai/internal/analytics"
	"finai/internal/config"
	"finai/internal/export/sheets"
	apphttp "finai/internal/http"
	applog "finai/internal/log"
	"finai/internal/notify"
	"finai/internal/services"
	"finai/internal/storage"
	"finai/internal/storage/postgres"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx := context.Background()

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
	logger.Info("Store initialized", applog.FieldBackend, cfg.DataBackend)

	an := analytics.New(store, store, store)

	var gen advisor.TextGenerator
	if cfg.AnthropicAPIKey != "" {
		gen = advisor.NewAnthropicGenerator(cfg.AnthropicAPIKey, cfg.AIModel)
		logger.Info("AI advisor enabled", "model", cfg.AIModel)
	} else {
		logger.Info("AI advisor running in fallback mode - no ANTHROPIC_API_KEY provided")
	}
	adv := advisor.New(gen, an, store, store, store, int64(cfg.AIMaxTokens))

	var mirror services.TxMirror
	if cfg.SheetsEnabled() {
		cli, err := sheets.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets mirror", applog.FieldError, err)
			os.Exit(1)
		}
		mirror = cli
		logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.SpreadsheetID)
	}

	var alerts services.AlertPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		alerts = amqpClient
		logger.Info("Budget alert queue enabled", "queue", cfg.AMQPQueue)
	}

	txs := services.NewTransactionService(store, mirror, alerts)

	srv := apphttp.NewServer(":"+cfg.Port, store, an, adv, txs)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting finai server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-runCtx.Done()
	logger.Info("Server stopped gracefully")
}
