package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"kakeibo/internal/amqp"
	"kakeibo/internal/budget"
	"kakeibo/internal/config"
	googleexport "kakeibo/internal/export/google"
	"kakeibo/internal/storage"
	"kakeibo/internal/storage/memory"
	"kakeibo/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the event worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store budget.Store
	switch cfg.DataBackend {
	case "sqlite":
		sqlRepo, err := storage.NewSQLRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer sqlRepo.Close()
		store = sqlRepo
		logger.Info("Initialized sqlite backend", "path", cfg.SQLiteDBPath)
	default:
		store = memory.New()
		logger.Info("Initialized memory backend")
	}

	// Spreadsheet export is optional: without it, the worker only rebuilds
	// timelines and logs forecast warnings.
	var exporter worker.TimelineExporter
	if cfg.ExportEnabled() {
		creds, err := googleexport.LoadCredentials(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
		if err != nil {
			logger.Error("Failed to load Google credentials", "error", err)
			os.Exit(1)
		}
		exp, err := googleexport.NewExporter(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, creds)
		if err != nil {
			logger.Error("Failed to initialize spreadsheet exporter", "error", err)
			os.Exit(1)
		}
		exporter = exp
		logger.Info("Spreadsheet export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Spreadsheet export disabled")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewEventWorker(store, exporter, cfg.ForecastMonths)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeEvents(gctx, func(msg *amqp.BudgetEventMessage) error {
			return w.HandleEvent(gctx, msg)
		})
	})

	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	logger.Info("Event worker started", "queue", cfg.AMQPQueue, "forecast_months", cfg.ForecastMonths)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Event consumer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Event worker stopped")
}
