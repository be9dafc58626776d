package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"miles/internal/amqp"
	"miles/internal/cli"
	applog "miles/internal/log"
	"miles/internal/sheets"
	gsheet "miles/internal/sheets/google"
	mem "miles/internal/sheets/memory"
	"miles/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)

	logger.Info("Starting miles-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Report destination: Google Sheets when configured, in-memory otherwise.
	var report sheets.ReportWriter
	if cfg.ReportingEnabled() {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		report = client
		logger.Info("Google Sheets report enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		report = mem.New()
		logger.Info("Google Sheets disabled, using in-memory report")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reportWorker := worker.NewReportWorker(repo, report, cfg.ReportBatchSize)

	// On startup, drain any transactions missed while the worker was down.
	logger.Info("Performing startup report check...")
	if err := reportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup report check", "error", err)
		// Don't exit, continue with normal operation.
	}

	go func() {
		handler := func(msg *amqp.TransactionRecordedMessage) error {
			return reportWorker.HandleTransactionMessage(ctx, msg)
		}
		if err := amqpClient.ConsumeTransactionRecorded(ctx, handler); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
			cancel()
		}
	}()

	// Periodic sweep for messages the AMQP path lost.
	ticker := time.NewTicker(cfg.ReportInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := reportWorker.ProcessUnreported(ctx); err != nil {
					logger.Error("Periodic report sweep failed", "error", err)
				}
			}
		}
	}()

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

	// Give in-flight deliveries a moment to settle.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
