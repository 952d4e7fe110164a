package main

import (
	"context"
	"errors"
	"os"
	"time"

	"salesdash/internal/cli"
	"salesdash/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger("info"))
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting salesdash-worker")

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the refresh watcher")
		os.Exit(1)
	}

	client, err := cli.NewPublisher(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	// The client is closed after consumption stops; closing it first would
	// surface as a consumer error.
	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	watcher := worker.NewRefreshWatcher(logger)
	if err := watcher.Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	if err := client.Close(); err != nil {
		logger.Error("Failed to close AMQP client", "error", err)
	}
	logger.Info("Worker stopped gracefully")
}
