// Package cli provides the process bootstrap shared by cmd/salesdash and
// cmd/salesreport.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"salesdash/internal/amqp"
	"salesdash/internal/backend"
	"salesdash/internal/config"
	"salesdash/internal/loader"
	"salesdash/internal/log"
	"salesdash/internal/services"
	"salesdash/internal/storage"
)

// SetupLogger builds the application logger at level and makes it the default.
func SetupLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// NewRecorder opens the configured refresh history store.
func NewRecorder(cfg *config.Config) (storage.RefreshRecorder, error) {
	switch cfg.HistoryBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open refresh history: %w", err)
		}
		return repo, nil
	default:
		return storage.NewMemoryRecorder(100), nil
	}
}

// NewPublisher connects to the broker when AMQP is configured. It returns
// nil without error when AMQP is disabled.
func NewPublisher(ctx context.Context, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	return amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 3)
}

// NewDashboardService wires source, loader, history and events from cfg.
// Publisher failures are logged and leave events disabled.
func NewDashboardService(ctx context.Context, logger *log.Logger, cfg *config.Config) (*services.DashboardService, error) {
	srcCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateSource(ctx, srcCfg)
	if err != nil {
		return nil, err
	}

	recorder, err := NewRecorder(cfg)
	if err != nil {
		return nil, err
	}
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithRecorder(recorder),
	}

	pub, err := NewPublisher(ctx, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without refresh events", "error", err)
	} else if pub != nil {
		logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		opts = append(opts, services.WithPublisher(pub))
	}

	l := loader.New(res.Source, logger.WithComponent(log.ComponentLoader).Slog())
	return services.NewDashboardService(l, cfg.FreshnessWindow, opts...), nil
}

// GracefulShutdown cancels the returned context on SIGINT or SIGTERM after
// running cleanup. The done channel closes once shutdown has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
