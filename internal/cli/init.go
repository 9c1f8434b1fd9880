// Package cli provides common CLI initialization utilities shared by
// cmd/budgetboard and cmd/budget-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetboard/internal/config"
	"budgetboard/internal/log"
	"budgetboard/internal/storage"
)

// SetupLogger builds the root logger from LOG_LEVEL and LOG_FORMAT style
// values and installs it as the slog default. An unknown level falls back to
// info and is reported once the logger exists.
func SetupLogger(level, format string) *log.Logger {
	cfg := log.DefaultConfig()
	lvl, err := log.ParseLevel(level)
	cfg.Level = lvl
	if format == "json" {
		cfg.Format = "json"
	}

	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info level", log.FieldError, err.Error())
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration from the environment and sets up logging
// from it. validate picks the checks the calling binary needs; the process
// exits when they fail.
func LoadConfig(validate func(*config.Config) error) (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	return cfg, logger
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err.Error(), "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// RunShutdown runs each step with a shared deadline and logs the ones that
// fail. Steps run in order.
func RunShutdown(logger *log.Logger, timeout time.Duration, steps ...func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i, step := range steps {
		if err := step(ctx); err != nil {
			logger.Error("Shutdown step failed", "step", i, log.FieldError, err.Error())
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Shutdown timeout reached", "timeout", timeout.String())
		return
	}
	logger.Info("Shutdown complete")
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error, args ...any) {
	logger.Error(msg, append([]any{log.FieldError, fmt.Sprint(err)}, args...)...)
	os.Exit(1)
}
