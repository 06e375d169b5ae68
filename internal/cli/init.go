// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/temporada, cmd/temporada-worker and cmd/whatsapp-link.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"temporada/internal/config"
	applog "temporada/internal/log"
	"temporada/internal/storage"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// sets it as the default logger.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		if cfg.LogFormat != "" {
			lc.Format = cfg.LogFormat
		}
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// DeviceLogger returns the zerolog logger handed to the WhatsApp device
// driver, at the level matching the process logger.
func DeviceLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg != nil {
		level = ZerologLevel(applog.ParseLevel(cfg.LogLevel))
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

// ZerologLevel maps an slog level onto zerolog.
func ZerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l < slog.LevelWarn:
		return zerolog.InfoLevel
	case l < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}
	return cfg
}

// InitSQLite opens the repository at the configured database path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, cfg *config.Config) *storage.SQLiteRepository {
	path, err := cfg.DatabasePath()
	if err != nil {
		logger.Error("Invalid database URL", applog.FieldError, err)
		os.Exit(1)
	}
	repo, err := storage.NewSQLiteRepository(path, storage.Options{
		CountryCode:  cfg.DefaultCountryCode,
		AllowOverlap: cfg.AllowOverlap,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", path)
		os.Exit(1)
	}
	logger.Info("SQLite repository ready", "path", path)
	return repo
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that is cancelled on SIGINT or SIGTERM and a channel
// closed once cleanup has returned or the timeout has passed.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
