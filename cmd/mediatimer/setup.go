package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goodtune/mediatimer/internal/clock"
	"github.com/goodtune/mediatimer/internal/config"
	"github.com/goodtune/mediatimer/internal/storage"
	"github.com/goodtune/mediatimer/internal/storage/bolt"
	"github.com/goodtune/mediatimer/internal/storage/redis"
	"github.com/goodtune/mediatimer/internal/storage/sqlite"
	"github.com/goodtune/mediatimer/internal/usage"
	"github.com/rs/zerolog"
)

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// parseLevel maps the configured level name onto zerolog.
func parseLevel(name string) zerolog.Level {
	switch name {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}

// quietLogger is used by one-shot commands so that only problems reach
// the terminal.
func quietLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
}

// openTracker opens storage and loads a tracker over it. A corrupt record
// is reported and the tracker continues from defaults.
func openTracker(ctx context.Context, cfg *config.Config, ticker clock.Ticker, logger zerolog.Logger) (*usage.Tracker, storage.Store, error) {
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	tracker := usage.NewTracker(store, usage.Config{
		Ticker:          ticker,
		DefaultSettings: cfg.Timer.Settings(),
	}, logger)

	if err := tracker.Load(ctx); err != nil {
		if !errors.Is(err, storage.ErrCorruptState) {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to load timer state: %w", err)
		}
		logger.Warn().Err(err).Msg("Persisted state was corrupt and has been reset")
	}

	return tracker, store, nil
}
