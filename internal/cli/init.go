// Package cli implements the txfilter command tree and the initialization
// shared by its commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"txfilter/internal/backend"
	"txfilter/internal/cache"
	"txfilter/internal/config"
	applog "txfilter/internal/log"
)

// SetupLogger builds the application logger from the configured level and
// installs it as the slog default. Logs go to w so that stdout stays free
// for command output.
func SetupLogger(cfg *config.Config, w io.Writer) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: applog.ComponentApp,
		Output:    w,
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env style files for local development. A missing
// default .env is not an error; an explicitly named file must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend creates the configured dataset backend and registers its
// caches with manager when one is given.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *applog.Logger, manager *cache.Manager) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, err
	}
	if manager != nil {
		for _, c := range res.Cleaners {
			manager.Register(c)
		}
	}
	return res, nil
}
