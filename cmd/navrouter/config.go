package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/vango-dev/navrouter/internal/config"
)

// loadConfig loads the configuration named by the flags, or the nearest
// navrouter.yaml, and builds the logger it describes. Flags override the
// file's log settings.
func loadConfig(ctx context.Context, flags *globalFlags) (*config.Config, *slog.Logger, error) {
	path := flags.configPath
	if path == "" {
		found, err := config.FindConfig(".")
		if err != nil {
			return nil, nil, err
		}
		path = found
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}

	logger, err := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
