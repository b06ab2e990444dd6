package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/client"
	"github.com/newthinker/quantlens/internal/config"
	"github.com/newthinker/quantlens/internal/pipeline"
	"github.com/newthinker/quantlens/internal/storage/archive"
	"go.uber.org/zap"
)

// loadConfig reads --config, or falls back to defaults, and validates.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func newClient(cfg *config.Config, log *zap.Logger) *client.Client {
	return client.New(cfg.API.BaseURL,
		client.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		client.WithLogger(log),
	)
}

func openArchive(cfg *config.Config, log *zap.Logger) (*archive.Source, error) {
	a := cfg.Source.Archive
	store, err := archive.Open(archive.Config{
		Type: a.Type,
		Path: a.Path,
		S3: archive.S3Config{
			Bucket:    a.S3.Bucket,
			Endpoint:  a.S3.Endpoint,
			Region:    a.S3.Region,
			AccessKey: a.S3.AccessKey,
			SecretKey: a.S3.SecretKey,
			Prefix:    a.S3.Prefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return archive.NewSource(store, a.Prefix, log), nil
}

// dashboardFetcher serves precomputed results from the configured source.
// Parameterized backtests always go to the backtest service.
func dashboardFetcher(cfg *config.Config, c *client.Client, log *zap.Logger) (pipeline.Fetcher, error) {
	if cfg.Source.Type != config.SourceArchive {
		return c, nil
	}
	src, err := openArchive(cfg, log)
	if err != nil {
		return nil, err
	}
	return pipeline.FetcherFunc(func(ctx context.Context, params *backtest.Parameters) (*backtest.Result, error) {
		if params == nil {
			return src.Fetch(ctx, nil)
		}
		return c.Fetch(ctx, params)
	}), nil
}
