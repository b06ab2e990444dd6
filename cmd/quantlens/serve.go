package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/quantlens/internal/api"
	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/logger"
	"github.com/newthinker/quantlens/internal/metrics"
	"github.com/newthinker/quantlens/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var templatesDir string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quantlens web server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&templatesDir, "templates", "", "load page templates from this directory instead of the embedded ones")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log.Info("starting quantlens server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("source", cfg.Source.Type),
		zap.String("api", cfg.API.BaseURL),
	)

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	c := newClient(cfg, log)
	fetcher, err := dashboardFetcher(cfg, c, log)
	if err != nil {
		return err
	}

	newPipeline := func(name string, f pipeline.Fetcher) *pipeline.Pipeline {
		p := pipeline.New(pipeline.Config{Name: name, Timeout: cfg.API.Timeout}, f, log)
		if reg != nil {
			p.SetRecorder(reg)
		}
		return p
	}

	sessions := session.NewStore(cfg.Server.MaxSessions, cfg.Server.SessionTTL,
		func(id string) *pipeline.Pipeline { return newPipeline("session-"+id, c) }, log)
	if reg != nil {
		sessions.SetGauge(reg)
	}

	server, err := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		APIKey:       cfg.Server.APIKey,
		TemplatesDir: templatesDir,
		PageSize:     cfg.Table.PageSize,
		WaitTimeout:  cfg.Server.WaitTimeout,
		MetricsPath:  cfg.Metrics.Path,
	}, api.Dependencies{
		Dashboard:    session.NewResults(newPipeline("dashboard", fetcher), log),
		Sessions:     sessions,
		FormDefaults: cfg.Backtest.Parameters(),
		Metrics:      reg,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down quantlens server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
