// Package api serves the dashboard and backtest pages and their JSON API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/quantlens/internal/api/handler/api"
	"github.com/newthinker/quantlens/internal/api/handler/web"
	"github.com/newthinker/quantlens/internal/api/middleware"
	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for quantlens
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	handler    http.Handler
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	APIKey       string
	TemplatesDir string
	PageSize     int
	WaitTimeout  time.Duration
	// MetricsPath serves Prometheus metrics when Dependencies.Metrics is set.
	MetricsPath string
}

// Dependencies holds the result pipelines and collaborators behind the
// routes.
type Dependencies struct {
	Dashboard    *session.Results
	Sessions     *session.Store
	FormDefaults backtest.Parameters
	// Metrics is optional.
	Metrics *metrics.Registry
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Dashboard == nil || deps.Sessions == nil {
		return nil, fmt.Errorf("dashboard results and session store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		logger: logger,
		mux:    mux,
	}

	if err := s.setupRoutes(cfg, deps); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	s.handler = metrics.LoggingMiddleware(logger)(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WaitTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config, deps Dependencies) error {
	opts := web.Options{
		Dashboard:    deps.Dashboard,
		Sessions:     deps.Sessions,
		FormDefaults: deps.FormDefaults,
		PageSize:     cfg.PageSize,
		WaitTimeout:  cfg.WaitTimeout,
		Logger:       s.logger,
	}
	var rejecter apihandler.Rejecter
	if deps.Metrics != nil {
		opts.Rejecter = deps.Metrics
		rejecter = deps.Metrics
	}

	// Web UI routes
	webHandler, err := web.NewHandler(cfg.TemplatesDir, opts)
	if err != nil {
		return fmt.Errorf("creating web handler: %w", err)
	}
	s.mux.HandleFunc("GET /{$}", webHandler.Dashboard)
	s.mux.HandleFunc("POST /{$}", webHandler.RefreshDashboard)
	s.mux.HandleFunc("GET /backtest", webHandler.Backtest)
	s.mux.HandleFunc("POST /backtest", webHandler.SubmitBacktest)

	// JSON API, behind the optional API key
	auth := middleware.APIKeyAuth(cfg.APIKey)
	dashboard := apihandler.NewDashboardHandler(deps.Dashboard)
	backtests := apihandler.NewBacktestHandler(deps.Sessions, rejecter)
	s.mux.Handle("GET /api/v1/dashboard", auth(http.HandlerFunc(dashboard.Get)))
	s.mux.Handle("POST /api/v1/dashboard", auth(http.HandlerFunc(dashboard.Refresh)))
	s.mux.Handle("GET /api/v1/session", auth(http.HandlerFunc(backtests.GetStatus)))
	s.mux.Handle("POST /api/v1/backtest", auth(http.HandlerFunc(backtests.Create)))

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if deps.Metrics != nil && cfg.MetricsPath != "" {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}
	return nil
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
