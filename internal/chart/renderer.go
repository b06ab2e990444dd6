package chart

import (
	"html/template"
	"sync"

	"github.com/newthinker/quantlens/internal/backtest"
	"go.uber.org/zap"
)

// Renderer holds the chart for the most recent data set.
type Renderer struct {
	logger *zap.Logger

	mu      sync.RWMutex
	version uint64
	chart   *Chart
}

// NewRenderer returns a renderer with an empty chart.
func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{logger: logger, chart: Build(nil, logger)}
}

// Update replaces the chart with one built from entries. Updates carrying
// a version older than the current one are ignored, so callers notified
// out of order keep the newest data. It reports whether the chart changed.
func (r *Renderer) Update(version uint64, entries []backtest.LedgerEntry) bool {
	r.mu.RLock()
	stale := version < r.version
	r.mu.RUnlock()
	if stale {
		return false
	}

	c := Build(entries, r.logger)

	r.mu.Lock()
	defer r.mu.Unlock()
	if version < r.version {
		return false
	}
	r.version = version
	r.chart = c
	return true
}

// Chart returns the current chart.
func (r *Renderer) Chart() *Chart {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chart
}

// Render draws the current chart.
func (r *Renderer) Render(vis Visibility, size Size) template.HTML {
	return r.Chart().Render(vis, size)
}
