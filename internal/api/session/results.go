package session

import (
	"github.com/newthinker/quantlens/internal/chart"
	"github.com/newthinker/quantlens/internal/pipeline"
	"go.uber.org/zap"
)

// Results pairs a pipeline with the chart that follows its settled states.
type Results struct {
	Pipeline *pipeline.Pipeline
	Chart    *chart.Renderer
}

// NewResults subscribes a fresh chart renderer to p.
func NewResults(p *pipeline.Pipeline, logger *zap.Logger) *Results {
	r := &Results{Pipeline: p, Chart: chart.NewRenderer(logger)}
	p.Subscribe(func(s pipeline.State) {
		if s.Phase == pipeline.PhaseSucceeded || s.Phase == pipeline.PhaseFailed {
			r.Chart.Update(s.Token, s.Ledger)
		}
	})
	return r
}
