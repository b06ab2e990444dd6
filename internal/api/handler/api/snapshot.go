package api

import (
	"net/http"

	"github.com/newthinker/quantlens/internal/api/response"
	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/pipeline"
	"github.com/newthinker/quantlens/internal/summary"
)

// Snapshot is a pipeline state with its formatted summary cards.
type Snapshot struct {
	pipeline.State
	Summary []summary.Card `json:"summary,omitempty"`
}

// NewSnapshot formats s.
func NewSnapshot(s pipeline.State) Snapshot {
	snap := Snapshot{State: s}
	if s.Metrics != nil {
		snap.Summary = summary.Format(*s.Metrics)
	}
	return snap
}

// DashboardHandler serves the read-only results as JSON.
type DashboardHandler struct {
	results *session.Results
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(results *session.Results) *DashboardHandler {
	return &DashboardHandler{results: results}
}

// Get returns the current dashboard snapshot. An idle dashboard is
// submitted first, so the reply is at least pending.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	p := h.results.Pipeline
	if p.State().Phase == pipeline.PhaseIdle {
		if _, err := p.Submit(nil); err != nil {
			response.Fail(w, err)
			return
		}
	}
	response.JSON(w, http.StatusOK, NewSnapshot(p.State()))
}

// Refresh submits a new dashboard request and returns the pending snapshot.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	p := h.results.Pipeline
	if _, err := p.Submit(nil); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusAccepted, NewSnapshot(p.State()))
}
