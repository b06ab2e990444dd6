package web

import (
	"net/http"

	"github.com/newthinker/quantlens/internal/logger"
	"github.com/newthinker/quantlens/internal/pipeline"
	"go.uber.org/zap"
)

// DashboardData holds data for the dashboard template
type DashboardData struct {
	Title   string
	Results ResultsView
	// RefreshAction is the form target that re-submits the request and
	// returns to the same view.
	RefreshAction string
}

// Dashboard renders the precomputed results. Only the first visit submits
// a request; later ones show the settled state.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	res := h.opts.Dashboard
	st := parseViewState(r.URL.Query(), h.opts.PageSize)

	if res.Pipeline.State().Phase == pipeline.PhaseIdle {
		h.submitDashboard(r)
	}

	data := DashboardData{
		Title:         "Dashboard",
		Results:       buildResults(res, st, "/"),
		RefreshAction: st.href("/"),
	}
	h.render(w, r, http.StatusOK, "dashboard.html", data)
}

// RefreshDashboard re-submits the dashboard request and redirects back to
// the view it was posted from.
func (h *Handler) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	st := parseViewState(r.URL.Query(), h.opts.PageSize)
	h.submitDashboard(r)
	http.Redirect(w, r, st.href("/"), http.StatusSeeOther)
}

func (h *Handler) submitDashboard(r *http.Request) {
	p := h.opts.Dashboard.Pipeline
	token, err := p.Submit(nil)
	if err != nil {
		logger.FromContext(r.Context()).Error("submitting dashboard request", zap.Error(err))
		return
	}
	h.wait(r.Context(), p, token)
}
