package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/newthinker/quantlens/internal/logger"
	"go.uber.org/zap"
)

// FormView holds the raw field values of the backtest form.
type FormView struct {
	TopK           string
	InitialCapital string
	SellThreshold  string
	StartPeriod    string
	EndPeriod      string
	RandomSeed     string
	ModelStrategy  string

	Models  []string
	Periods []string
	Errors  []string
}

// BacktestData holds data for the backtest template
type BacktestData struct {
	Title   string
	Form    FormView
	Results *ResultsView
}

// Backtest renders the parameter form and the results of the caller's
// session, if any.
func (h *Handler) Backtest(w http.ResponseWriter, r *http.Request) {
	data := BacktestData{Title: "Backtest", Form: h.form(h.opts.FormDefaults.Query())}

	if sess := h.currentSession(r); sess != nil {
		if params := sess.Pipeline.State().Params; params != nil {
			data.Form = h.form(params.Query())
		}
		view := buildResults(sess.Results, parseViewState(r.URL.Query(), h.opts.PageSize), "/backtest")
		data.Results = &view
	}

	h.render(w, r, http.StatusOK, "backtest.html", data)
}

// SubmitBacktest validates the form and starts a backtest in the caller's
// session. Invalid input re-renders the form without contacting the
// backtest service.
func (h *Handler) SubmitBacktest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	params, err := backtest.ParseParameters(r.PostForm)
	if err != nil {
		h.rejectForm(w, r, err)
		return
	}

	sess, created := h.opts.Sessions.GetOrCreate(sessionID(r))
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     session.CookieName,
			Value:    sess.ID,
			Path:     "/",
			MaxAge:   int(h.opts.Sessions.TTL().Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	token, err := sess.Pipeline.Submit(&params)
	if err != nil {
		h.rejectForm(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("backtest submitted",
		zap.String("session", sess.ID),
		zap.Uint64("token", token),
	)
	h.wait(r.Context(), sess.Pipeline, token)

	http.Redirect(w, r, "/backtest", http.StatusSeeOther)
}

func (h *Handler) rejectForm(w http.ResponseWriter, r *http.Request, err error) {
	code := core.Code(err)
	if h.opts.Rejecter != nil {
		h.opts.Rejecter.RecordRejected(code)
	}
	logger.FromContext(r.Context()).Info("backtest submission rejected",
		zap.String("code", code),
		zap.Error(err),
	)

	data := BacktestData{Title: "Backtest", Form: h.form(r.PostForm)}
	data.Form.Errors = problems(err)
	if sess := h.currentSession(r); sess != nil {
		view := buildResults(sess.Results, parseViewState(r.URL.Query(), h.opts.PageSize), "/backtest")
		data.Results = &view
	}
	h.render(w, r, http.StatusUnprocessableEntity, "backtest.html", data)
}

// form fills a FormView from values keyed like backtest.Parameters.Query.
func (h *Handler) form(values url.Values) FormView {
	f := FormView{
		TopK:           values.Get("topK"),
		InitialCapital: values.Get("initialCapital"),
		SellThreshold:  values.Get("sellThreshold"),
		StartPeriod:    values.Get("startPeriod"),
		EndPeriod:      values.Get("endPeriod"),
		RandomSeed:     values.Get("randomSeed"),
		ModelStrategy:  values.Get("modelStrategy"),
		Models:         backtest.ModelStrategies,
	}
	start, err1 := backtest.ParsePeriod(h.opts.FormDefaults.StartPeriod)
	end, err2 := backtest.ParsePeriod(h.opts.FormDefaults.EndPeriod)
	if err1 == nil && err2 == nil {
		for _, p := range backtest.Periods(start, end) {
			f.Periods = append(f.Periods, p.String())
		}
	}
	return f
}

func (h *Handler) currentSession(r *http.Request) *session.Session {
	id := sessionID(r)
	if id == "" || h.opts.Sessions == nil {
		return nil
	}
	sess, err := h.opts.Sessions.Get(id)
	if err != nil {
		return nil
	}
	return sess
}

func sessionID(r *http.Request) string {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// problems lists the individual validation messages in err.
func problems(err error) []string {
	var e *core.Error
	if !errors.As(err, &e) || e.Cause == nil {
		return []string{core.Describe(err)}
	}
	if joined, ok := e.Cause.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, p := range joined.Unwrap() {
			out = append(out, p.Error())
		}
		return out
	}
	return []string{e.Cause.Error()}
}
