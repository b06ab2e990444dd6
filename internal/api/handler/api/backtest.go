package api

import (
	"encoding/json"
	"net/http"

	"github.com/newthinker/quantlens/internal/api/response"
	"github.com/newthinker/quantlens/internal/api/session"
	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/newthinker/quantlens/internal/logger"
	"go.uber.org/zap"
)

// SessionHeader identifies the session of an API client. Browsers send the
// session cookie instead.
const SessionHeader = "X-Session-ID"

// Rejecter counts submissions refused before reaching a pipeline.
type Rejecter interface {
	RecordRejected(code string)
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	sessions *session.Store
	rejecter Rejecter
}

// NewBacktestHandler creates a new backtest handler. rejecter may be nil.
func NewBacktestHandler(sessions *session.Store, rejecter Rejecter) *BacktestHandler {
	return &BacktestHandler{sessions: sessions, rejecter: rejecter}
}

// SubmitResponse acknowledges an accepted backtest.
type SubmitResponse struct {
	SessionID string `json:"session_id"`
	Token     uint64 `json:"token"`
}

// Create validates the JSON parameters and starts a backtest in the
// caller's session, creating one if needed.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params backtest.Parameters
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		h.reject(w, r, core.WrapError(core.ErrValidation, err))
		return
	}
	if err := params.Validate(); err != nil {
		h.reject(w, r, err)
		return
	}

	sess, _ := h.sessions.GetOrCreate(sessionID(r))
	token, err := sess.Pipeline.Submit(&params)
	if err != nil {
		h.reject(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("backtest submitted",
		zap.String("session", sess.ID),
		zap.Uint64("token", token),
	)
	response.JSON(w, http.StatusAccepted, SubmitResponse{SessionID: sess.ID, Token: token})
}

// GetStatus returns the snapshot of the caller's session.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" {
		response.Fail(w, core.WrapError(core.ErrSessionNotFound, nil))
		return
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, NewSnapshot(sess.Pipeline.State()))
}

func (h *BacktestHandler) reject(w http.ResponseWriter, r *http.Request, err error) {
	code := core.Code(err)
	if h.rejecter != nil {
		h.rejecter.RecordRejected(code)
	}
	logger.FromContext(r.Context()).Info("backtest submission rejected",
		zap.String("code", code),
		zap.Error(err),
	)
	response.Fail(w, err)
}

// sessionID reads the session from the header, the id query parameter or
// the browser cookie, in that order.
func sessionID(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); id != "" {
		return id
	}
	if id := r.URL.Query().Get("id"); id != "" {
		return id
	}
	if c, err := r.Cookie(session.CookieName); err == nil {
		return c.Value
	}
	return ""
}
