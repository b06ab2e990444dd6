package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/newthinker/quantlens/internal/api/response"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/newthinker/quantlens/internal/logger"
	"go.uber.org/zap"
)

// APIKeyHeader carries the API key.
const APIKeyHeader = "X-API-Key"

var (
	errKeyMissing = errors.New(APIKeyHeader + " header is required")
	errKeyInvalid = errors.New(APIKeyHeader + " does not match")
)

// APIKeyAuth returns middleware that validates the API key header.
// If apiKey is empty, authentication is disabled.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get(APIKeyHeader)
			if provided == "" {
				reject(w, r, errKeyMissing)
				return
			}

			// Constant-time comparison to prevent timing attacks
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				reject(w, r, errKeyInvalid)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, cause error) {
	logger.FromContext(r.Context()).Warn("rejected API request",
		zap.String("path", r.URL.Path),
		zap.Error(cause),
	)
	response.Error(w, http.StatusUnauthorized, core.WrapError(core.ErrUnauthorized, cause))
}
