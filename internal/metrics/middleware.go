package metrics

import (
	"net/http"
	"strings"
	"time"
)

// UnmatchedRoute labels requests that no registered pattern served.
const UnmatchedRoute = "unmatched"

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware records request count, duration and in-flight requests.
// It must wrap the ServeMux directly: requests are labelled with the route
// pattern the mux matched, which keeps label cardinality bounded by the
// route table.
func HTTPMiddleware(reg *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reg.InFlightInc()
			defer reg.InFlightDec()

			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			route := routeOf(r)
			method := r.Method
			if route == UnmatchedRoute {
				method = knownMethod(method)
			}
			reg.RecordHTTPRequest(method, route, rw.status, time.Since(start).Seconds())
		})
	}
}

// routeOf returns the path part of the matched pattern, e.g. "/backtest"
// for "POST /backtest".
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return UnmatchedRoute
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

func knownMethod(m string) string {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return m
	}
	return "OTHER"
}
