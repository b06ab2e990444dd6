package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestsInFlight prometheus.Gauge
	httpRequestDuration  *prometheus.HistogramVec

	// Pipeline metrics
	pipelineRequests *prometheus.CounterVec
	pipelineDuration *prometheus.HistogramVec
	rejectedSubmits  *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.pipelineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlens_pipeline_requests_total",
			Help: "Total number of settled result requests by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)
	r.pipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantlens_pipeline_request_duration_seconds",
			Help:    "Time from submission to settlement of a result request",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"mode"},
	)
	r.rejectedSubmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantlens_rejected_submissions_total",
			Help: "Submissions rejected before any request was made",
		},
		[]string{"code"},
	)
	r.sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantlens_sessions_active",
			Help: "Number of browser sessions holding a backtest pipeline",
		},
	)

	reg.MustRegister(r.pipelineRequests)
	reg.MustRegister(r.pipelineDuration)
	reg.MustRegister(r.rejectedSubmits)
	reg.MustRegister(r.sessionsActive)

	return r
}

// RecordHTTPRequest records metrics for an HTTP request.
func (r *Registry) RecordHTTPRequest(method, route string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, route, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordRequest records a settled pipeline request. Superseded responses
// are counted but not timed.
func (r *Registry) RecordRequest(mode, outcome string, duration float64) {
	r.pipelineRequests.WithLabelValues(mode, outcome).Inc()
	if outcome != "stale" {
		r.pipelineDuration.WithLabelValues(mode).Observe(duration)
	}
}

// RecordRejected records a submission refused before reaching the
// pipeline, labelled by error code.
func (r *Registry) RecordRejected(code string) {
	if code == "" {
		code = "unknown"
	}
	r.rejectedSubmits.WithLabelValues(code).Inc()
}

// SetSessionsActive sets the number of live sessions.
func (r *Registry) SetSessionsActive(count int) {
	r.sessionsActive.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
