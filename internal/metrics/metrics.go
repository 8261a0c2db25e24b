// Package metrics holds the Prometheus collectors for the web server and the
// route guard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Guard decisions.
const (
	DecisionPublic   = "public"
	DecisionSkipped  = "skipped"
	DecisionAllowed  = "allowed"
	DecisionRejected = "rejected"
	DecisionRedirect = "redirected"
)

// Metrics contains the collectors, registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec

	// Guard
	GuardDecisions *prometheus.CounterVec
	AuthFailures   *prometheus.CounterVec
}

// New creates a registry and registers all collectors on it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evening_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evening_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evening_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),

		GuardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evening_guard_decisions_total",
			Help: "Route guard outcomes by decision",
		}, []string{"decision"}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "evening_guard_auth_failures_total",
			Help: "Rejected credentials by reason",
		}, []string{"reason"}),
	}
}

// RecordHTTPRequest records one request and its duration.
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError increments the error counter.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// RecordDecision counts one guard outcome.
func (m *Metrics) RecordDecision(decision string) {
	m.GuardDecisions.WithLabelValues(decision).Inc()
}

// RecordAuthFailure counts one rejected credential.
func (m *Metrics) RecordAuthFailure(reason string) {
	m.AuthFailures.WithLabelValues(reason).Inc()
}
