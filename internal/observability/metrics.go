package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spec-kit/complaint-service/internal/workflow"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "complaints_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_http_errors_total",
			Help: "HTTP error responses by domain error code.",
		}, []string{"route", "method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "complaints_stage_transitions_total",
			Help: "Stage submissions by stage and outcome.",
		}, []string{"stage", "outcome"}),
	}
	m.registry.MustRegister(m.requests, m.latency, m.errors, m.transitions)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest counts a served request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordTransition counts a stage submission. Outcome is "accepted" or the
// rejecting error code. Stages outside the workflow share the "invalid" label.
func (m *Metrics) RecordTransition(stage int, outcome string) {
	if m == nil {
		return
	}
	label := "invalid"
	if _, ok := workflow.Lookup(stage); ok {
		label = strconv.Itoa(stage)
	}
	m.transitions.WithLabelValues(label, outcome).Inc()
}
