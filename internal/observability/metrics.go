package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes prometheus collectors for the dispute service.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpErrors    *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	escalations   prometheus.Counter
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispute_http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispute_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispute_http_errors_total",
			Help: "Domain errors surfaced to callers, by error code.",
		}, []string{"path", "method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispute_transitions_total",
			Help: "Dispute lifecycle transitions by action.",
		}, []string{"action"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispute_settlements_total",
			Help: "Settlements instructed, by outcome and result.",
		}, []string{"outcome", "result"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispute_auto_escalations_total",
			Help: "Disputes escalated by the negotiation-timeout sweeper.",
		}),
	}

	registry.MustRegister(m.httpRequests, m.httpDuration, m.httpErrors,
		m.transitions, m.settlements, m.escalations)
	return m
}

// Registry returns the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordRequest observes one completed HTTP request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError counts a domain error surfaced to the caller.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(path, method, code).Inc()
}

// RecordTransition counts a successful lifecycle transition.
func (m *Metrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

// RecordSettlement counts a settlement attempt result.
func (m *Metrics) RecordSettlement(outcome, result string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome, result).Inc()
}

// RecordAutoEscalation counts one sweeper-driven escalation.
func (m *Metrics) RecordAutoEscalation() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}
