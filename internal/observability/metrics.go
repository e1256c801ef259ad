package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's prometheus collectors on a private registry.
// All methods are no-ops on a nil receiver.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	denialsTotal    *prometheus.CounterVec
	auditDropped    *prometheus.CounterVec
	auditFailures   prometheus.Counter
	auditRecorded   prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "HTTP responses rendered from errors, by error code.",
		}, []string{"method", "path", "code"}),
		denialsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_denials_total",
			Help: "Single-ticket authorization denials by reason.",
		}, []string{"action", "reason"}),
		auditDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Audit events discarded before reaching a sink.",
		}, []string{"reason"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_sink_failures_total",
			Help: "Audit events the sink failed to record.",
		}),
		auditRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_events_recorded_total",
			Help: "Audit events recorded by the sink.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.requestsTotal,
		m.requestDuration,
		m.errorsTotal,
		m.denialsTotal,
		m.auditDropped,
		m.auditFailures,
		m.auditRecorded,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts a finished request.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an error response.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(method, path, code).Inc()
}

// RecordDenial counts an authorization denial.
func (m *Metrics) RecordDenial(action, reason string) {
	if m == nil {
		return
	}
	m.denialsTotal.WithLabelValues(action, reason).Inc()
}

// RecordAuditDropped counts an audit event that never reached the sink.
func (m *Metrics) RecordAuditDropped(reason string) {
	if m == nil {
		return
	}
	m.auditDropped.WithLabelValues(reason).Inc()
}

// RecordAuditFailure counts a sink write error.
func (m *Metrics) RecordAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// RecordAuditRecorded counts a successful sink write.
func (m *Metrics) RecordAuditRecorded() {
	if m == nil {
		return
	}
	m.auditRecorded.Inc()
}
