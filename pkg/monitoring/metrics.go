package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector handles Prometheus metrics collection. Each collector owns
// its registry so several can coexist in one process (tests).
//
// All Record methods are safe to call on a nil collector.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	authAttemptsTotal     *prometheus.CounterVec
	prescriptionsCreated  prometheus.Counter
	prescriptionsReplaced prometheus.Counter
	changeRequestsTotal   *prometheus.CounterVec
	publicViewsTotal      *prometheus.CounterVec
	auditEventsTotal      *prometheus.CounterVec
	dbQueryDuration       *prometheus.HistogramVec
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(serviceName string) *MetricsCollector {
	m := &MetricsCollector{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code", "service"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "service"},
		),
		authAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of authentication attempts",
			},
			[]string{"method", "status", "service"},
		),
		prescriptionsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "prescriptions_created_total",
				Help:        "Total number of prescriptions created",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		prescriptionsReplaced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "prescriptions_replaced_total",
				Help:        "Total number of prescriptions superseded by a newer one",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		changeRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "change_requests_total",
				Help: "Total number of change request transitions",
			},
			[]string{"status", "service"},
		),
		publicViewsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "public_views_total",
				Help: "Total number of public QR view lookups",
			},
			[]string{"status", "service"},
		),
		auditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_events_total",
				Help: "Total number of audit events",
			},
			[]string{"event_type", "success", "service"},
		),
		dbQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"query_type", "service"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.authAttemptsTotal,
		m.prescriptionsCreated,
		m.prescriptionsReplaced,
		m.changeRequestsTotal,
		m.publicViewsTotal,
		m.auditEventsTotal,
		m.dbQueryDuration,
	)

	return m
}

// Registry exposes the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records HTTP request metrics
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode), m.serviceName).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint, m.serviceName).Observe(duration.Seconds())
}

// RecordAuthAttempt records authentication attempt metrics
func (m *MetricsCollector) RecordAuthAttempt(method, status string) {
	if m == nil {
		return
	}
	m.authAttemptsTotal.WithLabelValues(method, status, m.serviceName).Inc()
}

// RecordPrescription records a created prescription and how many it replaced
func (m *MetricsCollector) RecordPrescription(replaced int64) {
	if m == nil {
		return
	}
	m.prescriptionsCreated.Inc()
	if replaced > 0 {
		m.prescriptionsReplaced.Add(float64(replaced))
	}
}

// RecordChangeRequest records a change request entering status
func (m *MetricsCollector) RecordChangeRequest(status string) {
	if m == nil {
		return
	}
	m.changeRequestsTotal.WithLabelValues(status, m.serviceName).Inc()
}

// RecordPublicView records a public QR lookup outcome
func (m *MetricsCollector) RecordPublicView(status string) {
	if m == nil {
		return
	}
	m.publicViewsTotal.WithLabelValues(status, m.serviceName).Inc()
}

// RecordAuditEvent records audit event metrics
func (m *MetricsCollector) RecordAuditEvent(eventType string, success bool) {
	if m == nil {
		return
	}
	m.auditEventsTotal.WithLabelValues(eventType, strconv.FormatBool(success), m.serviceName).Inc()
}

// RecordDBQuery records database query metrics
func (m *MetricsCollector) RecordDBQuery(queryType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(queryType, m.serviceName).Observe(duration.Seconds())
}

// Handler returns the Prometheus metrics HTTP handler
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
