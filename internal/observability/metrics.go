// Package observability owns the Prometheus registry and the application metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters exported on /metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	ledgerOps        *prometheus.CounterVec
	capacityWarnings prometheus.Counter
	salesAmount      prometheus.Counter
	remindersWritten prometheus.Counter
}

// NewMetrics builds a private registry with the application metrics registered.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rabbitry_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rabbitry_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ledgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rabbitry_housing_ledger_operations_total",
			Help: "Housing ledger operations by kind (assign, release, noop, reconcile).",
		}, []string{"op"}),
		capacityWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabbitry_housing_capacity_warnings_total",
			Help: "Moves into housing units at or above capacity.",
		}),
		salesAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabbitry_sales_amount_total",
			Help: "Sum of recorded sale income across farms.",
		}),
		remindersWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rabbitry_reminders_written_total",
			Help: "Notifications written by the reminder scan.",
		}),
	}
	registry.MustRegister(m.requestsTotal, m.requestDuration, m.ledgerOps, m.capacityWarnings, m.salesAmount, m.remindersWritten)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, code string, seconds float64) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestsTotal.WithLabelValues(route, code).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

// LedgerOp counts one housing ledger operation.
func (m *Metrics) LedgerOp(op string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(op).Inc()
}

// CapacityWarning counts one over-capacity move.
func (m *Metrics) CapacityWarning() {
	if m == nil {
		return
	}
	m.capacityWarnings.Inc()
}

// SaleRecorded adds a sale amount.
func (m *Metrics) SaleRecorded(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.salesAmount.Add(amount)
}

// RemindersWritten adds n written notifications.
func (m *Metrics) RemindersWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.remindersWritten.Add(float64(n))
}
