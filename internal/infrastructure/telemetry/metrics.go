package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/erp/stockflow/internal/domain/stock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace prefixes every stockflow metric
const MetricsNamespace = "stockflow"

// StockMetrics exports business and HTTP metrics on its own registry.
// It satisfies the application layer's MetricsRecorder.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type StockMetrics struct {
	registry *prometheus.Registry

	editRejected       *prometheus.CounterVec
	validationRejected *prometheus.CounterVec
	staleFetches       prometheus.Counter
	transportErrors    *prometheus.CounterVec
	submissions        *prometheus.CounterVec
	mismatches         *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewStockMetrics creates the metrics and registers them on registry.
// A nil registry gets a fresh one with Go runtime and process collectors.
func NewStockMetrics(registry *prometheus.Registry) *StockMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &StockMetrics{registry: registry}

	m.editRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "edit_rejected_total",
		Help:      "Line quantity edits rejected by the editor, by outcome.",
	}, []string{"outcome"})

	m.validationRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "validation_rejected_total",
		Help:      "Submit attempts rejected by the submission validator, by reason.",
	}, []string{"reason"})

	m.staleFetches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "stale_fetches_total",
		Help:      "Line fetches discarded because a newer reference selection superseded them.",
	})

	m.transportErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "backend_errors_total",
		Help:      "Failed calls to the stock backend, by operation.",
	}, []string{"operation"})

	m.submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "submissions_total",
		Help:      "Transactions accepted by the stock backend, by type.",
	}, []string{"type"})

	m.mismatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "availability_mismatch_total",
		Help:      "Backend availability figures that disagree with the client mirror, by source.",
	}, []string{"source"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds, by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	registry.MustRegister(
		m.editRejected,
		m.validationRejected,
		m.staleFetches,
		m.transportErrors,
		m.submissions,
		m.mismatches,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// RecordEditRejected counts a rejected editor mutation
func (m *StockMetrics) RecordEditRejected(outcome stock.EditOutcome) {
	m.editRejected.WithLabelValues(string(outcome)).Inc()
}

// RecordValidationRejected counts a rejected submit attempt
func (m *StockMetrics) RecordValidationRejected(reason stock.RejectReason) {
	m.validationRejected.WithLabelValues(string(reason)).Inc()
}

// RecordStaleFetch counts a discarded line fetch
func (m *StockMetrics) RecordStaleFetch() {
	m.staleFetches.Inc()
}

// RecordTransportError counts a failed backend call
func (m *StockMetrics) RecordTransportError(operation string) {
	m.transportErrors.WithLabelValues(operation).Inc()
}

// RecordSubmission counts an accepted transaction
func (m *StockMetrics) RecordSubmission(txType stock.TransactionType) {
	m.submissions.WithLabelValues(txType.String()).Inc()
}

// RecordAvailabilityMismatch counts a server/mirror disagreement
func (m *StockMetrics) RecordAvailabilityMismatch(source string) {
	m.mismatches.WithLabelValues(source).Inc()
}

// ObserveHTTPRequest records one served HTTP request
func (m *StockMetrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry returns the underlying registry
func (m *StockMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for the registry
func (m *StockMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
