package fetcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the fetcher.
type Metrics struct {
	RequestsTotal   prometheus.Counter
	RequestDuration prometheus.Histogram
	RecordsFetched  prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs the fetcher metrics and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	requests := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "books_fetch_requests_total",
			Help: "Total search requests issued.",
		},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "books_fetch_duration_seconds",
			Help:    "Search request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	recordsFetched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "books_records_fetched_total",
			Help: "Total raw records returned by the search endpoint.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_fetch_errors_total",
			Help: "Total fetch failures by type.",
		},
		[]string{"error_type"},
	)

	if registry != nil {
		registry.MustRegister(requests, requestDuration, recordsFetched, errorsTotal)
	}

	return &Metrics{
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RecordsFetched:  recordsFetched,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests counter.
func (m *Metrics) IncRequest() {
	if m == nil {
		return
	}
	m.RequestsTotal.Inc()
}

// ObserveDuration records a request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// AddRecords adds n to the fetched records counter.
func (m *Metrics) AddRecords(n int) {
	if m == nil {
		return
	}
	m.RecordsFetched.Add(float64(n))
}

// IncError increments the errors counter for a kind label.
func (m *Metrics) IncError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}
