package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/go-fiction-books/normalizer"
)

// Metrics bundles Prometheus collectors for the pipeline stages.
type Metrics struct {
	Dropped       *prometheus.CounterVec
	Stored        prometheus.Gauge
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec
}

// NewMetrics constructs the pipeline metrics and registers them on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	dropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_records_dropped_total",
			Help: "Records removed during cleaning, by reason.",
		},
		[]string{"reason"},
	)
	stored := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "books_records_stored",
			Help: "Rows in the stored table after the last load.",
		},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "books_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
	stageFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "books_stage_failures_total",
			Help: "Pipeline stage failures.",
		},
		[]string{"stage"},
	)

	if registry != nil {
		registry.MustRegister(dropped, stored, stageDuration, stageFailures)
	}

	return &Metrics{
		Dropped:       dropped,
		Stored:        stored,
		StageDuration: stageDuration,
		StageFailures: stageFailures,
	}
}

func (m *Metrics) observeClean(stats normalizer.Stats) {
	if m == nil {
		return
	}
	for reason, n := range stats.Dropped {
		m.Dropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) setStored(n int) {
	if m == nil {
		return
	}
	m.Stored.Set(float64(n))
}

func (m *Metrics) observeStage(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}
