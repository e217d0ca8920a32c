package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// Metrics records evaluation health and the latest status distribution.
// It satisfies maintenance.Observer.
type Metrics struct {
	registry    *prometheus.Registry
	evaluations prometheus.Counter
	duration    prometheus.Histogram
	rows        *prometheus.GaugeVec
	published   *prometheus.CounterVec
}

// New creates the instruments on a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(registry)
}

func newMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "assetwatch_evaluations_total",
			Help: "Completed maintenance status evaluations.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "assetwatch_evaluation_duration_seconds",
			Help:    "Time spent normalizing, reconstructing and classifying one event log.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "assetwatch_status_rows",
			Help: "Rows per status in the most recent evaluation.",
		}, []string{"status"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assetwatch_published_rows_total",
			Help: "Status rows published per sink.",
		}, []string{"sink"}),
	}
	registry.MustRegister(m.evaluations, m.duration, m.rows, m.published)
	return m
}

// Registry exposes the registry for the /metrics handler
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// StatusLabel is the metric label of a status
func StatusLabel(s models.Status) string {
	if s == models.StatusUnknown {
		return "unknown"
	}
	return string(s)
}

// ObserveEvaluation records one evaluation. Every known status is reset so
// statuses that disappeared drop to zero.
func (m *Metrics) ObserveEvaluation(rows []models.AssetStatusRow, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.Inc()
	m.duration.Observe(elapsed.Seconds())

	counts := make(map[models.Status]int, len(models.StatusOrder))
	for _, row := range rows {
		counts[row.Status]++
	}
	for _, s := range models.StatusOrder {
		m.rows.WithLabelValues(StatusLabel(s)).Set(float64(counts[s]))
	}
}

// AddPublished counts rows delivered to a sink
func (m *Metrics) AddPublished(sink string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.published.WithLabelValues(sink).Add(float64(n))
}
