package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/catalog/storage"
)

// RunMetrics counts the outcome of index runs.
type RunMetrics struct {
	files    *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewRunMetrics registers the run collectors against reg.
func NewRunMetrics(reg prometheus.Registerer) (*RunMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &RunMetrics{
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_files_total",
			Help: "Files written by index runs, labeled by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_runs_total",
			Help: "Index runs, labeled by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalog_run_duration_seconds",
			Help:    "Wall time per index run.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}),
	}
	for _, collector := range []prometheus.Collector{m.files, m.runs, m.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register run collector: %w", err)
		}
	}
	return m, nil
}

// Observe records one finished run. Partial results of failed runs are
// counted too; those batches stay written.
func (m *RunMetrics) Observe(result storage.WriteResult, elapsed time.Duration, err error) {
	m.files.WithLabelValues("inserted").Add(float64(result.Inserted))
	m.files.WithLabelValues("updated").Add(float64(result.Updated))
	m.files.WithLabelValues("unchanged").Add(float64(result.Unchanged))

	label := "success"
	if err != nil {
		label = "error"
	}
	m.runs.WithLabelValues(label).Inc()
	m.duration.Observe(elapsed.Seconds())
}
