package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/poiesic/catalog/progress"
)

var (
	progressCountDesc = prometheus.NewDesc(
		"catalog_progress_count",
		"Units of work done, labeled by stage.",
		[]string{"stage"}, nil,
	)
	progressTotalDesc = prometheus.NewDesc(
		"catalog_progress_total",
		"Units of work expected, labeled by stage. Absent while unknown.",
		[]string{"stage"}, nil,
	)
	progressPercentDesc = prometheus.NewDesc(
		"catalog_progress_percent",
		"Completion percentage, labeled by stage. Equals the count while the total is unknown.",
		[]string{"stage"}, nil,
	)
)

// ProgressCollector reports tracked Progress nodes as gauges.
type ProgressCollector struct {
	mu     sync.RWMutex
	stages map[string]*progress.Progress
}

var _ prometheus.Collector = (*ProgressCollector)(nil)

// NewProgressCollector creates a collector with no stages.
func NewProgressCollector() *ProgressCollector {
	return &ProgressCollector{stages: make(map[string]*progress.Progress)}
}

// Track reports p under stage, replacing any node tracked under that name.
func (c *ProgressCollector) Track(stage string, p *progress.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages[stage] = p
}

// Untrack stops reporting stage.
func (c *ProgressCollector) Untrack(stage string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.stages, stage)
}

// Describe implements prometheus.Collector.
func (c *ProgressCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- progressCountDesc
	ch <- progressTotalDesc
	ch <- progressPercentDesc
}

// Collect implements prometheus.Collector.
func (c *ProgressCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for stage, p := range c.stages {
		s := p.Snapshot()
		ch <- prometheus.MustNewConstMetric(progressCountDesc, prometheus.GaugeValue, float64(s.Count), stage)
		if s.HasTotal {
			ch <- prometheus.MustNewConstMetric(progressTotalDesc, prometheus.GaugeValue, float64(s.Total), stage)
		}
		ch <- prometheus.MustNewConstMetric(progressPercentDesc, prometheus.GaugeValue, s.Percent(), stage)
	}
}
