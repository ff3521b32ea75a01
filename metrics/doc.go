// Package metrics exports catalog runs to Prometheus.
//
// ProgressCollector reads progress trees at scrape time, so the indexer never
// talks to Prometheus directly. RunMetrics counts what finished runs wrote.
// Serve exposes a registry over HTTP for the lifetime of a context.
package metrics
