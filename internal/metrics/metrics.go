// Package metrics provides Prometheus counters for journal writes and backup
// imports. A nil *Metrics is valid and records nothing, so repositories and
// the backup engine can run without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Write status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics contains the collectors registered for one journal.
type Metrics struct {
	registry *prometheus.Registry

	writesTotal        *prometheus.CounterVec
	writeDuration      *prometheus.HistogramVec
	importRecordsTotal *prometheus.CounterVec
	importRunsTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}

	m.writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthlog",
			Subsystem: "journal",
			Name:      "writes_total",
			Help:      "Number of repository write operations, labeled by operation and status.",
		},
		[]string{"operation", "status"},
	)

	m.writeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthlog",
			Subsystem: "journal",
			Name:      "write_duration_seconds",
			Help:      "Time spent in repository write operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)

	m.importRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthlog",
			Subsystem: "backup",
			Name:      "import_records_total",
			Help:      "Backup records classified during import, labeled by record kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	m.importRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthlog",
			Subsystem: "backup",
			Name:      "import_runs_total",
			Help:      "Backup imports run, labeled by dry_run.",
		},
		[]string{"dry_run"},
	)

	for _, c := range []prometheus.Collector{m.writesTotal, m.writeDuration, m.importRecordsTotal, m.importRunsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveWrite records the outcome and duration of a write that began at start.
func (m *Metrics) ObserveWrite(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.writesTotal.WithLabelValues(operation, status).Inc()
	m.writeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordImportRecords adds n records of kind with the given outcome.
func (m *Metrics) RecordImportRecords(kind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRecordsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

// RecordImportRun counts one import run.
func (m *Metrics) RecordImportRun(dryRun bool) {
	if m == nil {
		return
	}
	label := "false"
	if dryRun {
		label = "true"
	}
	m.importRunsTotal.WithLabelValues(label).Inc()
}

// WriteTextfile dumps every registered metric to path in the Prometheus text
// format, for pickup by a node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
