// Package metrics provides Prometheus metrics for reelkeep tasks and the
// cleanup and reconcile engines. The daemon serves them on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reelkeep"

// Registry holds every reelkeep collector plus the Go runtime collectors.
var Registry = prometheus.NewRegistry()

var (
	// TaskRuns counts finished tasks by name and outcome.
	TaskRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Total number of background task runs",
		},
		[]string{"task", "outcome"},
	)

	// TaskDuration tracks how long tasks take.
	TaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of background tasks in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"task"},
	)

	// TitlesFlagged is the number of titles flagged by the last scan.
	TitlesFlagged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cleanup_titles_flagged",
			Help:      "Titles flagged for duplicate cleanup by the most recent scan",
		},
	)

	// VersionDeletes counts media server deletions by result.
	VersionDeletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_version_deletes_total",
			Help:      "Deletion requests for losing versions",
		},
		[]string{"result"},
	)

	// MetadataRows counts reconcile row writes by result.
	MetadataRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_rows_total",
			Help:      "Metadata rows handled by reconciliation",
		},
		[]string{"result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		TaskRuns,
		TaskDuration,
		TitlesFlagged,
		VersionDeletes,
		MetadataRows,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordTask records a finished task.
func RecordTask(task, outcome string, seconds float64) {
	TaskRuns.WithLabelValues(task, outcome).Inc()
	TaskDuration.WithLabelValues(task).Observe(seconds)
}

// RecordDelete records one deletion attempt.
func RecordDelete(ok bool) {
	result := "deleted"
	if !ok {
		result = "failed"
	}
	VersionDeletes.WithLabelValues(result).Inc()
}

// RecordRows adds reconcile row outcomes.
func RecordRows(written, failed, offline int) {
	MetadataRows.WithLabelValues("written").Add(float64(written))
	MetadataRows.WithLabelValues("failed").Add(float64(failed))
	MetadataRows.WithLabelValues("offline").Add(float64(offline))
}
