package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_runs_total",
			Help: "Completed backup and restore runs by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backup_run_duration_seconds",
			Help:    "Duration of completed runs in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"kind"},
	)

	artifactBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_artifact_bytes_total",
			Help: "Total bytes of produced backup artifacts",
		},
		[]string{"engine"},
	)
)

// ObserveRun records a run reaching a terminal status.
func ObserveRun(kind, status string, seconds float64) {
	runsTotal.WithLabelValues(kind, status).Inc()
	runDuration.WithLabelValues(kind).Observe(seconds)
}

// ObserveArtifact records a produced artifact's size.
func ObserveArtifact(engine string, sizeBytes int64) {
	artifactBytes.WithLabelValues(engine).Add(float64(sizeBytes))
}
