package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot store and sync cycle metrics.
var (
	StagedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mediasnap",
			Subsystem: "snapshot",
			Name:      "staged_rows_total",
			Help:      "Total media entries written as pending",
		},
	)

	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediasnap",
			Subsystem: "snapshot",
			Name:      "commits_total",
			Help:      "Total commit attempts by outcome (promoted, empty, error)",
		},
		[]string{"outcome"},
	)

	PromotedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mediasnap",
			Subsystem: "snapshot",
			Name:      "promoted_rows_total",
			Help:      "Total pending rows promoted into a snapshot version",
		},
	)

	CurrentVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mediasnap",
			Subsystem: "snapshot",
			Name:      "current_version",
			Help:      "Snapshot version made current by the last commit",
		},
	)

	CollectedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mediasnap",
			Subsystem: "snapshot",
			Name:      "collected_rows_total",
			Help:      "Total superseded rows deleted by the collector",
		},
	)

	DriftTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediasnap",
			Subsystem: "sync",
			Name:      "drift_total",
			Help:      "Drift detected against the remote listing by kind (cdn_mismatch, not_found, stale)",
		},
		[]string{"kind"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediasnap",
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Sync cycle duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"status"},
	)
)

// RecordStaged records rows written as pending.
func RecordStaged(n int) {
	StagedRowsTotal.Add(float64(n))
}

// RecordCommit records a commit attempt. promoted is ignored unless outcome
// is "promoted".
func RecordCommit(outcome string, promoted int64, version int64) {
	CommitsTotal.WithLabelValues(outcome).Inc()
	if outcome == "promoted" {
		PromotedRowsTotal.Add(float64(promoted))
		CurrentVersion.Set(float64(version))
	}
}

// RecordCollected records rows removed by the collector.
func RecordCollected(n int64) {
	CollectedRowsTotal.Add(float64(n))
}

// RecordDrift records drift findings of one kind.
func RecordDrift(kind string, n int) {
	DriftTotal.WithLabelValues(kind).Add(float64(n))
}

// RecordCycle records a sync cycle.
func RecordCycle(status string, durationSec float64) {
	CycleDuration.WithLabelValues(status).Observe(durationSec)
}
