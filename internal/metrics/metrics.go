// Package metrics exposes run counters for the daemon's /metrics
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livesync",
		Name:      "runs_total",
		Help:      "Reconciliation runs by result (updated, skipped, partial, failed)",
	}, []string{"result"})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "livesync",
		Name:      "run_duration_seconds",
		Help:      "Wall time of a full reconciliation run",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	BroadcastsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livesync",
		Name:      "broadcasts_created_total",
		Help:      "Broadcasts created on the video platform",
	})

	BroadcastsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livesync",
		Name:      "broadcasts_updated_total",
		Help:      "Broadcasts updated on the video platform",
	})

	BroadcastsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livesync",
		Name:      "broadcasts_deleted_total",
		Help:      "Broadcasts deleted on the video platform",
	})

	SplitConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livesync",
		Name:      "split_conflicts_total",
		Help:      "Calendar splits aborted by the change-impact conflict check",
	})

	EventsReconciled = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "livesync",
		Name:      "events_reconciled",
		Help:      "Events covered by the last run",
	})
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		RunDuration,
		BroadcastsCreated,
		BroadcastsUpdated,
		BroadcastsDeleted,
		SplitConflicts,
		EventsReconciled,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
