// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_recommendations_total",
			Help: "Total number of recommendation requests served",
		},
		[]string{"urgency"},
	)

	RecommendationsEmpty = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routing_recommendations_empty_total",
			Help: "Total number of requests that found no available vendors",
		},
	)

	LedgerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_ledger_transitions_total",
			Help: "Total number of handoff state transitions",
		},
		[]string{"from", "to"},
	)

	LedgerConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "routing_ledger_conflicts_total",
			Help: "Total number of rejected state transitions",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_notifications_total",
			Help: "Total number of notification attempts by kind and status",
		},
		[]string{"kind", "status"},
	)

	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_sweep_runs_total",
			Help: "Total number of sweep runs by sweep name and status",
		},
		[]string{"sweep", "status"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "routing_sweep_duration_seconds",
			Help: "Duration of sweep runs in seconds",
		},
		[]string{"sweep"},
	)
)
