package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollQueriesTotal counts status queries issued by the watch poller
	PollQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmdwatch_poll_queries_total",
			Help: "Total number of invocation status queries issued",
		},
	)

	// PollOutcomesTotal counts terminal poll outcomes
	PollOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmdwatch_poll_outcomes_total",
			Help: "Total number of completed watch invocations by outcome",
		},
		[]string{"outcome"},
	)

	// PollDuration tracks elapsed wall time per watch invocation
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cmdwatch_poll_duration_seconds",
			Help:    "Elapsed time per watch invocation in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	// ControlPlaneRequestsTotal counts control-plane API calls per operation
	ControlPlaneRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmdwatch_controlplane_requests_total",
			Help: "Total number of control-plane API requests",
		},
		[]string{"op"},
	)

	// ControlPlaneErrorsTotal counts control-plane API errors per operation and kind
	ControlPlaneErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmdwatch_controlplane_errors_total",
			Help: "Total number of control-plane API errors",
		},
		[]string{"op", "kind"},
	)

	// HealthPushesTotal counts health updates pushed to the control plane
	HealthPushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmdwatch_health_pushes_total",
			Help: "Total number of target health updates pushed",
		},
		[]string{"state"},
	)

	// RequeuesTotal counts watch jobs requeued after a retryable failure
	RequeuesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmdwatch_requeues_total",
			Help: "Total number of watch jobs requeued",
		},
	)

	// WatchQueueDepth tracks the number of pending watch jobs
	WatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cmdwatch_watch_queue_depth",
			Help: "Number of watch jobs waiting in the queue",
		},
	)

	// DBConnectionPoolUsage tracks database connection pool utilization
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cmdwatch_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
