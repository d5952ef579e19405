package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RPCCallsTotal tracks RPC calls per provider and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskwatcher_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskwatcher_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "method", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskwatcher_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// ChainLatestBlock tracks the chain head seen by the last cycle
	ChainLatestBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskwatcher_chain_latest_block",
			Help: "Latest block height of the chain",
		},
	)

	// CheckpointBlock tracks the last fully processed block
	CheckpointBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskwatcher_checkpoint_block",
			Help: "Last block fully processed and persisted",
		},
	)

	// BlockTimeFallbacks counts linear scans after a failed binary search check
	BlockTimeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskwatcher_blocktime_fallbacks_total",
			Help: "Boundary resolutions that fell back to a linear scan",
		},
	)

	// EventsTotal tracks decoded events per kind
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskwatcher_events_total",
			Help: "Total number of decoded events",
		},
		[]string{"kind"},
	)

	// DecodeFailures counts logs that could not be decoded
	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskwatcher_decode_failures_total",
			Help: "Total number of logs skipped because decoding failed",
		},
		[]string{"kind"},
	)

	// CreditsIssued tracks newly inserted credits per task
	CreditsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskwatcher_credits_issued_total",
			Help: "Total number of credits newly issued",
		},
		[]string{"task"},
	)

	// NotificationsTotal tracks notification attempts by result
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskwatcher_notifications_total",
			Help: "Total number of notification attempts",
		},
		[]string{"result"},
	)

	// SchedulerState is 1 for the current state and 0 for the others
	SchedulerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "taskwatcher_scheduler_state",
			Help: "Current scheduler state",
		},
		[]string{"state"},
	)

	// CycleErrors counts cycles that ended with an error
	CycleErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "taskwatcher_cycle_errors_total",
			Help: "Total number of polling cycles that ended with an error",
		},
	)

	// DBConnectionPoolUsage tracks database pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskwatcher_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
