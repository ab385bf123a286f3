package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for TradeArena.
type Metrics struct {
	// --- Core ---
	CommandsApplied  *prometheus.CounterVec
	CommandsRejected *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	CoreSequence     prometheus.Gauge

	// --- Domain ---
	SwapsExecuted     *prometheus.CounterVec
	Registrations     prometheus.Counter
	ValuationsDone    prometheus.Counter
	PlacementsApplied prometheus.Counter
	PrizesPaid        prometheus.Counter

	// --- Channels & backpressure ---
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten    prometheus.Counter
	PersistTransfersWritten prometheus.Counter
	PersistBatchSize        prometheus.Histogram
	PersistBatchDur         prometheus.Histogram
	PersistErrors           *prometheus.CounterVec
	PersistLastSequence     prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		CommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_commands_applied_total",
			Help: "Commands successfully applied by the core",
		}, []string{"event_type"}),

		CommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_commands_rejected_total",
			Help: "Commands rejected by validation or collaborators",
		}, []string{"op", "kind"}),

		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_command_duration_seconds",
			Help:    "Time to apply a single command",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arena_core_sequence",
			Help: "Current global event sequence",
		}),

		SwapsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_swaps_executed_total",
			Help: "Swaps forwarded to the router and reconciled",
		}, []string{"asset_in", "asset_out"}),

		Registrations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_registrations_total",
			Help: "Participants registered",
		}),

		ValuationsDone: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_valuations_total",
			Help: "Participant final values computed",
		}),

		PlacementsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_placements_total",
			Help: "Participants placed by a judge",
		}),

		PrizesPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_prizes_paid_total",
			Help: "Prize collections paid out",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_persist_backpressure_total",
			Help: "Times the core blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistTransfersWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "arena_persist_transfers_written_total",
			Help: "Transfer audit rows written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "arena_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}
