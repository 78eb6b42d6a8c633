package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the dispatcher, crank, and indexer
// export.
type Metrics struct {
	// --- Operation dispatch ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Trading ---
	TradesExecuted   *prometheus.CounterVec
	TradingFeeCharged prometheus.Counter
	MatcherRejections prometheus.Counter

	// --- Liquidation ---
	LiquidationsTriggered prometheus.Counter
	LiquidationsCompleted *prometheus.CounterVec
	LiquidationFeeCharged prometheus.Counter
	InsuranceFundBalance  prometheus.Gauge

	// --- Crank ---
	CrankRuns            prometheus.Counter
	CrankDuration        prometheus.Histogram
	CrankAccountsScanned prometheus.Counter
	RiskReductionActive  prometheus.Gauge
	WarmupPaused         prometheus.Gauge
	LossAccum            prometheus.Gauge

	// --- Warmup / haircut ---
	WarmupHaircutRatio  prometheus.Gauge
	WarmupDustSocialized prometheus.Counter

	// --- Indexer (Postgres + NATS) ---
	IndexerSnapshotsWritten prometheus.Counter
	IndexerSnapshotDuration prometheus.Histogram
	IndexerWriteErrors      *prometheus.CounterVec
	IndexerNotificationsSent *prometheus.CounterVec
	IndexerLastSlot         prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers every metric.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_ops_applied_total",
			Help: "Operations dispatched and committed, by tag",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_ops_rejected_total",
			Help: "Operations rejected before commit, by tag and error code",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "percolat_op_duration_seconds",
			Help:    "Time to decode, apply, and commit a single operation",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_trades_executed_total",
			Help: "Trades executed, by path (no_cpi/cpi)",
		}, []string{"path"}),

		TradingFeeCharged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_trading_fee_charged_total",
			Help: "Trading fee charged to insurance, collateral units",
		}),

		MatcherRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_matcher_rejections_total",
			Help: "CPI trades rejected by the external matcher",
		}),

		LiquidationsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_liquidations_triggered_total",
			Help: "Accounts found undermargined by the crank scan",
		}),

		LiquidationsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_liquidations_completed_total",
			Help: "Liquidations completed, by outcome (partial/full)",
		}, []string{"outcome"}),

		LiquidationFeeCharged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_liquidation_fee_charged_total",
			Help: "Liquidation fee charged to insurance, collateral units",
		}),

		InsuranceFundBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "percolat_insurance_fund_balance",
			Help: "Current insurance fund balance",
		}),

		CrankRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_crank_runs_total",
			Help: "Keeper crank sweeps executed",
		}),

		CrankDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "percolat_crank_duration_seconds",
			Help:    "Time to complete one crank sweep",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1.0, 5.0},
		}),

		CrankAccountsScanned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_crank_accounts_scanned_total",
			Help: "Accounts processed across all crank sweeps",
		}),

		RiskReductionActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "percolat_risk_reduction_active",
			Help: "1 if risk_reduction_only is set, else 0",
		}),

		WarmupPaused: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "percolat_warmup_paused",
			Help: "1 if warmup_paused is set, else 0",
		}),

		LossAccum: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "percolat_loss_accum",
			Help: "Current loss_accum balance",
		}),

		WarmupHaircutRatio: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "percolat_warmup_haircut_ratio",
			Help: "Most recent two-pass settlement's Pass B haircut ratio",
		}),

		WarmupDustSocialized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_warmup_dust_socialized_total",
			Help: "Reserved PnL destroyed by a haircut below 1.0",
		}),

		IndexerSnapshotsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "percolat_indexer_snapshots_written_total",
			Help: "Slab snapshots archived to Postgres",
		}),

		IndexerSnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "percolat_indexer_snapshot_duration_seconds",
			Help:    "Time to archive one slab snapshot",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		IndexerWriteErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_indexer_write_errors_total",
			Help: "Postgres write failures, by stage",
		}, []string{"stage"}),

		IndexerNotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_indexer_notifications_sent_total",
			Help: "NATS notifications published, by subject",
		}, []string{"subject"}),

		IndexerLastSlot: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "percolat_indexer_last_slot",
			Help: "Slot of the last archived snapshot",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_query_requests_total",
			Help: "Query API requests, by endpoint and status",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "percolat_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "percolat_query_errors_total",
			Help: "Query API errors, by endpoint and code",
		}, []string{"endpoint", "code"}),
	}
}
