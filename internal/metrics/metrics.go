package metrics

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DepositsDetected counts deposits inserted by the scanner, by path (live or catchup)
	DepositsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glitch_bridge_deposits_detected_total",
			Help: "Total number of deposits persisted",
		},
		[]string{"network", "path"},
	)

	// DepositsProcessed counts deposit outcomes by resulting state
	DepositsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glitch_bridge_deposits_processed_total",
			Help: "Total number of deposits moved to a terminal state",
		},
		[]string{"network", "state"},
	)

	// TransferDuration tracks submission time until finalization
	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glitch_bridge_transfer_duration_seconds",
			Help:    "Destination transfer duration in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"network", "kind"},
	)

	// TransactionsSent counts destination submissions by kind (deposit, fee) and status
	TransactionsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glitch_bridge_transactions_sent_total",
			Help: "Total number of destination transactions submitted",
		},
		[]string{"network", "kind", "status"},
	)

	// LiquidityStops counts transfer cycles halted for lack of signer balance
	LiquidityStops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glitch_bridge_liquidity_stops_total",
			Help: "Transfer cycles stopped because the signer balance was insufficient",
		},
		[]string{"network"},
	)

	// PendingDeposits tracks deposits waiting for a transfer
	PendingDeposits = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glitch_bridge_pending_deposits",
			Help: "Number of TO_PROCESS deposits seen at the start of the last cycle",
		},
		[]string{"network"},
	)

	// LastScannedBlock tracks the persisted watermark
	LastScannedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glitch_bridge_last_scanned_block",
			Help: "Last scanned source block by network",
		},
		[]string{"network"},
	)

	// SignerBalance tracks the signer free balance in the smallest unit
	SignerBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glitch_bridge_signer_balance",
			Help: "Signer free balance on the destination ledger",
		},
		[]string{"network"},
	)

	// AccumulatedFee tracks the unsettled business fee counter
	AccumulatedFee = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glitch_bridge_accumulated_fee",
			Help: "Business fees accrued and not yet paid to the treasury",
		},
		[]string{"network"},
	)

	// TaskRestarts counts supervised task restarts
	TaskRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glitch_bridge_task_restarts_total",
			Help: "Total number of supervised task restarts",
		},
		[]string{"network", "task"},
	)

	// ErrorsTotal counts errors by component and type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glitch_bridge_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// BigToFloat converts an integer amount for use as a gauge value.
func BigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
