package depositstore

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/chainsafe/glitch-bridge/pkg/deposit"
)

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("record not found")

// LedgerStore is the transactional store used by the relay engine.
type LedgerStore interface {
	// GetOrCreateScanState reports whether the scan state of name already existed.
	// A new state starts with its watermark just below startBlock.
	GetOrCreateScanState(ctx context.Context, name, network, monitorAddress string, startBlock uint64) (bool, error)
	GetWatermark(ctx context.Context, name string) (uint64, error)
	InsertDepositsAndAdvanceWatermark(ctx context.Context, name string, block uint64, deposits []*deposit.Deposit) error
	InsertDeposits(ctx context.Context, deposits []*deposit.Deposit) (int, error)

	PendingDeposits(ctx context.Context, name string) ([]*deposit.Deposit, error)
	StalledDeposits(ctx context.Context, name string, olderThan time.Time) ([]*deposit.Deposit, error)
	SetProcessing(ctx context.Context, id int64) error
	// BeginProcessing moves a TO_PROCESS deposit to PROCESSING, records its fees
	// on the row and adds the business fee to the network's fee counter.
	BeginProcessing(ctx context.Context, name string, id int64, fees deposit.FeeBreakdown, pct deposit.Percentage) error
	SetProcessed(ctx context.Context, id int64, destinationTxHash string) error
	SetError(ctx context.Context, id int64, message string) error

	GetFeeCounter(ctx context.Context, name string) (*big.Int, error)
	SetFeeCounter(ctx context.Context, name string, amount *big.Int) error
	IncrementFeeCounter(ctx context.Context, name string, amount *big.Int) error
	LastFeePaymentTime(ctx context.Context, name string) (*time.Time, error)
	RecordFeePayment(ctx context.Context, name, txHash string, amount *big.Int) error
}

// QueryStore serves read-only lookups for the deposit history API.
type QueryStore interface {
	GetDeposit(ctx context.Context, sourceTxHash string) (*deposit.Deposit, error)
	ListDepositsByWallet(ctx context.Context, wallet string, offset, limit int) ([]*deposit.Deposit, int, error)
	ListScanStates(ctx context.Context) ([]*deposit.ScanState, error)
	ListFeePayments(ctx context.Context, name string, limit int) ([]*deposit.FeePayment, error)
}

// Store combines every deposit persistence operation.
type Store interface {
	LedgerStore
	QueryStore
}
