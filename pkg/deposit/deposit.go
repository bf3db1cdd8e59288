// Package deposit holds the domain model of the bridge: deposits detected on the
// source network, their processing state machine, per-network scan state and
// treasury fee payments.
package deposit

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// State is the processing state of a deposit.
type State string

const (
	StateToProcess  State = "TO_PROCESS"
	StateProcessing State = "PROCESSING"
	StateProcessed  State = "PROCESSED"
	StateError      State = "ERROR"
)

// ErrInvalidTransition is returned when a state change is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid deposit state transition")

// IsTerminal reports whether no further transitions are allowed from s.
func (s State) IsTerminal() bool {
	return s == StateProcessed || s == StateError
}

// CanTransition reports whether a deposit may move from s to next.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateToProcess:
		return next == StateProcessing || next == StateError
	case StateProcessing:
		return next == StateProcessed
	default:
		return false
	}
}

// Deposit is one TransferToGlitch event observed on a source network.
type Deposit struct {
	ID                    int64
	ScannerName           string
	SourceTxHash          string
	SourceFromAddress     string
	SourceBlockNumber     uint64
	Amount                string
	DestinationAddress    string
	State                 State
	DestinationTxHash     string
	NetworkFeeAmount      string
	BusinessFeeAmount     string
	BusinessFeePercentage string
	ErrorMessage          string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// New creates a deposit in the initial TO_PROCESS state. The destination is
// passed through SanitizeText.
func New(scannerName, sourceTxHash, from string, block uint64, amount *big.Int, destination string) *Deposit {
	return &Deposit{
		ScannerName:        scannerName,
		SourceTxHash:       sourceTxHash,
		SourceFromAddress:  from,
		SourceBlockNumber:  block,
		Amount:             amount.String(),
		DestinationAddress: SanitizeText(destination),
		State:              StateToProcess,
	}
}

// SanitizeText replaces NUL bytes and invalid UTF-8 in s with U+FFFD so it can
// be stored in a postgres text column.
func SanitizeText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "\uFFFD")
}

// ParseAmount parses the stored amount as a non-negative base-10 integer.
func (d *Deposit) ParseAmount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(d.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("amount %q is not an integer", d.Amount)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q is negative", d.Amount)
	}
	return amount, nil
}

// RecordedFees rebuilds the fee split fixed when d entered PROCESSING.
// ok is false when d carries no recorded fees.
func (d *Deposit) RecordedFees() (fees FeeBreakdown, ok bool) {
	amount, err := d.ParseAmount()
	if err != nil {
		return FeeBreakdown{}, false
	}
	networkFee, ok1 := new(big.Int).SetString(d.NetworkFeeAmount, 10)
	businessFee, ok2 := new(big.Int).SetString(d.BusinessFeeAmount, 10)
	if !ok1 || !ok2 || networkFee.Sign() < 0 || businessFee.Sign() < 0 {
		return FeeBreakdown{}, false
	}

	toTransfer := new(big.Int).Sub(amount, networkFee)
	payout := new(big.Int).Sub(toTransfer, businessFee)
	if payout.Sign() < 0 {
		return FeeBreakdown{}, false
	}
	return FeeBreakdown{
		NetworkFee:       networkFee,
		AmountToTransfer: toTransfer,
		BusinessFee:      businessFee,
		Payout:           payout,
	}, true
}

// ScanState is the per-network scanner bookkeeping row.
type ScanState struct {
	Name             string
	Network          string
	MonitorAddress   string
	LastScannedBlock uint64
	AccumulatedFee   string
	UpdatedAt        time.Time
}

// FeePayment records one settlement of accumulated business fees to the treasury.
type FeePayment struct {
	ID                int64
	ScannerName       string
	DestinationTxHash string
	Amount            string
	Time              time.Time
}
