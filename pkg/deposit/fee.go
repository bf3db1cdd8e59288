package deposit

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// maxBasisPoints is 100%.
const maxBasisPoints = 10_000

var (
	// ErrFeeExceedsAmount is returned when the network fee is larger than the deposit itself.
	ErrFeeExceedsAmount = errors.New("network fee exceeds deposit amount")

	basisPointsPerPercent = decimal.NewFromInt(100)
	basisPointsDenom      = big.NewInt(maxBasisPoints)
)

// Percentage is a fee percentage in basis points (1/100 of a percent).
type Percentage uint32

// ParsePercentage parses a decimal percentage such as "2" or "2.55".
// Precision beyond basis points is rejected rather than rounded.
func ParsePercentage(s string) (Percentage, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid percentage %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid percentage %q: negative", s)
	}

	bp := d.Mul(basisPointsPerPercent)
	if !bp.IsInteger() {
		return 0, fmt.Errorf("invalid percentage %q: finer than a basis point", s)
	}
	if bp.GreaterThan(decimal.NewFromInt(maxBasisPoints)) {
		return 0, fmt.Errorf("invalid percentage %q: above 100", s)
	}

	return Percentage(bp.IntPart()), nil
}

// String formats p as a decimal percentage, e.g. 250 -> "2.5".
func (p Percentage) String() string {
	return decimal.New(int64(p), -2).String()
}

// Of returns floor(amount * p / 100).
func (p Percentage) Of(amount *big.Int) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(int64(p)))
	return out.Quo(out, basisPointsDenom)
}

// FeeBreakdown is the split of one deposit into the fees and what the recipient receives.
type FeeBreakdown struct {
	NetworkFee       *big.Int
	AmountToTransfer *big.Int
	BusinessFee      *big.Int
	Payout           *big.Int
}

// SplitFees computes the amounts for a deposit:
//
//	amountToTransfer = amount - networkFee
//	businessFee      = floor(amountToTransfer * pct / 100)
//	payout           = amountToTransfer - businessFee
func SplitFees(amount, networkFee *big.Int, pct Percentage) (FeeBreakdown, error) {
	if networkFee == nil {
		networkFee = new(big.Int)
	}
	if amount.Sign() < 0 || networkFee.Sign() < 0 {
		return FeeBreakdown{}, fmt.Errorf("negative amount or fee")
	}
	if networkFee.Cmp(amount) > 0 {
		return FeeBreakdown{}, fmt.Errorf("%w: fee %s, amount %s", ErrFeeExceedsAmount, networkFee, amount)
	}

	toTransfer := new(big.Int).Sub(amount, networkFee)
	businessFee := pct.Of(toTransfer)

	return FeeBreakdown{
		NetworkFee:       new(big.Int).Set(networkFee),
		AmountToTransfer: toTransfer,
		BusinessFee:      businessFee,
		Payout:           new(big.Int).Sub(toTransfer, businessFee),
	}, nil
}
