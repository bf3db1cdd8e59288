package relayer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/internal/metrics"
	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	"github.com/chainsafe/glitch-bridge/pkg/glitch"
)

// FeeScheduler pays the accumulated business fee of one network to the treasury.
type FeeScheduler struct {
	name          string
	store         depositstore.LedgerStore
	dest          DestinationClient
	treasury      glitch.Address
	interval      time.Duration
	checkInterval time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// NewFeeScheduler creates a fee scheduler that pays at most once per interval.
func NewFeeScheduler(
	name string,
	treasury glitch.Address,
	interval, checkInterval time.Duration,
	store depositstore.LedgerStore,
	dest DestinationClient,
	logger *zap.Logger,
) *FeeScheduler {
	return &FeeScheduler{
		name:          name,
		store:         store,
		dest:          dest,
		treasury:      treasury,
		interval:      interval,
		checkInterval: checkInterval,
		logger:        logger.With(zap.String("component", "fee_scheduler")),
		now:           time.Now,
	}
}

// Run checks every checkInterval whether a payout is due.
func (f *FeeScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.checkInterval)
	defer ticker.Stop()

	for {
		if _, err := f.Tick(ctx, f.now()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Error("Fee settlement failed, retrying next tick", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("fee_scheduler", "settlement").Inc()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick pays the accumulated fee if the last payout is at least interval old.
// The counter is only reduced after the payout is finalized.
func (f *FeeScheduler) Tick(ctx context.Context, now time.Time) (bool, error) {
	last, err := f.store.LastFeePaymentTime(ctx, f.name)
	if err != nil {
		return false, err
	}
	if last != nil && now.Sub(*last) < f.interval {
		return false, nil
	}

	fee, err := f.store.GetFeeCounter(ctx, f.name)
	if err != nil {
		return false, fmt.Errorf("failed to read fee counter: %w", err)
	}
	metrics.AccumulatedFee.WithLabelValues(f.name).Set(metrics.BigToFloat(fee))
	if fee.Sign() <= 0 {
		return false, nil
	}

	balance, err := f.dest.FreeBalance(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read signer balance: %w", err)
	}
	if balance.Cmp(fee) < 0 {
		f.logger.Warn("Not enough funds to pay the business fee",
			zap.String("fee", fee.String()),
			zap.String("balance", balance.String()))
		return false, nil
	}

	f.logger.Info("Paying business fee", zap.String("fee", fee.String()), zap.String("treasury", f.treasury.SS58))

	start := time.Now()
	txHash, err := f.dest.Transfer(ctx, f.treasury, fee)
	if err != nil {
		metrics.TransactionsSent.WithLabelValues(f.name, "fee", "failed").Inc()
		return false, fmt.Errorf("fee transfer: %w", err)
	}
	metrics.TransferDuration.WithLabelValues(f.name, "fee").Observe(time.Since(start).Seconds())
	metrics.TransactionsSent.WithLabelValues(f.name, "fee", "finalized").Inc()

	err = retryStoreWrite(ctx, func() error {
		return f.store.RecordFeePayment(ctx, f.name, txHash, fee)
	})
	if err != nil {
		f.logger.Error("Fee paid but not recorded", zap.String("destination_tx_hash", txHash), zap.Error(err))
		return true, fmt.Errorf("failed to record fee payment: %w", err)
	}

	f.logger.Info("Business fee paid", zap.String("fee", fee.String()), zap.String("destination_tx_hash", txHash))
	return true, nil
}
