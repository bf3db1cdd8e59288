package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/internal/metrics"
	"github.com/chainsafe/glitch-bridge/pkg/deposit"
	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	"github.com/chainsafe/glitch-bridge/pkg/glitch"
)

// recordTimeout bounds retries of a store write that follows a finalized transfer.
const recordTimeout = 30 * time.Second

// TransferEngine pays out pending deposits of one network.
type TransferEngine struct {
	name          string
	store         depositstore.LedgerStore
	dest          DestinationClient
	pct           deposit.Percentage
	feeEstimation bool
	ss58Prefix    uint16
	interval      time.Duration
	retryAfter    time.Duration
	logger        *zap.Logger
	now           func() time.Time
}

// TransferEngineConfig holds the settings of a TransferEngine.
type TransferEngineConfig struct {
	Name                  string
	BusinessFeePercentage deposit.Percentage
	FeeEstimation         bool
	// SS58Prefix is the destination network prefix. Destinations encoded for
	// another network are paid to the same account and only logged.
	SS58Prefix uint16
	Interval   time.Duration
	// ProcessingRetryAfter is how long a PROCESSING deposit stays untouched
	// before it is submitted again. 0 disables retries.
	ProcessingRetryAfter time.Duration
}

// NewTransferEngine creates a transfer engine.
func NewTransferEngine(
	cfg TransferEngineConfig,
	store depositstore.LedgerStore,
	dest DestinationClient,
	logger *zap.Logger,
) *TransferEngine {
	return &TransferEngine{
		name:          cfg.Name,
		store:         store,
		dest:          dest,
		pct:           cfg.BusinessFeePercentage,
		feeEstimation: cfg.FeeEstimation,
		ss58Prefix:    cfg.SS58Prefix,
		interval:      cfg.Interval,
		retryAfter:    cfg.ProcessingRetryAfter,
		logger:        logger.With(zap.String("component", "transfer_engine")),
		now:           time.Now,
	}
}

// Run processes one cycle per interval until ctx is done. Store failures end
// the run so the supervisor restarts it.
func (t *TransferEngine) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if err := t.ProcessCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type workItem struct {
	deposit *deposit.Deposit
	amount  *big.Int
	retry   bool
}

// ProcessCycle runs one pass over the pending deposits.
func (t *TransferEngine) ProcessCycle(ctx context.Context) error {
	items, err := t.loadWork(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	balance, err := t.dest.FreeBalance(ctx)
	if err != nil {
		t.logger.Warn("Failed to read signer balance, skipping cycle", zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("transfer_engine", "balance").Inc()
		return nil
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		d := item.deposit
		logger := t.logger.With(
			zap.Int64("deposit_id", d.ID),
			zap.String("source_tx_hash", d.SourceTxHash),
			zap.String("amount", d.Amount),
			zap.String("destination", d.DestinationAddress))

		if item.amount == nil {
			t.fail(ctx, logger, item, "Error with amount")
			continue
		}

		if item.amount.Cmp(balance) > 0 {
			logger.Warn("Not enough signer balance, stopping cycle", zap.String("balance", balance.String()))
			metrics.LiquidityStops.WithLabelValues(t.name).Inc()
			return nil
		}

		if err := t.process(ctx, logger, item); err != nil {
			return err
		}
	}
	return nil
}

// loadWork reads TO_PROCESS deposits plus stalled PROCESSING ones, ordered by
// ascending amount. Deposits with unparsable amounts come first.
func (t *TransferEngine) loadWork(ctx context.Context) ([]workItem, error) {
	pending, err := t.store.PendingDeposits(ctx, t.name)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending deposits: %w", err)
	}
	metrics.PendingDeposits.WithLabelValues(t.name).Set(float64(len(pending)))

	items := make([]workItem, 0, len(pending))
	for _, d := range pending {
		items = append(items, newWorkItem(d, false))
	}

	if t.retryAfter > 0 {
		stalled, err := t.store.StalledDeposits(ctx, t.name, t.now().Add(-t.retryAfter))
		if err != nil {
			return nil, fmt.Errorf("failed to load stalled deposits: %w", err)
		}
		for _, d := range stalled {
			items = append(items, newWorkItem(d, true))
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].amount, items[j].amount
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Cmp(b) < 0
		}
	})
	return items, nil
}

func newWorkItem(d *deposit.Deposit, retry bool) workItem {
	item := workItem{deposit: d, retry: retry}
	if amount, err := d.ParseAmount(); err == nil {
		item.amount = amount
	}
	return item
}

// fail moves a TO_PROCESS deposit to ERROR. PROCESSING deposits cannot fail
// and are only logged.
func (t *TransferEngine) fail(ctx context.Context, logger *zap.Logger, item workItem, message string) {
	if item.retry {
		logger.Error("In-flight deposit is invalid, leaving for operator", zap.String("reason", message))
		return
	}
	logger.Warn("Rejecting deposit", zap.String("reason", message))
	if err := t.store.SetError(ctx, item.deposit.ID, message); err != nil {
		logger.Error("Failed to record deposit error", zap.Error(err))
		return
	}
	metrics.DepositsProcessed.WithLabelValues(t.name, string(deposit.StateError)).Inc()
}

func (t *TransferEngine) process(ctx context.Context, logger *zap.Logger, item workItem) error {
	d := item.deposit

	dest, err := glitch.ParseAddress(d.DestinationAddress)
	if err != nil {
		t.fail(ctx, logger, item, "Error with glitch address: "+err.Error())
		return nil
	}

	if dest.Network != t.ss58Prefix {
		logger.Warn("Destination encoded for another SS58 network",
			zap.Uint16("address_prefix", dest.Network),
			zap.Uint16("expected_prefix", t.ss58Prefix))
	}

	var fees deposit.FeeBreakdown
	if item.retry {
		recorded, ok := d.RecordedFees()
		if !ok {
			logger.Error("In-flight deposit has no recorded fees, leaving for operator")
			return nil
		}
		fees = recorded
		logger.Info("Retrying in-flight deposit")
	} else {
		var ok bool
		if fees, ok = t.splitFees(ctx, logger, item, dest); !ok {
			return nil
		}
		if err := t.store.BeginProcessing(ctx, t.name, d.ID, fees, t.pct); err != nil {
			if errors.Is(err, deposit.ErrInvalidTransition) {
				logger.Warn("Deposit already claimed", zap.Error(err))
				return nil
			}
			return fmt.Errorf("failed to start processing deposit %d: %w", d.ID, err)
		}
	}

	logger.Info("Transferring deposit",
		zap.String("network_fee", fees.NetworkFee.String()),
		zap.String("business_fee", fees.BusinessFee.String()),
		zap.String("payout", fees.Payout.String()))

	start := time.Now()
	txHash, err := t.dest.Transfer(ctx, dest, fees.Payout)
	if err != nil {
		logger.Error("Transfer failed, deposit left PROCESSING", zap.Error(err))
		metrics.TransactionsSent.WithLabelValues(t.name, "deposit", "failed").Inc()
		return nil
	}
	metrics.TransferDuration.WithLabelValues(t.name, "deposit").Observe(time.Since(start).Seconds())
	metrics.TransactionsSent.WithLabelValues(t.name, "deposit", "finalized").Inc()

	err = retryStoreWrite(ctx, func() error {
		return t.store.SetProcessed(ctx, d.ID, txHash)
	})
	if err != nil {
		logger.Error("Transfer finalized but not recorded", zap.String("destination_tx_hash", txHash), zap.Error(err))
		return fmt.Errorf("failed to record deposit %d as processed: %w", d.ID, err)
	}

	metrics.DepositsProcessed.WithLabelValues(t.name, string(deposit.StateProcessed)).Inc()
	logger.Info("Deposit processed", zap.String("destination_tx_hash", txHash))
	return nil
}

// splitFees quotes the network fee and splits the deposit. ok is false when
// the deposit was rejected or the quote should be retried next cycle.
func (t *TransferEngine) splitFees(
	ctx context.Context,
	logger *zap.Logger,
	item workItem,
	dest glitch.Address,
) (deposit.FeeBreakdown, bool) {
	networkFee := new(big.Int)
	if t.feeEstimation {
		var err error
		networkFee, err = t.dest.QuoteTransferFee(ctx, dest, item.amount)
		if err != nil {
			logger.Warn("Failed to estimate network fee, retrying next cycle", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("transfer_engine", "fee_quote").Inc()
			return deposit.FeeBreakdown{}, false
		}
	}

	fees, err := deposit.SplitFees(item.amount, networkFee, t.pct)
	if err != nil {
		t.fail(ctx, logger, item, err.Error())
		return deposit.FeeBreakdown{}, false
	}
	return fees, true
}

// retryStoreWrite retries op with exponential backoff. Invalid transitions are permanent.
func retryStoreWrite(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = recordTimeout

	return backoff.Retry(func() error {
		err := op()
		if errors.Is(err, deposit.ErrInvalidTransition) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
