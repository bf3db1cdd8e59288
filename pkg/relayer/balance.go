package relayer

import (
	"context"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/internal/metrics"
)

// BalanceMonitor exports the signer balance and warns when it runs low.
type BalanceMonitor struct {
	name      string
	reader    BalanceReader
	threshold *big.Int
	interval  time.Duration
	logger    *zap.Logger
}

// NewBalanceMonitor creates a monitor. A nil threshold disables the warning.
func NewBalanceMonitor(name string, reader BalanceReader, threshold *big.Int, interval time.Duration, logger *zap.Logger) *BalanceMonitor {
	return &BalanceMonitor{
		name:      name,
		reader:    reader,
		threshold: threshold,
		interval:  interval,
		logger:    logger.With(zap.String("component", "balance_monitor")),
	}
}

func (m *BalanceMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if _, _, err := m.Check(ctx); err != nil {
			m.logger.Warn("Failed to read signer balance", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check reads the balance once and reports whether it is below the threshold.
func (m *BalanceMonitor) Check(ctx context.Context) (*big.Int, bool, error) {
	balance, err := m.reader.FreeBalance(ctx)
	if err != nil {
		return nil, false, err
	}
	metrics.SignerBalance.WithLabelValues(m.name).Set(metrics.BigToFloat(balance))

	low := m.threshold != nil && balance.Cmp(m.threshold) < 0
	if low {
		m.logger.Warn("Signer balance is low",
			zap.String("balance", balance.String()),
			zap.String("threshold", m.threshold.String()))
	}
	return balance, low, nil
}
