package relayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/internal/metrics"
	"github.com/chainsafe/glitch-bridge/pkg/config"
	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	"github.com/chainsafe/glitch-bridge/pkg/ethereum"
)

// ErrSubscriptionClosed is returned when the head subscription ends without an error.
var ErrSubscriptionClosed = errors.New("head subscription closed")

// Scanner turns deposit logs of one source network into deposit records.
//
// Each call to Run is one connection session: it dials, subscribes to new
// heads, launches catch up and then follows the chain until the transport
// fails. The supervisor restarts it.
type Scanner struct {
	cfg    *config.NetworkConfig
	dial   SourceDialer
	store  depositstore.LedgerStore
	logger *zap.Logger

	connected atomic.Bool
}

// NewScanner creates a scanner for one network.
func NewScanner(cfg *config.NetworkConfig, dial SourceDialer, store depositstore.LedgerStore, logger *zap.Logger) *Scanner {
	return &Scanner{
		cfg:    cfg,
		dial:   dial,
		store:  store,
		logger: logger.With(zap.String("component", "scanner")),
	}
}

// Connected reports whether at least one session has subscribed successfully.
func (s *Scanner) Connected() bool {
	return s.connected.Load()
}

// Run runs one scanner session.
func (s *Scanner) Run(ctx context.Context) error {
	logger := s.logger.With(zap.String("session", uuid.New().String()))

	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.cfg.Network, err)
	}
	defer client.Close()

	existed, err := s.store.GetOrCreateScanState(ctx, s.cfg.Name, s.cfg.Network, s.cfg.MonitorAddress, s.cfg.StartBlock)
	if err != nil {
		return fmt.Errorf("failed to load scan state: %w", err)
	}

	heads := make(chan *types.Header, 16)
	sub, err := client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	s.connected.Store(true)
	logger.Info("Connection open, following new heads", zap.String("network", s.cfg.Network))

	sessionCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.catchUp(sessionCtx, client, existed); err != nil && sessionCtx.Err() == nil {
			logger.Error("Catch up failed", zap.Error(err))
			metrics.ErrorsTotal.WithLabelValues("scanner", "catchup").Inc()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-sub.Err():
			if !ok || err == nil {
				return ErrSubscriptionClosed
			}
			return fmt.Errorf("head subscription: %w", err)
		case head := <-heads:
			if err := s.handleHead(ctx, client, head); err != nil {
				logger.Error("Failed to scan new head",
					zap.Uint64("head", head.Number.Uint64()),
					zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues("scanner", "head").Inc()
			}
		}
	}
}

// handleHead scans (watermark, head - confirmations] and advances the
// watermark together with the deposits found, one chunk at a time.
func (s *Scanner) handleHead(ctx context.Context, client SourceClient, head *types.Header) error {
	number := head.Number.Uint64()
	if number < s.cfg.Confirmations {
		return nil
	}
	target := number - s.cfg.Confirmations

	watermark, err := s.store.GetWatermark(ctx, s.cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}
	if target <= watermark {
		return nil
	}

	s.logger.Debug("New head",
		zap.Uint64("head", number),
		zap.Uint64("from_block", watermark+1),
		zap.Uint64("to_block", target))

	return walkRange(ctx, client, watermark+1, target, s.cfg.MaxBlockRange, s.logger,
		func(ctx context.Context, events []*ethereum.DepositEvent, end uint64) error {
			deposits := ethereum.ToDeposits(s.cfg.Name, events)
			if err := s.store.InsertDepositsAndAdvanceWatermark(ctx, s.cfg.Name, end, deposits); err != nil {
				return fmt.Errorf("failed to persist block %d: %w", end, err)
			}
			if len(deposits) > 0 {
				s.logger.Info("Deposits found",
					zap.Int("count", len(deposits)),
					zap.Uint64("to_block", end))
			}
			metrics.DepositsDetected.WithLabelValues(s.cfg.Name, "live").Add(float64(len(deposits)))
			metrics.LastScannedBlock.WithLabelValues(s.cfg.Name).Set(float64(end))
			return nil
		})
}
