package relayer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/internal/metrics"
	"github.com/chainsafe/glitch-bridge/pkg/ethereum"
)

// maxNarrowings bounds how often one walk may shrink its chunk after range errors.
const maxNarrowings = 16

// commitFunc persists the deposits found in a chunk ending at block end.
type commitFunc func(ctx context.Context, events []*ethereum.DepositEvent, end uint64) error

// walkRange fetches deposits in [from, to] in chunks of at most maxRange blocks
// (0 is unbounded) and commits each chunk in order. A range-limited provider
// error narrows the chunk to the reported bound, or halves it when the bound
// is unusable, and retries.
func walkRange(
	ctx context.Context,
	client SourceClient,
	from, to, maxRange uint64,
	logger *zap.Logger,
	commit commitFunc,
) error {
	span := maxRange
	narrowings := 0

	for start := from; start <= to; {
		end := to
		if span > 0 && end-start >= span {
			end = start + span - 1
		}

		events, err := client.FetchDeposits(ctx, start, &end)
		if err != nil {
			if !errors.Is(err, ethereum.ErrRangeLimited) || narrowings >= maxNarrowings {
				return err
			}
			narrowed, ok := narrowEnd(err, start, end)
			if !ok {
				return err
			}
			span = narrowed - start + 1
			narrowings++
			logger.Warn("Log query range limited, narrowing",
				zap.Uint64("from", start),
				zap.Uint64("to", end),
				zap.Uint64("narrowed_to", narrowed))
			continue
		}

		if err := commit(ctx, events, end); err != nil {
			return err
		}
		start = end + 1
	}
	return nil
}

// narrowEnd picks a smaller chunk end after a range error for [start, end].
func narrowEnd(err error, start, end uint64) (uint64, bool) {
	if end == start {
		return 0, false
	}
	if bound, ok := ethereum.ParseRangeLimit(err); ok && bound >= start && bound < end {
		return bound, true
	}
	return start + (end-start)/2, true
}

// catchUp inserts every deposit between the persisted watermark and the latest
// block without moving the watermark, which the live path owns.
func (s *Scanner) catchUp(ctx context.Context, client SourceClient, existed bool) error {
	if !existed {
		s.logger.Info("Scan state created, nothing to catch up")
		return nil
	}

	watermark, err := s.store.GetWatermark(ctx, s.cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}
	latest, err := client.LatestBlockNumber(ctx)
	if err != nil {
		return err
	}
	if latest <= watermark {
		s.logger.Info("Catch up not needed", zap.Uint64("watermark", watermark), zap.Uint64("latest", latest))
		return nil
	}

	s.logger.Info("Starting catch up",
		zap.Uint64("from_block", watermark+1),
		zap.Uint64("to_block", latest))

	total := 0
	err = walkRange(ctx, client, watermark+1, latest, s.cfg.MaxBlockRange, s.logger,
		func(ctx context.Context, events []*ethereum.DepositEvent, _ uint64) error {
			n, err := s.store.InsertDeposits(ctx, ethereum.ToDeposits(s.cfg.Name, events))
			if err != nil {
				return fmt.Errorf("failed to insert caught up deposits: %w", err)
			}
			total += n
			metrics.DepositsDetected.WithLabelValues(s.cfg.Name, "catchup").Add(float64(n))
			return nil
		})
	if err != nil {
		return fmt.Errorf("catch up: %w", err)
	}

	s.logger.Info("Finished catch up", zap.Int("inserted", total))
	return nil
}
