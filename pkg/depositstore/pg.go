package depositstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/chainsafe/glitch-bridge/pkg/deposit"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the deposit store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) GetOrCreateScanState(ctx context.Context, name, network, monitorAddress string, startBlock uint64) (bool, error) {
	dao := &ScanStateDao{
		Name:           name,
		Network:        network,
		MonitorAddress: monitorAddress,
		AccumulatedFee: "0",
	}
	if startBlock > 0 {
		dao.LastScannedBlock = int64(startBlock - 1)
	}

	res, err := s.db.NewInsert().
		Model(dao).
		On("CONFLICT (name) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to create scan state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 0, nil
}

func (s *pgStore) GetWatermark(ctx context.Context, name string) (uint64, error) {
	var block int64
	err := s.db.NewSelect().
		Model((*ScanStateDao)(nil)).
		Column("last_scanned_block").
		Where("name = ?", name).
		Scan(ctx, &block)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get watermark: %w", err)
	}
	return uint64(block), nil
}

func (s *pgStore) InsertDepositsAndAdvanceWatermark(
	ctx context.Context,
	name string,
	block uint64,
	deposits []*deposit.Deposit,
) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := insertDeposits(ctx, tx, deposits); err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*ScanStateDao)(nil)).
			Set("last_scanned_block = GREATEST(last_scanned_block, ?)", int64(block)).
			Set("updated_at = current_timestamp").
			Where("name = ?", name).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to advance watermark: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return fmt.Errorf("advance watermark for %q: %w", name, err)
		}
		return nil
	})
}

// requireAffected returns ErrNotFound when res changed no rows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) InsertDeposits(ctx context.Context, deposits []*deposit.Deposit) (int, error) {
	return insertDeposits(ctx, s.db, deposits)
}

// insertDeposits inserts deposits, skipping rows whose source_tx_hash already exists.
func insertDeposits(ctx context.Context, db bun.IDB, deposits []*deposit.Deposit) (int, error) {
	if len(deposits) == 0 {
		return 0, nil
	}

	daos := make([]*DepositDao, len(deposits))
	for i, d := range deposits {
		daos[i] = toDepositDao(d)
	}

	res, err := db.NewInsert().
		Model(&daos).
		On("CONFLICT (source_tx_hash) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to insert deposits: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return int(n), nil
}

func (s *pgStore) PendingDeposits(ctx context.Context, name string) ([]*deposit.Deposit, error) {
	var daos []DepositDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("scanner_name = ?", name).
		Where("state = ?", string(deposit.StateToProcess)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deposits: %w", err)
	}
	return toDeposits(daos), nil
}

func (s *pgStore) StalledDeposits(ctx context.Context, name string, olderThan time.Time) ([]*deposit.Deposit, error) {
	var daos []DepositDao
	err := s.db.NewSelect().
		Model(&daos).
		Where("scanner_name = ?", name).
		Where("state = ?", string(deposit.StateProcessing)).
		Where("updated_at < ?", olderThan).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stalled deposits: %w", err)
	}
	return toDeposits(daos), nil
}

// transition moves deposit id into next, provided it is currently in a state
// that allows it. Terminal rows never match the guard.
func transition(
	ctx context.Context,
	db bun.IDB,
	id int64,
	next deposit.State,
	set func(q *bun.UpdateQuery) *bun.UpdateQuery,
) error {
	var from []string
	for _, st := range []deposit.State{deposit.StateToProcess, deposit.StateProcessing} {
		if st.CanTransition(next) {
			from = append(from, string(st))
		}
	}

	q := db.NewUpdate().
		Model((*DepositDao)(nil)).
		Set("state = ?", string(next)).
		Set("updated_at = current_timestamp").
		Where("id = ?", id).
		Where("state IN (?)", bun.In(from))
	if set != nil {
		q = set(q)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set deposit %d to %s: %w", id, next, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deposit %d to %s: %w", id, next, deposit.ErrInvalidTransition)
	}
	return nil
}

func (s *pgStore) SetProcessing(ctx context.Context, id int64) error {
	return transition(ctx, s.db, id, deposit.StateProcessing, nil)
}

func (s *pgStore) BeginProcessing(
	ctx context.Context,
	name string,
	id int64,
	fees deposit.FeeBreakdown,
	pct deposit.Percentage,
) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := incrementFeeCounter(ctx, tx, name, fees.BusinessFee); err != nil {
			return err
		}
		return transition(ctx, tx, id, deposit.StateProcessing, func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Set("network_fee_amount = ?::numeric", fees.NetworkFee.String()).
				Set("business_fee_amount = ?::numeric", fees.BusinessFee.String()).
				Set("business_fee_percentage = ?", pct.String())
		})
	})
}

func (s *pgStore) SetProcessed(ctx context.Context, id int64, destinationTxHash string) error {
	return transition(ctx, s.db, id, deposit.StateProcessed, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("destination_tx_hash = ?", destinationTxHash)
	})
}

func (s *pgStore) SetError(ctx context.Context, id int64, message string) error {
	return transition(ctx, s.db, id, deposit.StateError, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("error_message = ?", deposit.SanitizeText(message))
	})
}

func (s *pgStore) GetFeeCounter(ctx context.Context, name string) (*big.Int, error) {
	var raw string
	err := s.db.NewSelect().
		Model((*ScanStateDao)(nil)).
		ColumnExpr("accumulated_fee::text").
		Where("name = ?", name).
		Scan(ctx, &raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get fee counter: %w", err)
	}

	fee, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("fee counter %q is not an integer", raw)
	}
	return fee, nil
}

func (s *pgStore) SetFeeCounter(ctx context.Context, name string, amount *big.Int) error {
	res, err := s.db.NewUpdate().
		Model((*ScanStateDao)(nil)).
		Set("accumulated_fee = ?::numeric", amount.String()).
		Set("updated_at = current_timestamp").
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set fee counter: %w", err)
	}
	return requireAffected(res)
}

func (s *pgStore) IncrementFeeCounter(ctx context.Context, name string, amount *big.Int) error {
	return incrementFeeCounter(ctx, s.db, name, amount)
}

func incrementFeeCounter(ctx context.Context, db bun.IDB, name string, amount *big.Int) error {
	res, err := db.NewUpdate().
		Model((*ScanStateDao)(nil)).
		Set("accumulated_fee = accumulated_fee + ?::numeric", amount.String()).
		Set("updated_at = current_timestamp").
		Where("name = ?", name).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to increment fee counter: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return fmt.Errorf("increment fee counter for %q: %w", name, err)
	}
	return nil
}

func (s *pgStore) LastFeePaymentTime(ctx context.Context, name string) (*time.Time, error) {
	var paidAt bun.NullTime
	err := s.db.NewSelect().
		Model((*FeePaymentDao)(nil)).
		ColumnExpr("MAX(paid_at)").
		Where("scanner_name = ?", name).
		Scan(ctx, &paidAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get last fee payment: %w", err)
	}
	if paidAt.IsZero() {
		return nil, nil
	}
	t := paidAt.Time
	return &t, nil
}

// RecordFeePayment appends the payment and deducts the paid amount from the
// counter in one transaction. Fees accrued while the payout was in flight stay counted.
func (s *pgStore) RecordFeePayment(ctx context.Context, name, txHash string, amount *big.Int) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&FeePaymentDao{
				ScannerName:       name,
				DestinationTxHash: txHash,
				Amount:            amount.String(),
				PaidAt:            time.Now().UTC(),
			}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert fee payment: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*ScanStateDao)(nil)).
			Set("accumulated_fee = accumulated_fee - ?::numeric", amount.String()).
			Set("updated_at = current_timestamp").
			Where("name = ?", name).
			Where("accumulated_fee >= ?::numeric", amount.String()).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset fee counter: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return fmt.Errorf("fee counter for %q is missing or below %s: %w", name, amount, err)
		}
		return nil
	})
}

func (s *pgStore) GetDeposit(ctx context.Context, sourceTxHash string) (*deposit.Deposit, error) {
	dao := new(DepositDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("LOWER(source_tx_hash) = LOWER(?)", sourceTxHash).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}
	return toDeposit(dao), nil
}

func (s *pgStore) ListDepositsByWallet(ctx context.Context, wallet string, offset, limit int) ([]*deposit.Deposit, int, error) {
	var daos []DepositDao
	total, err := s.db.NewSelect().
		Model(&daos).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(source_from_address) = LOWER(?)", wallet).
				WhereOr("destination_address = ?", wallet)
		}).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deposits: %w", err)
	}
	return toDeposits(daos), total, nil
}

func (s *pgStore) ListScanStates(ctx context.Context) ([]*deposit.ScanState, error) {
	var daos []ScanStateDao
	err := s.db.NewSelect().
		Model(&daos).
		ColumnExpr("name, network, monitor_address, last_scanned_block, accumulated_fee::text AS accumulated_fee, updated_at").
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan states: %w", err)
	}
	out := make([]*deposit.ScanState, len(daos))
	for i := range daos {
		out[i] = toScanState(&daos[i])
	}
	return out, nil
}

func (s *pgStore) ListFeePayments(ctx context.Context, name string, limit int) ([]*deposit.FeePayment, error) {
	var daos []FeePaymentDao
	q := s.db.NewSelect().
		Model(&daos).
		Order("paid_at DESC").
		Limit(limit)
	if name != "" {
		q = q.Where("scanner_name = ?", name)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list fee payments: %w", err)
	}
	out := make([]*deposit.FeePayment, len(daos))
	for i := range daos {
		out[i] = toFeePayment(&daos[i])
	}
	return out, nil
}
