package relayer

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainsafe/glitch-bridge/pkg/deposit"
	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	"github.com/chainsafe/glitch-bridge/pkg/ethereum"
	"github.com/chainsafe/glitch-bridge/pkg/glitch"
)

// MockSourceClient is a mock implementation of SourceClient
type MockSourceClient struct {
	SubscribeNewHeadFunc  func(ctx context.Context, ch chan<- *types.Header) (geth.Subscription, error)
	LatestBlockNumberFunc func(ctx context.Context) (uint64, error)
	FetchDepositsFunc     func(ctx context.Context, from uint64, to *uint64) ([]*ethereum.DepositEvent, error)

	mu     sync.Mutex
	ranges [][2]uint64
	closed bool
}

func (m *MockSourceClient) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (geth.Subscription, error) {
	if m.SubscribeNewHeadFunc != nil {
		return m.SubscribeNewHeadFunc(ctx, ch)
	}
	return newMockSubscription(), nil
}

func (m *MockSourceClient) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if m.LatestBlockNumberFunc != nil {
		return m.LatestBlockNumberFunc(ctx)
	}
	return 0, nil
}

func (m *MockSourceClient) FetchDeposits(ctx context.Context, from uint64, to *uint64) ([]*ethereum.DepositEvent, error) {
	m.mu.Lock()
	m.ranges = append(m.ranges, [2]uint64{from, *to})
	m.mu.Unlock()
	if m.FetchDepositsFunc != nil {
		return m.FetchDepositsFunc(ctx, from, to)
	}
	return nil, nil
}

func (m *MockSourceClient) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *MockSourceClient) Ranges() [][2]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]uint64{}, m.ranges...)
}

type mockSubscription struct {
	errCh chan error
	once  sync.Once
}

func newMockSubscription() *mockSubscription {
	return &mockSubscription{errCh: make(chan error, 1)}
}

func (s *mockSubscription) Err() <-chan error { return s.errCh }

func (s *mockSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.errCh) })
}

// MockDestination is a mock implementation of DestinationClient
type MockDestination struct {
	FreeBalanceFunc      func(ctx context.Context) (*big.Int, error)
	QuoteTransferFeeFunc func(ctx context.Context, dest glitch.Address, amount *big.Int) (*big.Int, error)
	TransferFunc         func(ctx context.Context, dest glitch.Address, amount *big.Int) (string, error)

	mu        sync.Mutex
	transfers []sentTransfer
}

type sentTransfer struct {
	To     string
	Amount string
}

func (m *MockDestination) FreeBalance(ctx context.Context) (*big.Int, error) {
	if m.FreeBalanceFunc != nil {
		return m.FreeBalanceFunc(ctx)
	}
	return big.NewInt(0), nil
}

func (m *MockDestination) QuoteTransferFee(ctx context.Context, dest glitch.Address, amount *big.Int) (*big.Int, error) {
	if m.QuoteTransferFeeFunc != nil {
		return m.QuoteTransferFeeFunc(ctx, dest, amount)
	}
	return big.NewInt(0), nil
}

func (m *MockDestination) Transfer(ctx context.Context, dest glitch.Address, amount *big.Int) (string, error) {
	if m.TransferFunc != nil {
		hash, err := m.TransferFunc(ctx, dest, amount)
		if err != nil {
			return "", err
		}
		m.record(dest, amount)
		return hash, nil
	}
	m.record(dest, amount)
	return "0xglitch-" + amount.String(), nil
}

func (m *MockDestination) record(dest glitch.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, sentTransfer{To: dest.SS58, Amount: amount.String()})
}

func (m *MockDestination) Transfers() []sentTransfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentTransfer{}, m.transfers...)
}

// memStore is an in-memory LedgerStore with the same guards as the postgres store.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	states   map[string]*deposit.ScanState
	fees     map[string]*big.Int
	deposits []*deposit.Deposit
	payments []*deposit.FeePayment

	// failAdvance makes InsertDepositsAndAdvanceWatermark fail
	failAdvance error
}

var _ depositstore.LedgerStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		states: make(map[string]*deposit.ScanState),
		fees:   make(map[string]*big.Int),
	}
}

func (s *memStore) GetOrCreateScanState(_ context.Context, name, network, monitorAddress string, startBlock uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[name]; ok {
		return true, nil
	}
	st := &deposit.ScanState{Name: name, Network: network, MonitorAddress: monitorAddress}
	if startBlock > 0 {
		st.LastScannedBlock = startBlock - 1
	}
	s.states[name] = st
	s.fees[name] = new(big.Int)
	return false, nil
}

func (s *memStore) GetWatermark(_ context.Context, name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	if !ok {
		return 0, depositstore.ErrNotFound
	}
	return st.LastScannedBlock, nil
}

func (s *memStore) insertLocked(deposits []*deposit.Deposit) int {
	n := 0
	for _, d := range deposits {
		dup := false
		for _, existing := range s.deposits {
			if existing.SourceTxHash == d.SourceTxHash {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		s.nextID++
		c := *d
		c.ID = s.nextID
		c.State = deposit.StateToProcess
		c.UpdatedAt = time.Now()
		s.deposits = append(s.deposits, &c)
		n++
	}
	return n
}

func (s *memStore) InsertDepositsAndAdvanceWatermark(_ context.Context, name string, block uint64, deposits []*deposit.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAdvance != nil {
		return s.failAdvance
	}
	st, ok := s.states[name]
	if !ok {
		return depositstore.ErrNotFound
	}
	s.insertLocked(deposits)
	if block > st.LastScannedBlock {
		st.LastScannedBlock = block
	}
	return nil
}

func (s *memStore) InsertDeposits(_ context.Context, deposits []*deposit.Deposit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(deposits), nil
}

func (s *memStore) byState(name string, state deposit.State, olderThan *time.Time) []*deposit.Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*deposit.Deposit
	for _, d := range s.deposits {
		if d.ScannerName != name || d.State != state {
			continue
		}
		if olderThan != nil && !d.UpdatedAt.Before(*olderThan) {
			continue
		}
		c := *d
		out = append(out, &c)
	}
	return out
}

func (s *memStore) PendingDeposits(_ context.Context, name string) ([]*deposit.Deposit, error) {
	return s.byState(name, deposit.StateToProcess, nil), nil
}

func (s *memStore) StalledDeposits(_ context.Context, name string, olderThan time.Time) ([]*deposit.Deposit, error) {
	return s.byState(name, deposit.StateProcessing, &olderThan), nil
}

func (s *memStore) transitionLocked(id int64, next deposit.State, apply func(d *deposit.Deposit)) error {
	for _, d := range s.deposits {
		if d.ID != id {
			continue
		}
		if !d.State.CanTransition(next) {
			return deposit.ErrInvalidTransition
		}
		d.State = next
		d.UpdatedAt = time.Now()
		if apply != nil {
			apply(d)
		}
		return nil
	}
	return deposit.ErrInvalidTransition
}

func (s *memStore) SetProcessing(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, deposit.StateProcessing, nil)
}

func (s *memStore) BeginProcessing(_ context.Context, name string, id int64, fees deposit.FeeBreakdown, pct deposit.Percentage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fee, ok := s.fees[name]
	if !ok {
		return depositstore.ErrNotFound
	}
	err := s.transitionLocked(id, deposit.StateProcessing, func(d *deposit.Deposit) {
		d.NetworkFeeAmount = fees.NetworkFee.String()
		d.BusinessFeeAmount = fees.BusinessFee.String()
		d.BusinessFeePercentage = pct.String()
	})
	if err != nil {
		return err
	}
	fee.Add(fee, fees.BusinessFee)
	return nil
}

func (s *memStore) SetProcessed(_ context.Context, id int64, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, deposit.StateProcessed, func(d *deposit.Deposit) {
		d.DestinationTxHash = txHash
	})
}

func (s *memStore) SetError(_ context.Context, id int64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(id, deposit.StateError, func(d *deposit.Deposit) {
		d.ErrorMessage = message
	})
}

func (s *memStore) GetFeeCounter(_ context.Context, name string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fee, ok := s.fees[name]
	if !ok {
		return nil, depositstore.ErrNotFound
	}
	return new(big.Int).Set(fee), nil
}

func (s *memStore) SetFeeCounter(_ context.Context, name string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fees[name] = new(big.Int).Set(amount)
	return nil
}

func (s *memStore) IncrementFeeCounter(_ context.Context, name string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fee, ok := s.fees[name]
	if !ok {
		return depositstore.ErrNotFound
	}
	fee.Add(fee, amount)
	return nil
}

func (s *memStore) LastFeePaymentTime(_ context.Context, name string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for _, p := range s.payments {
		if p.ScannerName == name && (last == nil || p.Time.After(*last)) {
			t := p.Time
			last = &t
		}
	}
	return last, nil
}

func (s *memStore) RecordFeePayment(_ context.Context, name, txHash string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fee, ok := s.fees[name]
	if !ok || fee.Cmp(amount) < 0 {
		return depositstore.ErrNotFound
	}
	fee.Sub(fee, amount)
	s.payments = append(s.payments, &deposit.FeePayment{
		ScannerName:       name,
		DestinationTxHash: txHash,
		Amount:            amount.String(),
		Time:              time.Now(),
	})
	return nil
}

// addPayment records a payment at a fixed time.
func (s *memStore) addPayment(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, &deposit.FeePayment{ScannerName: name, Amount: "0", Time: at})
}

// ageDeposits moves every UpdatedAt back by d.
func (s *memStore) ageDeposits(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range s.deposits {
		dep.UpdatedAt = dep.UpdatedAt.Add(-d)
	}
}

func (s *memStore) all() []deposit.Deposit {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]deposit.Deposit, len(s.deposits))
	for i, d := range s.deposits {
		out[i] = *d
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) get(txHash string) deposit.Deposit {
	for _, d := range s.all() {
		if strings.EqualFold(d.SourceTxHash, txHash) {
			return d
		}
	}
	return deposit.Deposit{}
}
