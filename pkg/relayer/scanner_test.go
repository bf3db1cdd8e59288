package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/pkg/config"
	"github.com/chainsafe/glitch-bridge/pkg/ethereum"
)

func testNetworkConfig() *config.NetworkConfig {
	return &config.NetworkConfig{
		Name:           testNetwork,
		Network:        "Sepolia",
		MonitorAddress: "0x1111111111111111111111111111111111111111",
		Confirmations:  3,
	}
}

// chainLogs serves deposit events by block number.
type chainLogs map[uint64][]*ethereum.DepositEvent

func (c chainLogs) fetch(_ context.Context, from uint64, to *uint64) ([]*ethereum.DepositEvent, error) {
	var out []*ethereum.DepositEvent
	for b := from; b <= *to; b++ {
		out = append(out, c[b]...)
	}
	return out, nil
}

func eventAt(block uint64, amount int64) *ethereum.DepositEvent {
	return &ethereum.DepositEvent{
		From:        common.HexToAddress(depositor),
		Destination: aliceSS58,
		Amount:      big.NewInt(amount),
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(amount))),
	}
}

func header(n uint64) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(n)}
}

func newTestScanner(cfg *config.NetworkConfig, client SourceClient, store *memStore) *Scanner {
	dial := func(context.Context) (SourceClient, error) { return client, nil }
	return NewScanner(cfg, dial, store, zap.NewNop())
}

func TestScanner_HandleHeadAdvancesWatermark(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	_, err := store.GetOrCreateScanState(ctx, testNetwork, "Sepolia", "0x1111111111111111111111111111111111111111", 0)
	require.NoError(t, err)

	logs := chainLogs{5: {eventAt(5, 100)}, 7: {eventAt(7, 200)}, 9: {eventAt(9, 300)}}
	client := &MockSourceClient{FetchDepositsFunc: logs.fetch}
	s := newTestScanner(testNetworkConfig(), client, store)

	// head 2 is within the confirmation depth
	require.NoError(t, s.handleHead(ctx, client, header(2)))
	assert.Empty(t, client.Ranges())

	require.NoError(t, s.handleHead(ctx, client, header(10)))
	w, err := store.GetWatermark(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), w)
	assert.Equal(t, [][2]uint64{{1, 7}}, client.Ranges())
	assert.Len(t, store.all(), 2, "block 9 is not confirmed yet")

	// an older head never moves the watermark back
	require.NoError(t, s.handleHead(ctx, client, header(8)))
	w, err = store.GetWatermark(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), w)

	require.NoError(t, s.handleHead(ctx, client, header(12)))
	w, err = store.GetWatermark(ctx, testNetwork)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), w)
	assert.Len(t, store.all(), 3)
}

func TestScanner_HandleHeadFailuresKeepWatermark(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	_, err := store.GetOrCreateScanState(ctx, testNetwork, "Sepolia", "0x1111111111111111111111111111111111111111", 0)
	require.NoError(t, err)

	client := &MockSourceClient{FetchDepositsFunc: func(context.Context, uint64, *uint64) ([]*ethereum.DepositEvent, error) {
		return nil, errors.New("rpc timeout")
	}}
	s := newTestScanner(testNetworkConfig(), client, store)

	require.Error(t, s.handleHead(ctx, client, header(20)))
	w, _ := store.GetWatermark(ctx, testNetwork)
	assert.Zero(t, w)

	client.FetchDepositsFunc = chainLogs{4: {eventAt(4, 1)}}.fetch
	store.failAdvance = errors.New("db down")
	require.Error(t, s.handleHead(ctx, client, header(20)))
	w, _ = store.GetWatermark(ctx, testNetwork)
	assert.Zero(t, w)
	assert.Empty(t, store.all())

	store.failAdvance = nil
	require.NoError(t, s.handleHead(ctx, client, header(20)))
	w, _ = store.GetWatermark(ctx, testNetwork)
	assert.Equal(t, uint64(17), w)
	assert.Len(t, store.all(), 1)
}

func TestScanner_CatchUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	_, err := store.GetOrCreateScanState(ctx, testNetwork, "Sepolia", "0x1111111111111111111111111111111111111111", 0)
	require.NoError(t, err)
	require.NoError(t, store.InsertDepositsAndAdvanceWatermark(ctx, testNetwork, 10, nil))

	logs := chainLogs{8: {eventAt(8, 1)}, 12: {eventAt(12, 2)}, 15: {eventAt(15, 3), eventAt(15, 4)}}
	client := &MockSourceClient{
		FetchDepositsFunc:     logs.fetch,
		LatestBlockNumberFunc: func(context.Context) (uint64, error) { return 20, nil },
	}
	s := newTestScanner(testNetworkConfig(), client, store)

	require.NoError(t, s.catchUp(ctx, client, true))
	require.NoError(t, s.catchUp(ctx, client, true))

	assert.Len(t, store.all(), 3, "no duplicates and nothing at or below the watermark")
	w, _ := store.GetWatermark(ctx, testNetwork)
	assert.Equal(t, uint64(10), w, "catch up never moves the watermark")
	assert.Equal(t, [][2]uint64{{11, 20}, {11, 20}}, client.Ranges())
}

func TestScanner_CatchUpSkippedForNewState(t *testing.T) {
	client := &MockSourceClient{}
	s := newTestScanner(testNetworkConfig(), client, newMemStore())

	require.NoError(t, s.catchUp(context.Background(), client, false))
	assert.Empty(t, client.Ranges())
}

func TestWalkRange_Chunks(t *testing.T) {
	client := &MockSourceClient{}
	var ends []uint64
	err := walkRange(context.Background(), client, 1, 25, 10, zap.NewNop(),
		func(_ context.Context, _ []*ethereum.DepositEvent, end uint64) error {
			ends = append(ends, end)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{1, 10}, {11, 20}, {21, 25}}, client.Ranges())
	assert.Equal(t, []uint64{10, 20, 25}, ends)
}

func TestWalkRange_NarrowsOnRangeError(t *testing.T) {
	client := &MockSourceClient{}
	client.FetchDepositsFunc = func(_ context.Context, from uint64, to *uint64) ([]*ethereum.DepositEvent, error) {
		if *to-from+1 > 5 {
			return nil, &ethereum.RangeLimitError{
				Bound: from + 4,
				Err:   fmt.Errorf("this block range should work: [0x%x, 0x%x]", from, from+4),
			}
		}
		return nil, nil
	}

	err := walkRange(context.Background(), client, 1, 12, 0, zap.NewNop(),
		func(context.Context, []*ethereum.DepositEvent, uint64) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{1, 12}, {1, 5}, {6, 10}, {11, 12}}, client.Ranges())
}

func TestWalkRange_HalvesWithoutUsableBound(t *testing.T) {
	client := &MockSourceClient{}
	client.FetchDepositsFunc = func(_ context.Context, from uint64, to *uint64) ([]*ethereum.DepositEvent, error) {
		if *to-from+1 > 3 {
			return nil, &ethereum.RangeLimitError{Bound: 0, Err: errors.New("too many blocks")}
		}
		return nil, nil
	}

	err := walkRange(context.Background(), client, 1, 8, 0, zap.NewNop(),
		func(context.Context, []*ethereum.DepositEvent, uint64) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{1, 8}, {1, 4}, {1, 2}, {3, 4}, {5, 6}, {7, 8}}, client.Ranges())
}

func TestWalkRange_OtherErrorsAbort(t *testing.T) {
	boom := errors.New("boom")
	client := &MockSourceClient{FetchDepositsFunc: func(context.Context, uint64, *uint64) ([]*ethereum.DepositEvent, error) {
		return nil, boom
	}}
	committed := false
	err := walkRange(context.Background(), client, 1, 8, 0, zap.NewNop(),
		func(context.Context, []*ethereum.DepositEvent, uint64) error {
			committed = true
			return nil
		})
	require.ErrorIs(t, err, boom)
	assert.False(t, committed)
}

func TestScanner_RunSessionEndsOnSubscriptionError(t *testing.T) {
	store := newMemStore()
	sub := newMockSubscription()
	heads := make(chan chan<- *types.Header, 1)
	client := &MockSourceClient{
		FetchDepositsFunc: chainLogs{2: {eventAt(2, 9)}}.fetch,
		SubscribeNewHeadFunc: func(_ context.Context, ch chan<- *types.Header) (geth.Subscription, error) {
			heads <- ch
			return sub, nil
		},
	}
	s := newTestScanner(testNetworkConfig(), client, store)
	assert.False(t, s.Connected())

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	ch := <-heads
	ch <- header(5)
	require.Eventually(t, func() bool {
		w, err := store.GetWatermark(context.Background(), testNetwork)
		return err == nil && w == 2
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.Connected())

	sub.errCh <- errors.New("websocket closed")
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "websocket closed")
	case <-time.After(time.Second):
		t.Fatal("scanner session did not end")
	}
	assert.True(t, client.closed)
	assert.Len(t, store.all(), 1)
}

func TestScanner_NewStateStartsAtStartBlock(t *testing.T) {
	store := newMemStore()
	heads := make(chan chan<- *types.Header, 1)
	client := &MockSourceClient{
		FetchDepositsFunc: chainLogs{50: {eventAt(50, 1)}, 104: {eventAt(104, 2)}}.fetch,
		SubscribeNewHeadFunc: func(_ context.Context, ch chan<- *types.Header) (geth.Subscription, error) {
			heads <- ch
			return newMockSubscription(), nil
		},
	}
	cfg := testNetworkConfig()
	cfg.StartBlock = 100
	s := newTestScanner(cfg, client, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	ch := <-heads
	ch <- header(110)
	require.Eventually(t, func() bool {
		w, err := store.GetWatermark(context.Background(), testNetwork)
		return err == nil && w == 107
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, [][2]uint64{{100, 107}}, client.Ranges())
	all := store.all()
	require.Len(t, all, 1, "blocks before the start block are never scanned")
	assert.Equal(t, uint64(104), all[0].SourceBlockNumber)
}

func TestScanner_RunDialError(t *testing.T) {
	s := NewScanner(testNetworkConfig(), func(context.Context) (SourceClient, error) {
		return nil, errors.New("connection refused")
	}, newMemStore(), zap.NewNop())

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.False(t, s.Connected())
}
