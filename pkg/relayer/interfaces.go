package relayer

import (
	"context"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/chainsafe/glitch-bridge/pkg/ethereum"
	"github.com/chainsafe/glitch-bridge/pkg/glitch"
)

// SourceClient is one connection to a source network.
type SourceClient interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (geth.Subscription, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FetchDeposits(ctx context.Context, from uint64, to *uint64) ([]*ethereum.DepositEvent, error)
	Close()
}

// SourceDialer opens a new SourceClient. The scanner dials once per session.
type SourceDialer func(ctx context.Context) (SourceClient, error)

// BalanceReader reads the signer free balance on the destination ledger.
type BalanceReader interface {
	FreeBalance(ctx context.Context) (*big.Int, error)
}

// DestinationClient signs and submits transfers on the destination ledger.
type DestinationClient interface {
	BalanceReader
	QuoteTransferFee(ctx context.Context, dest glitch.Address, amount *big.Int) (*big.Int, error)
	// Transfer blocks until the transfer is finalized and returns its hash.
	Transfer(ctx context.Context, dest glitch.Address, amount *big.Int) (string, error)
}
