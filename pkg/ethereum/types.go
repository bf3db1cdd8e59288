package ethereum

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chainsafe/glitch-bridge/pkg/deposit"
)

// DepositEvent represents a TransferToGlitch event emitted by the monitored address
type DepositEvent struct {
	From        common.Address
	Destination string
	Amount      *big.Int
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// ToDeposit converts the event into a new TO_PROCESS deposit owned by scanner name.
func (e *DepositEvent) ToDeposit(name string) *deposit.Deposit {
	return deposit.New(name, e.TxHash.Hex(), e.From.Hex(), e.BlockNumber, e.Amount, e.Destination)
}

// ToDeposits converts a batch of events.
func ToDeposits(name string, events []*DepositEvent) []*deposit.Deposit {
	out := make([]*deposit.Deposit, 0, len(events))
	for _, e := range events {
		out = append(out, e.ToDeposit(name))
	}
	return out
}
