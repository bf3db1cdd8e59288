package ethereum

import (
	"errors"
	"fmt"
	"math/big"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chainsafe/glitch-bridge/pkg/deposit"
)

// DepositEventSignature is the canonical signature of the bridge deposit event.
const DepositEventSignature = "TransferToGlitch(address,string,uint256)"

const wordSize = 32

// DepositEventTopic is topic[0] of every deposit log.
var DepositEventTopic = crypto.Keccak256Hash([]byte(DepositEventSignature))

// ErrMalformedLog is returned when a log cannot be decoded as a deposit event.
var ErrMalformedLog = errors.New("malformed deposit log")

// DecodeDepositLog decodes a TransferToGlitch log.
//
// The data section is a sequence of 32 byte words: word 1 holds the amount,
// word 2 the byte length of the destination string and the words after it the
// UTF-8 destination itself. The depositor is the indexed topic at index 1.
// The destination is depositor input; NUL bytes and invalid UTF-8 are replaced
// so the deposit can always be stored and rejected later.
func DecodeDepositLog(log types.Log) (*DepositEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("%w: expected 2 topics, got %d", ErrMalformedLog, len(log.Topics))
	}
	if log.Topics[0] != DepositEventTopic {
		return nil, fmt.Errorf("%w: unexpected topic %s", ErrMalformedLog, log.Topics[0].Hex())
	}
	if len(log.Data) < 3*wordSize {
		return nil, fmt.Errorf("%w: data is %d bytes", ErrMalformedLog, len(log.Data))
	}

	amount := new(big.Int).SetBytes(log.Data[wordSize : 2*wordSize])

	length := new(big.Int).SetBytes(log.Data[2*wordSize : 3*wordSize])
	available := len(log.Data) - 3*wordSize
	if !length.IsUint64() || length.Uint64() > uint64(available) {
		return nil, fmt.Errorf("%w: destination length %s exceeds %d bytes", ErrMalformedLog, length, available)
	}
	end := 3*wordSize + int(length.Uint64())

	return &DepositEvent{
		From:        common.BytesToAddress(log.Topics[1].Bytes()),
		Destination: deposit.SanitizeText(string(log.Data[3*wordSize : end])),
		Amount:      amount,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.Index,
	}, nil
}

// DepositFilter builds the log query for deposits to monitor in [from, to].
// A nil to queries up to the latest block.
func DepositFilter(monitor common.Address, from uint64, to *uint64) geth.FilterQuery {
	q := geth.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		Addresses: []common.Address{monitor},
		Topics:    [][]common.Hash{{DepositEventTopic}},
	}
	if to != nil {
		q.ToBlock = new(big.Int).SetUint64(*to)
	}
	return q
}
