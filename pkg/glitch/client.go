// Package glitch is the destination ledger client. It signs and submits balance
// transfers on the Glitch Substrate chain and reads the signer's free balance.
package glitch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/chainsafe/glitch-bridge/pkg/config"
	"github.com/chainsafe/glitch-bridge/pkg/signerlock"
)

// ErrNotFinalized is returned when a submitted transfer leaves the pool without being finalized.
var ErrNotFinalized = errors.New("transfer was not finalized")

// Client is a signing connection to one Glitch node.
type Client struct {
	config  *config.DestinationConfig
	api     *gsrpc.SubstrateAPI
	keyring signature.KeyringPair
	locker  signerlock.Locker
	logger  *zap.Logger

	mu          sync.Mutex
	meta        *types.Metadata
	specVersion types.U32
	genesisHash types.Hash
}

// Dial connects to url and loads the signer keyring from cfg.
func Dial(url string, cfg *config.DestinationConfig, locker signerlock.Locker, logger *zap.Logger) (*Client, error) {
	keyring, err := signature.KeyringPairFromSecret(cfg.SignerPrivateKey, cfg.SS58Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load signer key: %w", err)
	}

	api, err := gsrpc.NewSubstrateAPI(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to glitch node: %w", err)
	}

	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		api.Client.Close()
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	rv, err := api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		api.Client.Close()
		return nil, fmt.Errorf("failed to get runtime version: %w", err)
	}
	genesisHash, err := api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		api.Client.Close()
		return nil, fmt.Errorf("failed to get genesis hash: %w", err)
	}

	logger.Info("Connected to Glitch",
		zap.String("url", url),
		zap.String("signer", keyring.Address),
		zap.Uint32("spec_version", uint32(rv.SpecVersion)))

	return &Client{
		config:      cfg,
		api:         api,
		keyring:     keyring,
		locker:      locker,
		logger:      logger,
		meta:        meta,
		specVersion: rv.SpecVersion,
		genesisHash: genesisHash,
	}, nil
}

// Close closes the node connection
func (c *Client) Close() {
	c.api.Client.Close()
}

// SignerAddress returns the SS58 address of the signer.
func (c *Client) SignerAddress() string {
	return c.keyring.Address
}

// metadata returns the cached metadata, refreshing it after a runtime upgrade.
func (c *Client) metadata() (*types.Metadata, *types.RuntimeVersion, error) {
	rv, err := c.api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get runtime version: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rv.SpecVersion != c.specVersion {
		meta, err := c.api.RPC.State.GetMetadataLatest()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to refresh metadata: %w", err)
		}
		c.logger.Info("Runtime upgraded, metadata refreshed",
			zap.Uint32("old_spec_version", uint32(c.specVersion)),
			zap.Uint32("spec_version", uint32(rv.SpecVersion)))
		c.meta = meta
		c.specVersion = rv.SpecVersion
	}
	return c.meta, rv, nil
}

func (c *Client) accountInfo(meta *types.Metadata) (*types.AccountInfo, error) {
	key, err := types.CreateStorageKey(meta, "System", "Account", c.keyring.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create account storage key: %w", err)
	}

	var info types.AccountInfo
	if _, err := c.api.RPC.State.GetStorageLatest(key, &info); err != nil {
		return nil, fmt.Errorf("failed to read signer account: %w", err)
	}
	return &info, nil
}

// FreeBalance returns the signer's free balance in the smallest unit.
// An account that does not exist yet has a zero balance.
func (c *Client) FreeBalance(_ context.Context) (*big.Int, error) {
	meta, _, err := c.metadata()
	if err != nil {
		return nil, err
	}
	info, err := c.accountInfo(meta)
	if err != nil {
		return nil, err
	}
	if info.Data.Free.Int == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(info.Data.Free.Int), nil
}

// buildTransfer builds and signs a transfer of amount to dest with the signer's current nonce.
func (c *Client) buildTransfer(dest Address, amount *big.Int) (types.Extrinsic, error) {
	meta, rv, err := c.metadata()
	if err != nil {
		return types.Extrinsic{}, err
	}

	to, err := types.NewMultiAddressFromAccountID(dest.PublicKey)
	if err != nil {
		return types.Extrinsic{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	call, err := types.NewCall(meta, c.config.TransferCall, to, types.NewUCompact(amount))
	if err != nil {
		return types.Extrinsic{}, fmt.Errorf("failed to build %s call: %w", c.config.TransferCall, err)
	}

	info, err := c.accountInfo(meta)
	if err != nil {
		return types.Extrinsic{}, err
	}

	ext := types.NewExtrinsic(call)
	opts := types.SignatureOptions{
		BlockHash:          c.genesisHash,
		Era:                types.ExtrinsicEra{IsMortalEra: false},
		GenesisHash:        c.genesisHash,
		Nonce:              types.NewUCompactFromUInt(uint64(info.Nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}
	if err := ext.Sign(c.keyring, opts); err != nil {
		return types.Extrinsic{}, fmt.Errorf("failed to sign transfer: %w", err)
	}
	return ext, nil
}

type queryInfo struct {
	PartialFee json.Number `json:"partialFee"`
}

// QuoteTransferFee asks the node for the fee a transfer of amount to dest would pay.
func (c *Client) QuoteTransferFee(_ context.Context, dest Address, amount *big.Int) (*big.Int, error) {
	ext, err := c.buildTransfer(dest, amount)
	if err != nil {
		return nil, err
	}
	encoded, err := codec.EncodeToHex(ext)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}

	var res queryInfo
	if err := c.api.Client.Call(&res, "payment_queryInfo", encoded); err != nil {
		return nil, fmt.Errorf("failed to query transfer fee: %w", err)
	}
	fee, ok := new(big.Int).SetString(res.PartialFee.String(), 10)
	if !ok {
		return nil, fmt.Errorf("unexpected partial fee %q", res.PartialFee)
	}
	return fee, nil
}

// Transfer submits a transfer of amount to dest and waits until it is finalized.
// It returns the extrinsic hash.
func (c *Client) Transfer(ctx context.Context, dest Address, amount *big.Int) (string, error) {
	unlock, err := c.locker.Lock(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire signer: %w", err)
	}
	defer unlock()

	ext, err := c.buildTransfer(dest, amount)
	if err != nil {
		return "", err
	}
	encoded, err := codec.Encode(ext)
	if err != nil {
		return "", fmt.Errorf("failed to encode transfer: %w", err)
	}
	digest := blake2b.Sum256(encoded)
	txHash := types.NewHash(digest[:]).Hex()

	sub, err := c.api.RPC.Author.SubmitAndWatchExtrinsic(ext)
	if err != nil {
		return "", fmt.Errorf("failed to submit transfer: %w", err)
	}
	defer sub.Unsubscribe()

	c.logger.Info("Transfer submitted",
		zap.String("tx_hash", txHash),
		zap.String("destination", dest.SS58),
		zap.String("amount", amount.String()))

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err := <-sub.Err():
			return "", fmt.Errorf("transfer %s subscription: %w", txHash, err)
		case status := <-sub.Chan():
			switch {
			case status.IsInBlock:
				c.logger.Debug("Transfer included", zap.String("tx_hash", txHash), zap.String("block", status.AsInBlock.Hex()))
			case status.IsFinalized:
				c.logger.Info("Transfer finalized", zap.String("tx_hash", txHash), zap.String("block", status.AsFinalized.Hex()))
				return txHash, nil
			case status.IsDropped, status.IsInvalid, status.IsUsurped, status.IsFinalityTimeout:
				return "", fmt.Errorf("transfer %s: %w", txHash, ErrNotFinalized)
			}
		}
	}
}
