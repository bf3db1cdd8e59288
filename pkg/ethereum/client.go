package ethereum

import (
	"context"
	"fmt"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/pkg/config"
)

// Client is a WebSocket connection to one source network, scoped to its
// monitored bridge address.
type Client struct {
	config  *config.NetworkConfig
	client  *ethclient.Client
	monitor common.Address
	logger  *zap.Logger
}

// Dial connects to the network's WebSocket endpoint.
func Dial(ctx context.Context, cfg *config.NetworkConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.SourceWSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s websocket: %w", cfg.Network, err)
	}

	monitor := common.HexToAddress(cfg.MonitorAddress)
	logger.Info("Connected to source network",
		zap.String("network", cfg.Network),
		zap.String("monitor_address", monitor.Hex()))

	return &Client{
		config:  cfg,
		client:  client,
		monitor: monitor,
		logger:  logger,
	}, nil
}

// Close closes the underlying connection
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// SubscribeNewHead streams new block headers into ch.
func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (geth.Subscription, error) {
	sub, err := c.client.SubscribeNewHead(ctx, ch)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to new heads: %w", err)
	}
	return sub, nil
}

// LatestBlockNumber gets the latest block number
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return n, nil
}

// FetchDeposits returns the deposit events of [from, to]; a nil to means latest.
// Logs that do not decode are logged and skipped. Range rejections are
// returned as *RangeLimitError.
func (c *Client) FetchDeposits(ctx context.Context, from uint64, to *uint64) ([]*DepositEvent, error) {
	logs, err := c.client.FilterLogs(ctx, DepositFilter(c.monitor, from, to))
	if err != nil {
		return nil, fmt.Errorf("failed to filter deposit logs: %w", classifyFilterError(err))
	}
	return c.decodeLogs(logs), nil
}

func (c *Client) decodeLogs(logs []types.Log) []*DepositEvent {
	events := make([]*DepositEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := DecodeDepositLog(l)
		if err != nil {
			c.logger.Warn("Skipping undecodable deposit log",
				zap.String("tx_hash", l.TxHash.Hex()),
				zap.Uint64("block", l.BlockNumber),
				zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events
}
