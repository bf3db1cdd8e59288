package glitch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/pkg/config"
	"github.com/chainsafe/glitch-bridge/pkg/signerlock"
)

// Delegate quotes and submits transfers through an external command invoked as
// `<command...> <amount> <address>`. The command prints the transaction hash on stdout.
type Delegate struct {
	command []string
	timeout time.Duration
	locker  signerlock.Locker
	logger  *zap.Logger
}

// NewDelegate creates a delegate from cfg.
func NewDelegate(cfg *config.DelegateConfig, locker signerlock.Locker, logger *zap.Logger) (*Delegate, error) {
	if len(cfg.Command) == 0 {
		return nil, errors.New("delegate command is empty")
	}
	return &Delegate{
		command: cfg.Command,
		timeout: cfg.Timeout,
		locker:  locker,
		logger:  logger,
	}, nil
}

// QuoteAndSubmit runs the delegate for one transfer and returns its transaction hash.
func (d *Delegate) QuoteAndSubmit(ctx context.Context, amount *big.Int, address string) (string, error) {
	unlock, err := d.locker.Lock(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to acquire signer: %w", err)
	}
	defer unlock()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	args := append(append([]string{}, d.command[1:]...), amount.String(), address)
	cmd := exec.CommandContext(ctx, d.command[0], args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	d.logger.Info("Calling transfer delegate",
		zap.String("amount", amount.String()),
		zap.String("destination", address))

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("delegate failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	hash := strings.TrimSpace(stdout.String())
	if hash == "" {
		return "", fmt.Errorf("delegate returned no transaction hash: %w", ErrNotFinalized)
	}
	return hash, nil
}

// Transfer submits through the delegate. The delegate computes its own fee.
func (d *Delegate) Transfer(ctx context.Context, dest Address, amount *big.Int) (string, error) {
	return d.QuoteAndSubmit(ctx, amount, dest.SS58)
}

// DelegatingClient reads balances from the node and submits transfers through a Delegate.
type DelegatingClient struct {
	*Client
	delegate *Delegate
}

// NewDelegatingClient routes transfers of c through d.
func NewDelegatingClient(c *Client, d *Delegate) *DelegatingClient {
	return &DelegatingClient{Client: c, delegate: d}
}

// QuoteTransferFee is zero: the delegate deducts the network fee itself.
func (c *DelegatingClient) QuoteTransferFee(context.Context, Address, *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}

func (c *DelegatingClient) Transfer(ctx context.Context, dest Address, amount *big.Int) (string, error) {
	return c.delegate.Transfer(ctx, dest, amount)
}
