package relayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/pkg/config"
	"github.com/chainsafe/glitch-bridge/pkg/deposit"
	"github.com/chainsafe/glitch-bridge/pkg/depositstore"
	"github.com/chainsafe/glitch-bridge/pkg/glitch"
)

// Network bundles the clients of one configured network.
type Network struct {
	Config      *config.NetworkConfig
	Dial        SourceDialer
	Destination DestinationClient
}

type networkTasks struct {
	name    string
	scanner *Scanner
	tasks   []Task
}

// Engine runs the scanner, transfer engine, fee scheduler and optional balance
// monitor of every network, each under its own supervisor.
type Engine struct {
	config   *config.Config
	store    depositstore.LedgerStore
	networks []*networkTasks
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a new relayer engine
func NewEngine(cfg *config.Config, store depositstore.LedgerStore, networks []Network, logger *zap.Logger) (*Engine, error) {
	pct, err := deposit.ParsePercentage(cfg.Bridge.BusinessFeePercentage)
	if err != nil {
		return nil, err
	}
	treasury, err := glitch.ParseAddress(cfg.Destination.TreasuryAddress)
	if err != nil {
		return nil, fmt.Errorf("treasury address: %w", err)
	}

	var threshold *big.Int
	if cfg.Monitoring.LowBalanceThreshold != "" {
		t, ok := new(big.Int).SetString(cfg.Monitoring.LowBalanceThreshold, 10)
		if !ok {
			return nil, fmt.Errorf("invalid low balance threshold %q", cfg.Monitoring.LowBalanceThreshold)
		}
		threshold = t
	}

	e := &Engine{config: cfg, store: store, logger: logger}
	for _, n := range networks {
		name := n.Config.Name
		nlog := logger.With(zap.String("network", name))

		scanner := NewScanner(n.Config, n.Dial, store, nlog)
		transfers := NewTransferEngine(TransferEngineConfig{
			Name:                  name,
			BusinessFeePercentage: pct,
			FeeEstimation:         cfg.Destination.FeeEstimation,
			SS58Prefix:            cfg.Destination.SS58Prefix,
			Interval:              cfg.Bridge.TransferInterval,
			ProcessingRetryAfter:  cfg.Bridge.ProcessingRetryAfter,
		}, store, n.Destination, nlog)
		fees := NewFeeScheduler(name, treasury, cfg.Bridge.SettlementInterval, cfg.Bridge.SettlementCheckInterval,
			store, n.Destination, nlog)

		nt := &networkTasks{
			name:    name,
			scanner: scanner,
			tasks: []Task{
				{Name: "scanner", Run: scanner.Run},
				{Name: "transfer_engine", Run: transfers.Run},
				{Name: "fee_scheduler", Run: fees.Run},
			},
		}
		if cfg.Monitoring.Enabled {
			monitor := NewBalanceMonitor(name, n.Destination, threshold, cfg.Monitoring.BalanceCheckInterval, nlog)
			nt.tasks = append(nt.tasks, Task{Name: "balance_monitor", Run: monitor.Run})
		}
		e.networks = append(e.networks, nt)
	}

	return e, nil
}

// Start launches every supervised task and returns immediately.
func (e *Engine) Start(ctx context.Context) error {
	if e.cancel != nil {
		return errors.New("engine already started")
	}
	e.logger.Info("Starting relayer engine", zap.Int("networks", len(e.networks)))

	ctx, e.cancel = context.WithCancel(ctx)
	for _, n := range e.networks {
		sup := NewSupervisor(n.name, e.config.Supervisor, e.logger.With(zap.String("network", n.name)))
		for _, task := range n.tasks {
			e.wg.Add(1)
			go func(task Task) {
				defer e.wg.Done()
				if err := sup.Run(ctx, task); err != nil {
					e.logger.Error("Supervised task stopped", zap.String("network", n.name), zap.Error(err))
				}
			}(task)
		}
	}

	e.logger.Info("Relayer engine started")
	return nil
}

// Stop cancels every task and waits for them to return.
func (e *Engine) Stop() {
	e.logger.Info("Stopping relayer engine")
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.logger.Info("Relayer engine stopped")
}

// IsReady reports whether every network's scanner has connected at least once.
func (e *Engine) IsReady() bool {
	for _, n := range e.networks {
		if !n.scanner.Connected() {
			return false
		}
	}
	return true
}
