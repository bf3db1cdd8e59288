package relayer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/internal/metrics"
	"github.com/chainsafe/glitch-bridge/pkg/config"
)

// ErrTooManyRestarts is returned when a task exhausts its restart budget.
var ErrTooManyRestarts = errors.New("task exceeded restart limit")

// Task is a long running unit of work owned by a Supervisor.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Supervisor restarts a task with exponential backoff until ctx is done.
type Supervisor struct {
	network string
	cfg     config.SupervisorConfig
	logger  *zap.Logger
}

// NewSupervisor creates a supervisor for the tasks of one network.
func NewSupervisor(network string, cfg config.SupervisorConfig, logger *zap.Logger) *Supervisor {
	return &Supervisor{network: network, cfg: cfg, logger: logger}
}

func (s *Supervisor) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run runs task and restarts it whenever it returns while ctx is live.
// It returns nil once ctx is done and ErrTooManyRestarts once MaxRestarts
// consecutive failures happened (0 restarts forever). A run lasting longer
// than MaxBackoff resets the backoff and the failure count.
func (s *Supervisor) Run(ctx context.Context, task Task) error {
	logger := s.logger.With(zap.String("task", task.Name))
	b := s.newBackOff()
	var restarts uint64

	for {
		started := time.Now()
		err := task.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			err = errors.New("task returned")
		}

		if time.Since(started) > s.cfg.MaxBackoff {
			b.Reset()
			restarts = 0
		}

		restarts++
		if s.cfg.MaxRestarts > 0 && restarts > s.cfg.MaxRestarts {
			logger.Error("Task failed too often, giving up", zap.Uint64("restarts", restarts-1), zap.Error(err))
			return fmt.Errorf("%s/%s: %w: %v", s.network, task.Name, ErrTooManyRestarts, err)
		}

		wait := b.NextBackOff()
		logger.Warn("Task stopped, restarting",
			zap.Error(err),
			zap.Uint64("restart", restarts),
			zap.Duration("backoff", wait))
		metrics.TaskRestarts.WithLabelValues(s.network, task.Name).Inc()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
