package signerlock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/pkg/config"
	"github.com/chainsafe/glitch-bridge/pkg/pgutil"
)

func assertExclusive(t *testing.T, l Locker) {
	t.Helper()

	var (
		holders int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&holders, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&holders, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestMutexLocker_Exclusive(t *testing.T) {
	assertExclusive(t, NewMutexLocker())
}

func TestMutexLocker_ContextCancelled(t *testing.T) {
	l := NewMutexLocker()
	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	unlock, err = l.Lock(context.Background())
	require.NoError(t, err)
	unlock()
}

func TestNew_WithoutRedisURL(t *testing.T) {
	l := New(&config.SignerLockConfig{}, zap.NewNop())
	_, ok := l.(*MutexLocker)
	assert.True(t, ok)
}

func setupRedis(t *testing.T) string {
	t.Helper()
	pgutil.RequireDockerAccess(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func TestRedisLocker(t *testing.T) {
	url := setupRedis(t)
	cfg := &config.SignerLockConfig{RedisURL: url, Key: "test:signer", TTL: time.Minute}

	first := NewRedisLocker(cfg, zap.NewNop())
	second := NewRedisLocker(cfg, zap.NewNop())
	t.Cleanup(func() {
		_ = first.Close()
		_ = second.Close()
	})
	require.NoError(t, first.Ping(context.Background()))

	t.Run("exclusive across lockers", func(t *testing.T) {
		unlock, err := first.Lock(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		_, err = second.Lock(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		unlock()
		unlock, err = second.Lock(context.Background())
		require.NoError(t, err)
		unlock()
	})

	t.Run("concurrent holders", func(t *testing.T) {
		assertExclusive(t, first)
	})

	t.Run("lease expires", func(t *testing.T) {
		short := NewRedisLocker(&config.SignerLockConfig{RedisURL: url, Key: "test:expiring", TTL: 100 * time.Millisecond}, zap.NewNop())
		defer short.Close()

		_, err := short.Lock(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		unlock, err := short.Lock(ctx)
		require.NoError(t, err)
		unlock()
	})
}
