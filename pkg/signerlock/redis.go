package signerlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainsafe/glitch-bridge/pkg/config"
)

const retryInterval = 200 * time.Millisecond

// releaseScript deletes the lease only if it is still held by this token.
var releaseScript = redis.NewScript(1, `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease in Redis shared by every relayer replica using the same key.
// A lease expires after TTL even if its holder never releases it.
type RedisLocker struct {
	pool   *redis.Pool
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

// NewRedisLocker creates a lease locker for cfg.RedisURL.
func NewRedisLocker(cfg *config.SignerLockConfig, logger *zap.Logger) *RedisLocker {
	url := cfg.RedisURL
	return &RedisLocker{
		pool: &redis.Pool{
			MaxIdle:     4,
			IdleTimeout: 5 * time.Minute,
			Dial:        func() (redis.Conn, error) { return redis.DialURL(url, timeoutDialOptions()...) },
		},
		key:    cfg.Key,
		ttl:    cfg.TTL,
		logger: logger,
	}
}

// New returns a RedisLocker when a Redis URL is configured and a MutexLocker otherwise.
func New(cfg *config.SignerLockConfig, logger *zap.Logger) Locker {
	if cfg.RedisURL == "" {
		return NewMutexLocker()
	}
	return NewRedisLocker(cfg, logger)
}

// Ping checks that Redis is reachable.
func (r *RedisLocker) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *RedisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.New().String()

	for {
		ok, err := r.tryAcquire(ctx, token)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(token) })
	}, nil
}

func (r *RedisLocker) tryAcquire(ctx context.Context, token string) (bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer conn.Close()

	_, err = redis.String(conn.Do("SET", r.key, token, "NX", "PX", r.ttl.Milliseconds()))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.ErrNil) {
		return false, nil
	}
	return false, fmt.Errorf("failed to acquire signer lease: %w", err)
}

func (r *RedisLocker) release(token string) {
	conn := r.pool.Get()
	defer conn.Close()

	released, err := redis.Int(releaseScript.Do(conn, r.key, token))
	if err != nil {
		r.logger.Error("Failed to release signer lease", zap.String("key", r.key), zap.Error(err))
		return
	}
	if released == 0 {
		r.logger.Warn("Signer lease expired before release", zap.String("key", r.key))
	}
}

// Close closes the connection pool
func (r *RedisLocker) Close() error {
	return r.pool.Close()
}
