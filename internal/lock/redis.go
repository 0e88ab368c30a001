package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions tunes the distributed locker.
type RedisOptions struct {
	// Prefix namespaces keys, typically by tenant.
	Prefix     string
	Expiry     time.Duration
	RetryDelay time.Duration
}

// DefaultRedisOptions returns options suited to short ledger commits.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Prefix:     "coopbooks:lock:",
		Expiry:     10 * time.Second,
		RetryDelay: 25 * time.Millisecond,
	}
}

// maxLockTries caps redsync retries; the context deadline normally ends
// the wait first.
const maxLockTries = 1000

// Redis is a Locker shared by every process pointed at the same Redis.
type Redis struct {
	rs     *redsync.Redsync
	opts   RedisOptions
	logger *zap.Logger
}

// NewRedis creates a Redis locker over client.
func NewRedis(client goredislib.UniversalClient, opts RedisOptions, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultRedisOptions().Expiry
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRedisOptions().RetryDelay
	}
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   opts,
		logger: logger,
	}
}

// Lock implements Locker.
func (r *Redis) Lock(ctx context.Context, keys ...string) (Unlock, error) {
	keys = SortedKeys(keys)
	held := make([]*redsync.Mutex, 0, len(keys))
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.Expiry)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			if ok, err := held[i].UnlockContext(ctx); !ok || err != nil {
				r.logger.Warn("failed to release lock",
					zap.String("lock_key", held[i].Name()), zap.Bool("unlock_ok", ok), zap.Error(err))
			}
		}
	}

	for _, k := range keys {
		m := r.rs.NewMutex(r.opts.Prefix+k,
			redsync.WithExpiry(r.opts.Expiry),
			redsync.WithTries(maxLockTries),
			redsync.WithRetryDelay(r.opts.RetryDelay),
		)
		if err := m.LockContext(ctx); err != nil {
			release()
			if errors.Is(err, redsync.ErrFailed) || ctx.Err() != nil {
				return nil, errors.Join(ErrTimeout, err)
			}
			return nil, fmt.Errorf("acquiring lock %s: %w", k, err)
		}
		held = append(held, m)
	}
	r.logger.Debug("locks acquired", zap.Strings("keys", keys))
	return onceUnlock(release), nil
}
