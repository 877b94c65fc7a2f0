package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
)

// DefaultLockTimeout bounds how long a crashed holder can block a conversation.
const DefaultLockTimeout = 10 * time.Minute

const lockKeyPrefix = "lock:"

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker serializes work on a conversation key across processes.
type Locker struct {
	client  *redislock.Client
	backoff time.Duration
}

func NewLocker(client redislock.RedisClient) *Locker {
	return &Locker{
		client:  redislock.New(client),
		backoff: 100 * time.Millisecond,
	}
}

// Lock blocks until the lock for key is held, ctx is done, or timeout elapses.
// The lock expires on its own after timeout. Zero means DefaultLockTimeout.
func (l *Locker) Lock(ctx context.Context, key string, timeout time.Duration) (Unlock, error) {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	lock, err := l.client.Obtain(waitCtx, lockKeyPrefix+key, timeout, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.backoff),
	})
	if err != nil {
		return nil, fmt.Errorf("obtaining lock %s: %w", key, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			if errors.Is(err, redislock.ErrLockNotHeld) {
				slog.WarnContext(ctx, "lock expired before release", "key", key, "timeout", timeout)
				return
			}
			slog.ErrorContext(ctx, "failed to release lock", "key", key, "error", err)
		}
	}, nil
}
