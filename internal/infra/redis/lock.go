// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pix-subscription/internal/domain"
)

type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

var _ Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	client   Client
	attempts int
	backoff  time.Duration
}

// NewLocker returns a locker that tries SETNX attempts times before giving up.
func NewLocker(c Client, attempts int) *RedisLocker {
	if attempts <= 0 {
		attempts = 1
	}
	return &RedisLocker{client: c, attempts: attempts, backoff: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(l.backoff):
			}
		}
		ok, err := l.client.SetNX(ctx, key, token, ttl)
		if err != nil {
			lastErr = err
			continue
		}
		if ok {
			return token, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrLockNotAcquired
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return l.client.CompareAndDelete(ctx, key, token)
}
