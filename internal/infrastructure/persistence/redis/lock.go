package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
	"github.com/ShenPrime/Levelington/pkg/retry"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker serializes work per community across processes with SET NX PX.
type Locker struct {
	cache *Cache
	ttl   time.Duration
	retry *retry.Retrier
}

// NewLocker creates a Locker. ttl bounds how long a crashed holder can block
// others; zero uses TTLDistributedLock.
func NewLocker(cache *Cache, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	return &Locker{
		cache: cache,
		ttl:   ttl,
		retry: retry.LockRetrier(func(err error) bool { return errors.Is(err, ErrLockHeld) }),
	}
}

// TryAcquire makes one attempt and returns the owner token on success.
func (l *Locker) TryAcquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()

	ok, err := l.cache.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return "", ErrLockHeld
	}
	return token, nil
}

// Release deletes the lock if token still owns it.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.cache.client, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

// Acquire blocks until the community's lock is held or ctx is done. The
// returned func releases it.
func (l *Locker) Acquire(ctx context.Context, community shared.CommunityID) (func(), error) {
	key := l.cache.LockKey("community:" + string(community))

	token, err := retry.DoWithData(ctx, l.retry, func(ctx context.Context) (string, error) {
		return l.TryAcquire(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	return func() {
		// Release on a fresh context: the caller's may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Release(ctx, key, token)
	}, nil
}
