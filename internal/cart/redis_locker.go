package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/google/uuid"
)

const releaseTimeout = 2 * time.Second

type redisLockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
	LockKey(parts ...string) string
}

// RedisLocker is a lease-based lock shared by every process pointed at the same Redis.
// Each acquisition writes a random owner token; release only deletes the key while it still holds that token.
type RedisLocker struct {
	store redisLockStore
	ttl   time.Duration
	retry time.Duration
	logg  *logger.Logger
}

// NewRedisLocker builds a locker with the given lease ttl and polling interval.
func NewRedisLocker(store redisLockStore, ttl, retry time.Duration, logg *logger.Logger) (*RedisLocker, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &RedisLocker{store: store, ttl: ttl, retry: retry, logg: logg}, nil
}

func (l *RedisLocker) Backend() string { return "redis" }

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.store.LockKey("cart", key)
	token := uuid.NewString()

	for {
		ok, err := l.store.SetNX(ctx, redisKey, token, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(redisKey, token) })
	}, nil
}

func (l *RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	deleted, err := l.store.CompareAndDelete(ctx, key, token)
	if l.logg == nil {
		return
	}
	switch {
	case err != nil:
		l.logg.Error(l.logg.WithField(ctx, "lock_key", key), "cart.lock_release_failed", err)
	case !deleted:
		// lease expired before release; another owner may hold the key now
		l.logg.Warn(l.logg.WithField(ctx, "lock_key", key), "cart.lock_lease_expired")
	}
}
