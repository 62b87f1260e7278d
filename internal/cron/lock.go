package cron

import (
	"context"
	"time"

	"github.com/technoshop/technoshop-backend/pkg/redis"
)

const defaultLockTTL = 55 * time.Minute

// Lock coordinates exclusive cron runs.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// NewRedisLock constructs the redis-backed cycle lock. A non-positive ttl
// falls back to just under the default interval.
func NewRedisLock(store redis.LockStore, key string, ttl time.Duration) (Lock, error) {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	lock, err := redis.NewLock(store, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
