// Package lock provides a Redis-backed processing lock with a lease TTL.
//
// Unlike the store-backed lock, a lease expires on its own, so a crashed
// process cannot leave a subscription locked forever.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLease bounds how long a settlement attempt may hold the lock.
const DefaultLease = 30 * time.Second

// RedisLockRepository implements the per-subscription processing lock with
// Redis SET NX and a lease TTL.
type RedisLockRepository struct {
	client *redis.Client
	lease  time.Duration
}

// NewRedisLockRepository creates a lock repository. A non-positive lease
// falls back to DefaultLease.
func NewRedisLockRepository(client *redis.Client, lease time.Duration) *RedisLockRepository {
	if lease <= 0 {
		lease = DefaultLease
	}
	return &RedisLockRepository{client: client, lease: lease}
}

// TryAcquire claims the subscription lock if no other holder exists. The
// lease expires automatically after the configured TTL.
func (r *RedisLockRepository) TryAcquire(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockKey(subscriptionID), time.Now().UTC().Format(time.RFC3339Nano), r.lease).Result()
	if err != nil {
		return false, fmt.Errorf("acquire subscription lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock immediately instead of waiting for the lease to
// expire.
func (r *RedisLockRepository) Release(ctx context.Context, subscriptionID uuid.UUID) error {
	if err := r.client.Del(ctx, lockKey(subscriptionID)).Err(); err != nil {
		return fmt.Errorf("release subscription lock: %w", err)
	}
	return nil
}

func lockKey(subscriptionID uuid.UUID) string {
	return "satchel:lock:subscription:" + subscriptionID.String()
}
