package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Harsh-BH/qsweep/internal/repository"
)

var _ repository.IdempotencyStore = (*redisIdempotency)(nil)

const (
	lockKeyPrefix = "qsweep:lock:"
	// LockTTL is how long a lock survives without a refresh. Holders refresh
	// well inside it, so a crashed worker frees its sweep quickly.
	LockTTL = 2 * time.Minute
)

type redisIdempotency struct {
	client goredis.Cmdable
}

// NewRedisIdempotencyStore creates a Redis-backed idempotency store using SETNX.
func NewRedisIdempotencyStore(client goredis.Cmdable) repository.IdempotencyStore {
	return &redisIdempotency{client: client}
}

// AcquireLock uses Redis SETNX to atomically acquire a processing lock.
func (r *redisIdempotency) AcquireLock(ctx context.Context, sweepID uuid.UUID) (bool, error) {
	key := lockKeyPrefix + sweepID.String()
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), LockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// RefreshLock pushes the lock expiry out by LockTTL. It fails if the lock
// has already expired.
func (r *redisIdempotency) RefreshLock(ctx context.Context, sweepID uuid.UUID) error {
	ok, err := r.client.Expire(ctx, lockKeyPrefix+sweepID.String(), LockTTL).Result()
	if err != nil {
		return fmt.Errorf("redis: refresh lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("redis: lock for sweep %s expired", sweepID)
	}
	return nil
}

// ReleaseLock deletes the lock. Redeliveries of a finished sweep are caught
// by its stored status, not by the lock.
func (r *redisIdempotency) ReleaseLock(ctx context.Context, sweepID uuid.UUID) error {
	if err := r.client.Del(ctx, lockKeyPrefix+sweepID.String()).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}
