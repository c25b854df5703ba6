package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Release and extend must only act when the stored value still matches this
// holder's token, so both run as Lua scripts.
var (
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

var ErrLockNotHeld = errors.New("lock not held or expired")

// DistributedLock serializes retry execution for one transaction across
// worker instances. The token is random per lock instance, so a worker that
// lost its lock to TTL expiry cannot release a successor's lock.
type DistributedLock struct {
	client   *redis.Client
	key      string
	token    string
	ttl      time.Duration
	acquired bool
}

func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client: client,
		key:    fmt.Sprintf("lock:%s", key),
		token:  uuid.New().String(),
		ttl:    ttl,
	}
}

// Acquire takes the lock if free. Returns false without error when another
// holder has it.
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	l.acquired = ok
	return ok, nil
}

// Extend pushes the TTL out for a long-running attempt.
func (l *DistributedLock) Extend(ctx context.Context, additionalTTL time.Duration) error {
	if !l.acquired {
		return ErrLockNotHeld
	}

	result, err := extendLockScript.Run(ctx, l.client,
		[]string{l.key}, l.token, additionalTTL.Milliseconds()).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if val, ok := result.(int64); !ok || val == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Release frees the lock if this holder still owns it. Releasing a lock that
// was never acquired is a no-op.
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	result, err := releaseLockScript.Run(ctx, l.client,
		[]string{l.key}, l.token).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if val, ok := result.(int64); !ok || val == 0 {
		return ErrLockNotHeld
	}

	l.acquired = false
	return nil
}
