package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker serializes booking writes per organization. The booking path
// takes the org lock before opening its transaction, so two requests
// for the same org never race the availability re-check.
type Locker interface {
	LockOrg(ctx context.Context, orgID string, ttl time.Duration) (bool, error)
	UnlockOrg(ctx context.Context, orgID string) error
}

const keyPrefix = "lock:org:"

func orgKey(orgID string) string {
	return keyPrefix + orgID
}

type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(redisAddr string) (*RedisLock, error) {
	const op = "lock.NewRedisLock"

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisLock{client: client}, nil
}

// LockOrg acquires the org lock, reporting false when another holder
// has it. The ttl caps how long a crashed holder can wedge the org.
func (r *RedisLock) LockOrg(ctx context.Context, orgID string, ttl time.Duration) (bool, error) {
	const op = "lock.RedisLock.LockOrg"

	acquired, err := r.client.SetNX(ctx, orgKey(orgID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return acquired, nil
}

func (r *RedisLock) UnlockOrg(ctx context.Context, orgID string) error {
	const op = "lock.RedisLock.UnlockOrg"

	if err := r.client.Del(ctx, orgKey(orgID)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RedisLock) Close() error {
	return r.client.Close()
}
