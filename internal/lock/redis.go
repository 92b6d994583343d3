package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"alert-service/internal/logging"
)

const releaseTimeout = 2 * time.Second

// Release only deletes the key if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker hands out SETNX leases.
type RedisLocker struct {
	client *redis.Client
	logger *logging.Logger
}

// NewRedisLocker connects to addr and checks the server responds.
func NewRedisLocker(ctx context.Context, addr, password string, logger *logging.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisLocker{client: client, logger: logger}, nil
}

// TryLock acquires key for ttl without waiting. ok is false when another
// holder has it. The returned unlock releases the lease if it is still ours.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		res, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int64()
		if err != nil {
			l.logger.Warnf("Failed to release lock %s: %v", key, err)
			return
		}
		if res == 0 {
			l.logger.Warnf("Lock %s expired before release", key)
		}
	}
	return unlock, true, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
