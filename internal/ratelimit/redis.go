package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	countPrefix = "rl:count:"
	lockPrefix  = "rl:lock:"
)

// RedisLimiter implements Limiter on Redis. Counters use INCR with a window
// TTL set on first increment; lockouts are a separate TTL key holding the
// unlock timestamp so expiry reads as unlocked without any cleanup pass.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
}

// NewRedisLimiter builds a Redis-backed rate limiter.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg}
}

func (l *RedisLimiter) CheckLimit(ctx context.Context, key string, maxAttempts int) (bool, error) {
	until, err := l.GetLockoutTime(ctx, key)
	if err != nil {
		return false, err
	}
	if until != nil {
		return false, nil
	}

	count, err := l.client.Get(ctx, countPrefix+key).Int64()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read attempt count: %w", err)
	}

	if count >= int64(maxAttempts) {
		unlock := time.Now().UTC().Add(l.cfg.LockoutDuration)
		if err := l.client.Set(ctx, lockPrefix+key, unlock.Unix(), l.cfg.LockoutDuration).Err(); err != nil {
			return false, fmt.Errorf("set lockout: %w", err)
		}
		return false, nil
	}
	return true, nil
}

func (l *RedisLimiter) Increment(ctx context.Context, key string) (int64, error) {
	count, err := l.client.Incr(ctx, countPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	if count == 1 {
		l.client.Expire(ctx, countPrefix+key, l.cfg.Window)
	}
	return count, nil
}

func (l *RedisLimiter) ResetLimit(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, countPrefix+key, lockPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset limit: %w", err)
	}
	return nil
}

func (l *RedisLimiter) GetLockoutTime(ctx context.Context, key string) (*time.Time, error) {
	unix, err := l.client.Get(ctx, lockPrefix+key).Int64()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read lockout: %w", err)
	}
	until := time.Unix(unix, 0).UTC()
	if !until.After(time.Now().UTC()) {
		return nil, nil
	}
	return &until, nil
}
