package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter shares the window across instances with SET NX PX.
type RedisLimiter struct {
	client redis.Cmdable
	window time.Duration
}

func NewRedisLimiter(client redis.Cmdable, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		window: window,
	}
}

// NewRedisClient connects and pings so misconfiguration fails at startup.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, redisKeyPrefix+key, time.Now().UnixMilli(), l.window).Result()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return ok, nil
}
