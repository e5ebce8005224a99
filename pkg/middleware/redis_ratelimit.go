package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCallTimeout bounds how long a single rate-limit check waits on
// Redis before giving up and failing open.
const redisCallTimeout = 100 * time.Millisecond

// RedisRateLimiter is a fixed-window RateLimiter backed by Redis, for rate
// limiting shared across multiple workflowd processes rather than scoped
// to one process's in-memory TokenBucket. A Redis error fails open: a
// rate limiter that is down should not also take node execution down.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	limit     int64
	window    time.Duration
}

// NewRedisRateLimiter creates a Redis-backed rate limiter allowing up to
// limit requests per window, keyed under keyPrefix.
func NewRedisRateLimiter(client redis.UniversalClient, keyPrefix string, limit int64, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}
}

// Allow increments key's counter for the current window and reports
// whether it is still within limit. On any Redis error it allows the
// request; when this limiter is RateLimitConfig.GlobalLimiter, no
// in-process TokenBucket enforces the global limit alongside it.
func (r *RedisRateLimiter) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	countKey := r.countKey(key)
	count, err := r.client.Incr(ctx, countKey).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		_ = r.client.Expire(ctx, countKey, r.window).Err()
	}
	return count <= r.limit
}

// Reset clears every window counter under this limiter's key prefix.
func (r *RedisRateLimiter) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = r.client.Del(ctx, iter.Val()).Err()
	}
}

func (r *RedisRateLimiter) countKey(key string) string {
	return fmt.Sprintf("%s%s", r.keyPrefix, key)
}
