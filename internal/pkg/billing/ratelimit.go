package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles sensitive command operations per user. Allow reports
// whether the operation may proceed and, when blocked, how long to wait.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Clear(ctx context.Context, key string) error
}

// redisRateLimiter is a fixed-window counter in Redis. The first hit in a
// window creates the key with a TTL; once the counter passes the limit the
// remaining TTL is the retry-after.
type redisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a Redis-backed fixed-window limiter.
func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) RateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &redisRateLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

func (l *redisRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", l.prefix, key)
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.key(key)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count > l.limit {
		ttl, err := l.client.TTL(ctx, k).Result()
		if err != nil || ttl < 0 {
			ttl = l.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

// Clear resets the window, used after a successful operation so legitimate
// retries after transient failures are not punished.
func (l *redisRateLimiter) Clear(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}
