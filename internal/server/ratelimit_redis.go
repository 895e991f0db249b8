package server

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLimiter is a fixed window counter shared by every instance using
// the same Redis.
type redisLimiter struct {
	client redis.Cmdable
	rate   int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter returns a Limiter backed by INCR and EXPIRE.
func NewRedisLimiter(client redis.Cmdable, rate int, window time.Duration) Limiter {
	return &redisLimiter{client: client, rate: rate, window: window, prefix: "quickshare:ratelimit", now: time.Now}
}

func (l *redisLimiter) key(client string) string {
	slot := l.now().UnixNano() / int64(l.window)
	return fmt.Sprintf("%s:%s:%d", l.prefix, client, slot)
}

func (l *redisLimiter) Allow(ctx context.Context, client string) (bool, error) {
	key := l.key(client)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return incr.Val() <= int64(l.rate), nil
}

// Close closes the Redis client when it owns a connection pool.
func (l *redisLimiter) Close() error {
	if c, ok := l.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
