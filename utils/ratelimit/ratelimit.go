// Package ratelimit implements a Redis-backed fixed-window limiter used
// to cap message posting per user. Counters live in Redis so every node
// of a deployment shares the same budget.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/armada-chat/armada/middleware/log"
)

// TokenBucketLimiter counts requests per key in time-bucketed Redis keys.
// With failOpen set, Redis outages let traffic through instead of
// blocking every post.
type TokenBucketLimiter struct {
	client   *redis.Client
	logger   *logger.Logger
	failOpen bool
}

func NewTokenBucketLimiter(client *redis.Client, log *logger.Logger, failOpen bool) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		client:   client,
		logger:   log,
		failOpen: failOpen,
	}
}

// AllowKey consumes one token for the key within the window
func (l *TokenBucketLimiter) AllowKey(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	bucketKey := l.bucketKey(key, time.Now(), window)

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, bucketKey)
	pipe.Expire(ctx, bucketKey, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.failOpen {
			l.logger.Warn("rate limit backend unavailable, failing open",
				zap.String("key", key),
				zap.Error(err),
			)
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	allowed := incr.Val() <= int64(limit)
	if !allowed {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", incr.Val()),
			zap.Int("limit", limit),
		)
	}
	return allowed, nil
}

// Remaining reports how many tokens are left in the current window
func (l *TokenBucketLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	bucketKey := l.bucketKey(key, time.Now(), window)
	count, err := l.client.Get(ctx, bucketKey).Int64()
	if err != nil {
		if err == redis.Nil {
			return limit, nil
		}
		return 0, err
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the current window for a key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string, window time.Duration) error {
	return l.client.Del(ctx, l.bucketKey(key, time.Now(), window)).Err()
}

func (l *TokenBucketLimiter) bucketKey(key string, now time.Time, window time.Duration) string {
	bucket := now.Unix() / int64(window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}

// MessageLimiter caps message posts per user per minute. It satisfies
// the service layer's RateLimiter interface.
type MessageLimiter struct {
	limiter *TokenBucketLimiter
	limit   int
}

func NewMessageLimiter(client *redis.Client, log *logger.Logger, perMinute int, failOpen bool) *MessageLimiter {
	if perMinute < 1 {
		perMinute = 60
	}
	return &MessageLimiter{
		limiter: NewTokenBucketLimiter(client, log, failOpen),
		limit:   perMinute,
	}
}

func (m *MessageLimiter) Allow(ctx context.Context, userID uuid.UUID) (bool, error) {
	return m.limiter.AllowKey(ctx, "messages:user:"+userID.String(), m.limit, time.Minute)
}
