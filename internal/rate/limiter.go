package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds retry throttle tuning parameters.
type Config struct {
	EnableThrottle bool
	MaxPerWindow   int
	Window         time.Duration
}

// Limiter enforces a fixed-window per-email budget on OTP re-delivery using
// Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a retry [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func retryKey(email string) string {
	return "akr:" + email
}

// CheckRetry counts the attempt and enforces the window budget. Returns
// ErrRateLimited once the budget is exhausted.
func (l *Limiter) CheckRetry(ctx context.Context, email string) error {
	if !l.config.EnableThrottle {
		return nil
	}

	count, err := l.redis.Incr(ctx, retryKey(email)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, retryKey(email), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if count > int64(l.config.MaxPerWindow) {
		return ErrRateLimited
	}

	return nil
}

// ResetRetry clears the counter for an email. Called after a successful
// passcode verification so the next challenge starts with a full budget.
func (l *Limiter) ResetRetry(ctx context.Context, email string) error {
	if err := l.redis.Del(ctx, retryKey(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
