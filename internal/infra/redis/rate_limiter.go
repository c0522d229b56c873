package redis

import (
	"context"
	"time"
)

const rateLimitPrefix = "rate_limit:"

// RateLimiter is a fixed-window counter: INCR, and EXPIRE on the first hit.
type RateLimiter struct {
	client Client
	limit  int
	window time.Duration
}

func NewRateLimiter(client Client, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 30
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Allow counts one hit for key in the current window.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	key = rateLimitPrefix + key
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window); err != nil {
			return false, err
		}
	}

	return count <= int64(r.limit), nil
}
