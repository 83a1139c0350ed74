package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "tailore:ratelimit:"

// Redis counts requests in fixed windows shared by every instance using the
// same server.
type Redis struct {
	client   redis.UniversalClient
	requests int64
	window   time.Duration
}

// NewRedis returns a limiter admitting requests per window for each key.
func NewRedis(client redis.UniversalClient, requests int, window time.Duration) *Redis {
	return &Redis{client: client, requests: int64(requests), window: window}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incrementing request counter: %w", err)
	}
	// The first request opens the window.
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return false, fmt.Errorf("setting request window: %w", err)
		}
	}
	return count <= r.requests, nil
}
