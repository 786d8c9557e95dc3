package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts actions per actor in Redis with a TTL window. Keeping the
// counters in a shared store means correctness does not depend on a single
// process lifetime.
type Limiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewLimiter builds a limiter; a nil client disables limiting.
func NewLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow increments the actor's counter and reports whether the action is
// within the configured limit. Redis unavailability fails open.
func (l *Limiter) Allow(ctx context.Context, actorID string) (bool, error) {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("%s:%s", l.prefix, actorID)
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= int64(l.limit), nil
}
