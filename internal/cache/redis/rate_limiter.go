package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// Bounds on how long Wait sleeps between attempts.
const (
	minWaitStep = 10 * time.Millisecond
	maxWaitStep = time.Second
)

// RateLimiter implements domain.RateLimiter with a sliding window kept in a
// sorted set per key. Every process using the same key shares the budget:
// the oracle limit is global across workers, and per-IP API limits hold
// across server replicas.
type RateLimiter struct {
	rdb    *redis.Client
	script *redis.Script
}

// NewRateLimiter creates a RateLimiter on c.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:    c.Underlying(),
		script: redis.NewScript(slidingWindowLua),
	}
}

type verdict struct {
	allowed    bool
	retryAfter time.Duration
}

func (rl *RateLimiter) check(ctx context.Context, key string, limit int, window time.Duration) (verdict, error) {
	res, err := rl.script.Run(ctx, rl.rdb,
		[]string{"ratelimit:" + key},
		time.Now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return verdict{}, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) < 3 {
		return verdict{}, fmt.Errorf("redis: rate limit %s: unexpected reply %v", key, res)
	}
	return verdict{allowed: res[0] == 1, retryAfter: time.Duration(res[2]) * time.Microsecond}, nil
}

// Allow counts one request against key and reports whether it fits within
// limit per window. Rejected requests are not counted.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	v, err := rl.check(ctx, key, limit, window)
	if err != nil {
		return false, err
	}
	return v.allowed, nil
}

// Wait blocks until a request against key is admitted, sleeping until the
// oldest request in the window expires.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		v, err := rl.check(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if v.allowed {
			return nil
		}

		t := time.NewTimer(min(max(v.retryAfter, minWaitStep), maxWaitStep))
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-t.C:
		}
	}
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
