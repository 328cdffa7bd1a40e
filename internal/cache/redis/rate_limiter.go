package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/triarb/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

var slidingWindow = redis.NewScript(slidingWindowLua)

// minRetryDelay keeps Wait from spinning when the window is about to open.
const minRetryDelay = time.Millisecond

// RateLimiter implements domain.RateLimiter with a sliding window kept in a
// sorted set. It caps depth fetches shared by every scanner instance and
// per-client API requests.
type RateLimiter struct {
	c   *Client
	now func() time.Time
}

// NewRateLimiter creates a RateLimiter.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{c: c, now: time.Now}
}

// Allow counts one request against key and reports whether it fits.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := rl.take(ctx, key, limit, window)
	return allowed, err
}

// Wait blocks until a request against key fits, sleeping for the time the
// oldest request in the window still has to live.
func (rl *RateLimiter) Wait(ctx context.Context, key string, limit int, window time.Duration) error {
	for {
		allowed, retry, err := rl.take(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(retryDelay(retry, window))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("redis: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

func (rl *RateLimiter) take(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	res, err := slidingWindow.Run(ctx, rl.c.rdb,
		[]string{rl.c.key("ratelimit", key)},
		rl.now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}
	if len(res) < 3 {
		return false, 0, fmt.Errorf("redis: rate limit %s: unexpected reply length %d", key, len(res))
	}
	return res[0] == 1, time.Duration(res[2]) * time.Microsecond, nil
}

func retryDelay(retry, window time.Duration) time.Duration {
	if retry < minRetryDelay {
		return minRetryDelay
	}
	if retry > window {
		return window
	}
	return retry
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
