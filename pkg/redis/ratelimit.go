package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// admit trims the window and admits one request when under the limit.
// Returns {1, 0} on admission, {0, retry_ms} otherwise, where retry_ms is how long
// until the oldest entry leaves the window.
var admit = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)

	if redis.call('ZCARD', key) < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms)
		return {1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry = window_ms
	if oldest[2] then
		retry = tonumber(oldest[2]) + window_ms - now
	end
	return {0, retry}
`)

// minRetry bounds the sleep between admission attempts
const minRetry = 10 * time.Millisecond

// RateLimiter is a Redis sliding-window limiter for one upstream.
// Every process (CLI, API, scheduler) sharing the Redis instance shares the budget.
// ⭐ SSOT: 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	key    string
	limit  int
	window time.Duration
}

// NewRateLimiter allows limit requests per window to upstream, keyed under prefix
func NewRateLimiter(client *Client, prefix, upstream string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		key:    fmt.Sprintf("%s:ratelimit:%s", prefix, upstream),
		limit:  limit,
		window: window,
	}
}

// PerSecond is NewRateLimiter with a one second window
func PerSecond(client *Client, prefix, upstream string, n int) *RateLimiter {
	return NewRateLimiter(client, prefix, upstream, n, time.Second)
}

// Allow tries to admit one request. When denied it reports how long to back off.
func (r *RateLimiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	if !r.client.Enabled() {
		return true, 0, nil
	}

	now := time.Now()
	res, err := admit.Run(ctx, r.client.Redis(), []string{r.key},
		now.UnixMilli(),
		r.window.Milliseconds(),
		r.limit,
		now.UnixNano(), // 같은 밀리초 요청 구분
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", r.key, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit %s: unexpected reply %v", r.key, res)
	}

	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

// Wait blocks until a request is admitted or ctx ends.
// Satisfies httputil.Limiter.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		ok, retry, err := r.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if retry < minRetry {
			retry = minRetry
		}

		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
