package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	orderLimitPrefix = "ratelimit:orders:"
	orderLimitIdle   = 2 * time.Minute
)

// RateLimitResult is the outcome of one order throttle check.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// orderBucket refills in milliseconds so that low per-minute rates
// do not round a partial refill down to zero.
//
// KEYS[1] bucket hash
// ARGV    capacity, refill per ms, now (ms), idle expiry (ms)
// returns {allowed, wait_ms, tokens_left}
var orderBucket = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local per_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
	tokens = capacity
	ts = now
end
if now > ts then
	tokens = math.min(capacity, tokens + (now - ts) * per_ms)
end

local wait = 0
local ok = 0
if tokens >= 1 then
	tokens = tokens - 1
	ok = 1
else
	wait = math.ceil((1 - tokens) / per_ms)
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return {ok, wait, math.floor(tokens)}
`)

// CheckOrderRateLimit takes one order slot from subject's bucket.
// ratePerMinute <= 0 turns throttling off. Redis failures are returned
// to the caller, which decides whether to let the order through.
func (c *Cache) CheckOrderRateLimit(ctx context.Context, subject string, ratePerMinute, burst int) (*RateLimitResult, error) {
	now := time.Now()
	if ratePerMinute <= 0 {
		return &RateLimitResult{Allowed: true, Remaining: int64(burst), ResetAt: now.Add(time.Minute)}, nil
	}

	perMs := float64(ratePerMinute) / float64(time.Minute.Milliseconds())
	out, err := orderBucket.Run(ctx, c.client,
		[]string{orderLimitPrefix + subject},
		burst, perMs, now.UnixMilli(), orderLimitIdle.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("order bucket %s: %w", subject, err)
	}

	wait := time.Duration(out[1]) * time.Millisecond
	return &RateLimitResult{
		Allowed:    out[0] == 1,
		Remaining:  out[2],
		ResetAt:    now.Add(time.Minute / time.Duration(ratePerMinute)),
		RetryAfter: wait,
	}, nil
}
