// Package ratelimit is a redis-backed fixed-window request limiter. The
// window state lives in redis so every replica enforces the same limit.
package ratelimit

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// fixedWindowScript counts requests per key and window. The first request in
// a window sets the expiry; the TTL doubles as the retry hint.
const fixedWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`

type FixedWindow struct {
	client *redis.Client
	script *redis.Script
}

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func NewFixedWindow(client *redis.Client) *FixedWindow {
	if client == nil {
		return nil
	}
	return &FixedWindow{
		client: client,
		script: redis.NewScript(fixedWindowScript),
	}
}

func (f *FixedWindow) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	if f == nil || f.client == nil {
		return &Result{Allowed: false}, errors.New("rate limiter not configured")
	}
	if key == "" {
		return &Result{Allowed: false}, errors.New("rate limiter key is empty")
	}
	if limit <= 0 || window <= 0 {
		return &Result{Allowed: false}, errors.New("rate limiter limit and window must be positive")
	}

	res, err := f.script.Run(ctx, f.client, []string{key}, int64(window/time.Millisecond)).Slice()
	if err != nil {
		return &Result{Allowed: false}, err
	}
	if len(res) < 2 {
		return &Result{Allowed: false}, errors.New("invalid rate limit script response")
	}

	count := castToInt(res[0])
	ttl := castToInt(res[1])

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	result := &Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
	}
	if !result.Allowed && ttl > 0 {
		result.RetryAfter = time.Duration(ttl) * time.Millisecond
	}
	return result, nil
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	default:
		return 0
	}
}
