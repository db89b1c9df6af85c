package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/linelogic/fraudgate/pkg/config"
	"github.com/redis/go-redis/v9"
)

// fixedWindowScript counts one attempt against the caller's window and
// returns {count, ttl}. The expiry is set only on the first increment so the
// window boundary is anchored to the first attempt.
const fixedWindowScript = `
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {current, ttl}
`

// Result describes the outcome of a window check.
type Result struct {
	Allowed    bool
	Attempts   int
	Remaining  int
	RetryAfter time.Duration
	Key        string
}

// Limiter is a Redis-backed fixed-window counter used by the edge gate for
// the per-IP signup window. It counts soft limits: concurrent requests near
// the boundary may each see the pre-increment count.
type Limiter struct {
	client *redis.Client
	cfg    config.RateLimitConfig
	script *redis.Script
}

// NewLimiter creates a limiter over the given Redis client.
func NewLimiter(client *redis.Client, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(fixedWindowScript),
	}
}

// Key returns the Redis key used for the given IP.
func (l *Limiter) Key(ip string) string {
	return fmt.Sprintf("%s:edge:%s", l.cfg.RedisPrefix, ip)
}

// Allow records one attempt for the IP and reports whether it is inside the
// edge window. A non-positive limit disables the check entirely.
func (l *Limiter) Allow(ctx context.Context, ip string) (Result, error) {
	limit := l.cfg.EdgeMaxAttempts
	if limit <= 0 {
		return Result{Allowed: true, Remaining: limit, Key: l.Key(ip)}, nil
	}

	key := l.Key(ip)
	windowSeconds := int(l.cfg.EdgeWindow() / time.Second)

	raw, err := l.script.Run(ctx, l.client, []string{key}, windowSeconds).Result()
	if err != nil {
		return Result{Key: key}, fmt.Errorf("rate limit script: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) < 2 {
		return Result{Key: key}, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}

	attempts := toInt(values[0])
	ttl := toInt(values[1])
	if ttl < 0 {
		ttl = windowSeconds
	}

	result := Result{
		Attempts:  attempts,
		Remaining: limit - attempts,
		Key:       key,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}

	if attempts > limit {
		result.Allowed = false
		result.RetryAfter = time.Duration(ttl) * time.Second
		return result, nil
	}

	result.Allowed = true
	return result, nil
}

// toInt converts a Lua script reply element to an int.
func toInt(v interface{}) int {
	switch value := v.(type) {
	case int64:
		return int(value)
	case int:
		return value
	case string:
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	case float64:
		return int(value)
	}
	return 0
}
