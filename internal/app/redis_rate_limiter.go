package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Fixed window: the first hit starts the window, later hits only count.
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RateDecision is the result of counting one request against a window.
type RateDecision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum one.
func (d RateDecision) RetryAfterSeconds() int {
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimiter throttles credit score calculations per user.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID, limit int, window time.Duration) (RateDecision, error)
}

// RedisRateLimiter is a fixed-window RateLimiter shared by every replica
// through Redis.
type RedisRateLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisRateLimiter(client redis.UniversalClient, prefix string) *RedisRateLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "credible:rate_limit"
	}
	return &RedisRateLimiter{client: client, prefix: prefix}
}

func (r *RedisRateLimiter) key(userID uuid.UUID) string {
	return fmt.Sprintf("%s:credit_score_calculate:%s", r.prefix, userID)
}

// Allow counts one calculation for userID. A non-positive limit or window
// disables the check.
func (r *RedisRateLimiter) Allow(ctx context.Context, userID uuid.UUID, limit int, window time.Duration) (RateDecision, error) {
	if r == nil || r.client == nil || limit <= 0 || window <= 0 {
		return RateDecision{Allowed: true}, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	raw, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(userID)}, windowMs).Result()
	if err != nil {
		return RateDecision{}, err
	}
	count, ttlMs, err := parseWindowReply(raw)
	if err != nil {
		return RateDecision{}, err
	}
	if ttlMs < 0 {
		ttlMs = windowMs
	}

	return RateDecision{
		Allowed:    count <= int64(limit),
		Count:      int(count),
		RetryAfter: time.Duration(ttlMs) * time.Millisecond,
	}, nil
}

func parseWindowReply(raw interface{}) (count int64, ttlMs int64, err error) {
	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected redis limiter response shape: %T", raw)
	}
	count, ok = values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected redis limiter count type: %T", values[0])
	}
	ttlMs, ok = values[1].(int64)
	if !ok {
		return count, 0, fmt.Errorf("unexpected redis limiter ttl type: %T", values[1])
	}
	return count, ttlMs, nil
}
