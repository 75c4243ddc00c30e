package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Stream connection attempts are counted under
// input:ratelimit:{ip}:stream with a TTL of one window.

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

// StreamLimiter caps how often one client address may open stream
// connections. Counters live in Redis so every relay instance shares them.
type StreamLimiter struct {
	client *goredis.Client
	limit  int
	window time.Duration
}

func NewStreamLimiter(client *goredis.Client, limit int, window time.Duration) *StreamLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &StreamLimiter{client: client, limit: limit, window: window}
}

// fixed window counter; returns {allowed, remaining, ttl}
var limitScript = goredis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[2])
	end
	local ttl = redis.call('TTL', KEYS[1])
	local limit = tonumber(ARGV[1])
	if current > limit then
		return {0, 0, ttl}
	end
	return {1, limit - current, ttl}
`)

// Allow counts one connection attempt from ip.
func (l *StreamLimiter) Allow(ctx context.Context, ip string) (*RateLimitResult, error) {
	key := fmt.Sprintf("input:ratelimit:%s:stream", ip)
	result, err := limitScript.Run(ctx, l.client, []string{key}, l.limit, int(l.window.Seconds())).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(result) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	return &RateLimitResult{
		Allowed:   result[0] == 1,
		Remaining: int(result[1]),
		ResetIn:   time.Duration(result[2]) * time.Second,
		Limit:     l.limit,
	}, nil
}

// Reset clears the counter for ip.
func (l *StreamLimiter) Reset(ctx context.Context, ip string) error {
	return l.client.Del(ctx, fmt.Sprintf("input:ratelimit:%s:stream", ip)).Err()
}
