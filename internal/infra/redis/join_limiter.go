package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow prunes entries at or before now-window, then records now when under the limit.
// Scores are unix milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// JoinLimiter keeps each key's admissions in a sorted set so every instance sharing the Redis
// sees the same window.
type JoinLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewJoinLimiter(client *redis.Client, limit int, window time.Duration) *JoinLimiter {
	return &JoinLimiter{client: client, limit: limit, window: window}
}

func (l *JoinLimiter) Admit(ctx context.Context, key string, now time.Time) (bool, error) {
	res, err := slidingWindow.Run(ctx, l.client, []string{l.key(key)},
		now.UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("join limiter: %w", err)
	}
	return res == 1, nil
}

func (l *JoinLimiter) key(key string) string {
	return "quiz:joins:" + key
}
