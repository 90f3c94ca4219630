package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"fasela/internal/ratelimit/models"
)

// slidingWindow keeps one sorted-set member per admitted request, scored by its
// arrival in milliseconds. Pruning, counting and admitting run as one script so
// concurrent nodes never admit past the limit.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local first = now
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #oldest > 0 then
	first = tonumber(oldest[2])
end

if count < limit then
	redis.call('ZADD', key, now, ARGV[4])
	redis.call('PEXPIRE', key, window)
	return {1, count + 1, first}
end
return {0, count, first}
`)

// Redis is the shared sliding window limiter used when several nodes serve
// donors.
type Redis struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, now: time.Now}
}

func (s *Redis) Allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	now := s.now()
	windowMs := limit.Window.Milliseconds()
	raw, err := slidingWindow.Run(ctx, s.client, []string{key},
		now.UnixMilli(), windowMs, limit.Requests, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}

	resetAt := time.UnixMilli(raw[2] + windowMs)
	res := &models.Result{
		Allowed: raw[0] == 1,
		Limit:   limit.Requests,
		ResetAt: resetAt,
	}
	if res.Allowed {
		res.Remaining = limit.Requests - int(raw[1])
	} else {
		res.RetryAfter = resetAt.Sub(now)
	}
	return res, nil
}

func (s *Redis) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}
