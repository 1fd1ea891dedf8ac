package store

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"phonelease/internal/ratelimit/models"
)

const defaultRedisPrefix = "phonelease:ratelimit:"

// slidingWindow trims the sorted set to the window, then admits the request
// if there is room. Members are unique so same-millisecond requests count
// separately. Returns {allowed, count, oldest_ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then first = tonumber(oldest[2]) end
return {allowed, count, first}
`)

// RedisStore shares the sliding window across replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, policy models.Policy) (*models.Result, error) {
	now := s.now()
	res, err := slidingWindow.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(),
		policy.Window.Milliseconds(),
		policy.Limit,
		strconv.FormatInt(now.UnixNano(), 10)+":"+uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}

	allowed, count := res[0] == 1, int(res[1])
	resetAt := time.UnixMilli(res[2]).Add(policy.Window)
	result := &models.Result{
		Allowed:   allowed,
		Limit:     policy.Limit,
		Remaining: max(policy.Limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		result.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return result, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
