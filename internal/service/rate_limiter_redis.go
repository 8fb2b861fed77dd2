package service

import (
	"context"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const rateLimitKeyPrefix = "ratelimit:"

// tokenBucketScript applies the same refill-then-deduct rule as
// TokenBucketLimiter, atomically on the Redis side.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
    tokens = capacity
    ts = now
end

local elapsed = math.max(0, now - ts) / 1000
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', now)
redis.call('PEXPIRE', key, ttl)

return allowed
`)

// RedisTokenBucketLimiter shares buckets between processes through Redis.
type RedisTokenBucketLimiter struct {
	client   redis.Scripter
	capacity float64
	refill   float64
	ttl      time.Duration
}

func NewRedisTokenBucketLimiter(client redis.Scripter, capacity, refillPerSec float64) *RedisTokenBucketLimiter {
	// Keys expire once the bucket would be full again, plus slack.
	ttl := time.Minute
	if refillPerSec > 0 {
		ttl = time.Duration(math.Ceil(capacity/refillPerSec*1000))*time.Millisecond + time.Second
	}
	return &RedisTokenBucketLimiter{
		client:   client,
		capacity: capacity,
		refill:   refillPerSec,
		ttl:      ttl,
	}
}

func (l *RedisTokenBucketLimiter) Allow(ctx context.Context, key string) bool {
	result, err := tokenBucketScript.Run(
		ctx,
		l.client,
		[]string{rateLimitKeyPrefix + key},
		l.capacity,
		l.refill,
		time.Now().UnixMilli(),
		l.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		log.Warn().
			Err(err).
			Str("key", key).
			Msg("redis rate limit check failed, allowing request")
		return true
	}

	return result == 1
}
