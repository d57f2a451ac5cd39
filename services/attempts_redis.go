// ABOUTME: Redis-backed attempt limiter shared across instances
// ABOUTME: One Lua script performs the read-decide-write atomically per key

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// attemptScript mirrors decideAttempt. Times are unix milliseconds.
// Returns {allowed, retryAfterMillis}.
var attemptScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local maxAttempts = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local block = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local fields = redis.call('HMGET', key, 'count', 'last')
local count = tonumber(fields[1])
local last = tonumber(fields[2])

local function record(c)
  redis.call('HSET', key, 'count', c, 'last', now)
  redis.call('PEXPIRE', key, ttl)
end

if count == nil or last == nil then
  record(1)
  return {1, 0}
end

local elapsed = now - last
if count >= maxAttempts then
  if elapsed < block then
    return {0, last + block - now}
  end
  record(1)
  return {1, 0}
end

if elapsed > window then
  record(1)
  return {1, 0}
end

record(count + 1)
return {1, 0}
`)

// RedisAttemptStore keeps attempt counters in Redis hashes
type RedisAttemptStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisAttemptStore creates a store using keys under prefix
func NewRedisAttemptStore(client *redis.Client, prefix string) *RedisAttemptStore {
	return &RedisAttemptStore{client: client, prefix: prefix, now: time.Now}
}

// NewRedisClient parses a redis:// URL and pings the server
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisAttemptStore) CheckAndRecord(ctx context.Context, p AttemptPolicy, identifier string) (AttemptDecision, error) {
	ttl := max(p.Window, p.Block)
	res, err := attemptScript.Run(ctx, s.client, []string{s.key(p, identifier)},
		s.now().UnixMilli(),
		p.MaxAttempts,
		p.Window.Milliseconds(),
		p.Block.Milliseconds(),
		ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return AttemptDecision{}, fmt.Errorf("attempt script: %w", err)
	}
	if len(res) != 2 {
		return AttemptDecision{}, fmt.Errorf("attempt script returned %d values", len(res))
	}

	if res[0] == 1 {
		return AttemptDecision{Allowed: true}, nil
	}
	return AttemptDecision{Allowed: false, RetryAfter: retryAfterSeconds(time.Duration(res[1]) * time.Millisecond)}, nil
}

func (s *RedisAttemptStore) Reset(ctx context.Context, p AttemptPolicy, identifier string) error {
	if err := s.client.Del(ctx, s.key(p, identifier)).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

func (s *RedisAttemptStore) key(p AttemptPolicy, identifier string) string {
	return s.prefix + attemptKey(p, identifier)
}
