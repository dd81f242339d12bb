package repository

import (
	"context"
	"fmt"

	"travelbook/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// nextScript raises the counter to at least floor and increments it atomically.
var nextScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if cur < floor then
	redis.call('SET', KEYS[1], ARGV[1])
end
return redis.call('INCR', KEYS[1])
`)

// RedisSequence keeps one counter per key, shared by every process using the same Redis.
type RedisSequence struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisSequence(client *redis.Client, keyPrefix string) *RedisSequence {
	if keyPrefix == "" {
		keyPrefix = "travelbook:seq:"
	}
	return &RedisSequence{client: client, keyPrefix: keyPrefix}
}

func (s *RedisSequence) Next(ctx context.Context, key string, floor int64) (int64, error) {
	if s.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	n, err := nextScript.Run(ctx, s.client, []string{s.keyPrefix + key}, floor).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", key, err)
	}
	return n, nil
}

// Current returns the stored counter value, 0 when unset.
func (s *RedisSequence) Current(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, s.keyPrefix+key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %w", key, err)
	}
	return n, nil
}
