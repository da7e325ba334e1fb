package stats

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps daily records as Redis hashes.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a Redis backed counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{redis: client}
}

func (s *RedisStore) HasField(ctx context.Context, key, field string) (bool, error) {
	err := s.redis.HGet(ctx, key, field).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis hget: %w", err)
	}
	return true, nil
}

func (s *RedisStore) SetFields(ctx context.Context, key string, fields map[string]int64) error {
	values := make([]any, 0, len(fields)*2)
	for f, v := range fields {
		values = append(values, f, v)
	}
	if err := s.redis.HSet(ctx, key, values...).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisStore) IncrField(ctx context.Context, key, field string, n int64) error {
	if err := s.redis.HIncrBy(ctx, key, field, n).Err(); err != nil {
		return fmt.Errorf("redis hincrby: %w", err)
	}
	return nil
}

func (s *RedisStore) Fields(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := s.redis.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	out := make(map[string]int64, len(raw))
	for f, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse field %s of %s: %w", f, key, err)
		}
		out[f] = n
	}
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
