package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces page keys in a shared Redis.
const DefaultRedisPrefix = "pagecache:page:"

const scanCount = 500

// redisEntry is the JSON value stored per page.
type redisEntry struct {
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisStore keeps pages in Redis, one string key per page.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis backed store. An empty prefix selects
// DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) get(ctx context.Context, key string) (*redisEntry, error) {
	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", key, err)
	}
	return &entry, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	return entry.Data, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	b, err := json.Marshal(redisEntry{Data: data, UpdatedAt: s.now()})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.redis.Set(ctx, s.prefix+key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) LastWriteTime(ctx context.Context, key string) (time.Time, error) {
	entry, err := s.get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	if entry.UpdatedAt.IsZero() {
		return time.Time{}, ErrMetadataUnavailable
	}
	return entry.UpdatedAt, nil
}

func (s *RedisStore) Entry(ctx context.Context, key string) ([]byte, time.Time, error) {
	entry, err := s.get(ctx, key)
	if err != nil {
		return nil, time.Time{}, err
	}
	if entry.UpdatedAt.IsZero() {
		return nil, time.Time{}, ErrMetadataUnavailable
	}
	return entry.Data, entry.UpdatedAt, nil
}

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	err := s.scan(ctx, s.prefix+"*", func(keys []string) error {
		for _, k := range keys {
			seen[TopLevel(strings.TrimPrefix(k, s.prefix))] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (s *RedisStore) DeleteRecursive(ctx context.Context, name string) error {
	if err := s.redis.Del(ctx, s.prefix+name).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return s.scan(ctx, s.prefix+escapeGlob(name)+"/*", func(keys []string) error {
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	})
}

// scan walks all keys matching pattern and hands each non-empty batch to fn.
func (s *RedisStore) scan(ctx context.Context, pattern string, fn func([]string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
