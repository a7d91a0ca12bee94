package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// Redis keys for generation storage.
const (
	// RedisKeyGenerations is the set of existing generation names
	RedisKeyGenerations = "offline:generations"

	// RedisKeyGenerationPrefix prefixes the hash holding one generation's entries
	RedisKeyGenerationPrefix = "offline:generation:"
)

// RedisStore keeps generations in Redis.
// Each generation is one hash (field = key, value = JSON entry) and its name is
// registered in a set so that empty generations can exist.
type RedisStore struct {
	redis *redis.Client
}

// NewRedisStore creates a store backed by the given Redis client.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
	}
}

func generationKey(name string) string {
	return RedisKeyGenerationPrefix + name
}

// Open registers the generation name.
func (s *RedisStore) Open(ctx context.Context, name string) error {
	if err := s.redis.SAdd(ctx, RedisKeyGenerations, name).Err(); err != nil {
		CacheErrors.WithLabelValues("open").Inc()
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

// Names returns all registered generation names, sorted.
func (s *RedisStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.redis.SMembers(ctx, RedisKeyGenerations).Result()
	if err != nil {
		CacheErrors.WithLabelValues("names").Inc()
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the generation hash and its registration atomically.
func (s *RedisStore) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.SRem(ctx, RedisKeyGenerations, name)
		pipe.Del(ctx, generationKey(name))
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return false, fmt.Errorf("redis delete generation: %w", err)
	}

	existed := removed.Val() > 0
	if existed {
		GenerationsDeleted.Inc()
	}
	return existed, nil
}

// Match retrieves an entry from the generation hash.
func (s *RedisStore) Match(ctx context.Context, name string, key Key) (*Entry, error) {
	data, err := s.redis.HGet(ctx, generationKey(name), key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observeMatch(name, ErrCacheMiss)
			return nil, ErrCacheMiss
		}
		observeMatch(name, err)
		return nil, fmt.Errorf("redis hget: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		observeMatch(name, err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	observeMatch(name, nil)
	return &entry, nil
}

// Put stores an entry and registers the generation in one transaction.
func (s *RedisStore) Put(ctx context.Context, name string, key Key, entry *Entry) error {
	if entry == nil {
		return ErrInvalidEntry
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, RedisKeyGenerations, name)
		pipe.HSet(ctx, generationKey(name), key.String(), data)
		return nil
	})
	if err != nil {
		CacheErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("redis put entry: %w", err)
	}
	return nil
}

// Keys lists the keys stored in one generation.
func (s *RedisStore) Keys(ctx context.Context, name string) ([]Key, error) {
	fields, err := s.redis.HKeys(ctx, generationKey(name)).Result()
	if err != nil {
		CacheErrors.WithLabelValues("keys").Inc()
		return nil, fmt.Errorf("redis hkeys: %w", err)
	}

	keys := make([]Key, 0, len(fields))
	for _, field := range fields {
		if k, ok := ParseKey(field); ok {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys, nil
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.redis.Close()
}

// Ping checks that Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
