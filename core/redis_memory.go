package core

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisMemory implements Memory on top of a shared *redis.Client, so state
// that would otherwise live only in one process (agent registry entries,
// cached snapshots) survives a restart. TTL of 0 means no expiry, matching
// InMemoryStore's convention.
type RedisMemory struct {
	client *redis.Client
	prefix string
}

// NewRedisMemory builds a RedisMemory that namespaces every key under
// prefix, so multiple components can share one Redis instance without
// colliding.
func NewRedisMemory(client *redis.Client, prefix string) *RedisMemory {
	return &RedisMemory{client: client, prefix: prefix}
}

func (m *RedisMemory) key(key string) string { return m.prefix + key }

func (m *RedisMemory) Get(ctx context.Context, key string) (string, error) {
	val, err := m.client.Get(ctx, m.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (m *RedisMemory) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return m.client.Set(ctx, m.key(key), value, ttl).Err()
}

func (m *RedisMemory) Delete(ctx context.Context, key string) error {
	return m.client.Del(ctx, m.key(key)).Err()
}

func (m *RedisMemory) Exists(ctx context.Context, key string) (bool, error) {
	n, err := m.client.Exists(ctx, m.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
