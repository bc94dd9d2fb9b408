package decision

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisOfflineStore persists buffered offline events in a Redis list keyed
// by Key, so a Tracker or FeedbackProcessor's offline queue survives a
// process restart instead of living only in the in-process
// memoryOfflineStore. Events are JSON-encoded; DrainAll reads and clears
// the list in a single round trip pair.
type RedisOfflineStore struct {
	client   *redis.Client
	key      string
	capacity int
}

// NewRedisOfflineStore builds a RedisOfflineStore. capacity <= 0 means
// unbounded, matching memoryOfflineStore's convention.
func NewRedisOfflineStore(client *redis.Client, key string, capacity int) *RedisOfflineStore {
	return &RedisOfflineStore{client: client, key: key, capacity: capacity}
}

func (s *RedisOfflineStore) Append(e Event) error {
	ctx := context.Background()
	if s.capacity > 0 {
		n, err := s.client.LLen(ctx, s.key).Result()
		if err != nil {
			return fmt.Errorf("redis offline store: llen: %w", err)
		}
		if int(n) >= s.capacity {
			return NewError(ErrOfflineBufferFull, "offline buffer is full", map[string]interface{}{
				"capacity": s.capacity,
			})
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis offline store: marshal event: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, data).Err(); err != nil {
		return fmt.Errorf("redis offline store: rpush: %w", err)
	}
	return nil
}

func (s *RedisOfflineStore) DrainAll() []Event {
	ctx := context.Background()
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil
	}
	s.client.Del(ctx, s.key)

	out := make([]Event, 0, len(raw))
	for _, item := range raw {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

func (s *RedisOfflineStore) Size() int {
	ctx := context.Background()
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
