package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Store holds serialized read models shared by every API instance.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr atomically adds one to the counter at key and returns the new value.
	// Counters never expire.
	Incr(ctx context.Context, key string) (int64, error)
}

const keyPrefix = "storefront:"

type redisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, 0, len(keys))
	for _, k := range keys {
		prefixed = append(prefixed, keyPrefix+k)
	}
	return s.client.Del(ctx, prefixed...).Err()
}

func (s *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, keyPrefix+key).Result()
}

type memoryStore struct {
	items Cache[string, []byte]
	// counters serializes Incr read-modify-write cycles.
	counters sync.Mutex
}

// NewMemoryStore keeps entries in process; used when Redis is not configured.
func NewMemoryStore(c Cache[string, []byte]) Store {
	return &memoryStore{items: c}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := s.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	s.items.Set(key, stored, ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.items.Delete(k)
	}
	return nil
}

func (s *memoryStore) Incr(_ context.Context, key string) (int64, error) {
	s.counters.Lock()
	defer s.counters.Unlock()

	var n int64
	if raw, ok := s.items.Get(key); ok {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("counter %s is not an integer", key)
		}
		n = parsed
	}
	n++
	s.items.Set(key, []byte(strconv.FormatInt(n, 10)), 0)
	return n, nil
}

// GetJSON decodes the value at key into T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return out, true, nil
}

func SetJSON(ctx context.Context, s Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}
