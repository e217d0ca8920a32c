package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// MemoryCache is an in-process Cache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	events    []models.Event
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]models.Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.events, true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, events []models.Event, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{events: events, expiresAt: m.now().Add(ttl)}
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// RedisCache stores event logs as JSON values with a redis TTL
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// DialRedisCache connects to url and verifies the connection
func DialRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCache(client, prefix), nil
}

func (r *RedisCache) redisKey(key string) string {
	if r.prefix == "" {
		return "events:" + key
	}
	return r.prefix + ":events:" + key
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]models.Event, bool, error) {
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached events: %w", err)
	}

	var events []models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached events: %w", err)
	}
	return events, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, events []models.Event, ttl time.Duration) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode events: %w", err)
	}
	if err := r.client.Set(ctx, r.redisKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache events: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to drop cached events: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
