package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"frontdesk-backend-go/internal/services"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the KV needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

type RedisKV struct {
	Client RedisClient
	Prefix string
}

func NewRedisKV(addr, password string, db int) *RedisKV {
	return &RedisKV{
		Client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		Prefix: "frontdesk:",
	}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	value, err := r.Client.Get(ctx, r.Prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", services.ErrMiss
	}
	return value, err
}

func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.Client.Set(ctx, r.Prefix+key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = r.Prefix + key
	}
	return r.Client.Del(ctx, prefixed...).Err()
}

func (r *RedisKV) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *RedisKV) Close() error {
	if closer, ok := r.Client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// MemoryKV is an in-process KV for development and tests. Entries with a
// positive TTL expire lazily on read.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", services.ErrMiss
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return "", services.ErrMiss
	}
	return entry.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry
	return nil
}

func (m *MemoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryKV) Ping(context.Context) error {
	return nil
}

func (m *MemoryKV) Close() error {
	return nil
}
