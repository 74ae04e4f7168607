package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	pkgredis "github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/redis"
)

// Backend stores encoded result lists by key.
type Backend interface {
	// Get returns the stored bytes and whether the key was present. A miss
	// is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Flush removes every entry and returns how many were removed.
	Flush(ctx context.Context) (int64, error)
	Len(ctx context.Context) (int64, error)
	Name() string
}

// MemoryBackend is a size-bounded in-process LRU whose entries expire after
// a TTL.
type MemoryBackend struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryBackend(size int, ttl time.Duration) *MemoryBackend {
	if size <= 0 {
		size = 1000
	}
	return &MemoryBackend{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

func (m *MemoryBackend) Flush(_ context.Context) (int64, error) {
	n := int64(m.lru.Len())
	m.lru.Purge()
	return n, nil
}

func (m *MemoryBackend) Len(_ context.Context) (int64, error) {
	return int64(m.lru.Len()), nil
}

func (m *MemoryBackend) Name() string { return "memory" }

// RedisBackend shares cached results between reranker instances.
type RedisBackend struct {
	client *pkgredis.Client
	ttl    time.Duration
}

func NewRedisBackend(client *pkgredis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, r.ttl)
}

func (r *RedisBackend) Flush(ctx context.Context) (int64, error) {
	return r.client.FlushByPrefix(ctx, keyPrefix)
}

func (r *RedisBackend) Len(ctx context.Context) (int64, error) {
	return r.client.CountByPrefix(ctx, keyPrefix)
}

func (r *RedisBackend) Name() string { return "redis" }
