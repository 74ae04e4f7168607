// Package redis wraps go-redis/v9 for the reranker's shared result cache:
// byte-valued get/set with TTL, prefix scans for invalidation and counting,
// and a health ping.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
)

// ErrNil is returned by Get when the key does not exist.
var ErrNil = redis.Nil

const scanBatch = 100

// Client wraps a go-redis client.
type Client struct {
	rdb redis.UniversalClient
}

// NewClient creates a Redis client and verifies the connection with a PING.
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns the raw value stored at key, or ErrNil.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// Set stores value at key with the given TTL.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Del deletes one or more keys.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// FlushByPrefix deletes every key starting with prefix and returns how many
// were removed. Keys are deleted in scan-sized batches.
func (c *Client) FlushByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	err := c.scan(ctx, prefix, func(keys []string) error {
		n, err := c.rdb.Del(ctx, keys...).Result()
		deleted += n
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("flushing prefix %s: %w", prefix, err)
	}
	return deleted, nil
}

// CountByPrefix returns the number of keys starting with prefix.
func (c *Client) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := c.scan(ctx, prefix, func(keys []string) error {
		count += int64(len(keys))
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("counting prefix %s: %w", prefix, err)
	}
	return count, nil
}

func (c *Client) scan(ctx context.Context, prefix string, fn func(keys []string) error) error {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// IsNilError reports whether err is a Redis nil (key-not-found) error.
func IsNilError(err error) bool {
	return errors.Is(err, redis.Nil)
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping sends a PING to Redis and returns any error.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
