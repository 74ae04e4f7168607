// Package cache memoises full-catalog search results. Entries are keyed by
// the tokenized query, the result size and the resolved weights, so two
// requests that would rank identically share an entry. Concurrent misses
// for one key are coalesced with singleflight, and a circuit breaker keeps
// a failing backend from slowing every request.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/resilience"
)

const keyPrefix = "rerank:search:"

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Backend      string `json:"backend"`
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Entries      int64  `json:"entries"`
	CircuitState string `json:"circuit_state"`
}

// QueryCache caches ranked search results in a Backend.
type QueryCache struct {
	backend Backend
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
	onHit   func()
	onMiss  func()
	logger  *slog.Logger
}

// Option customises a QueryCache.
type Option func(*QueryCache)

// WithCounters registers callbacks run on every hit and miss.
func WithCounters(onHit, onMiss func()) Option {
	return func(c *QueryCache) {
		c.onHit = onHit
		c.onMiss = onMiss
	}
}

func New(backend Backend, breaker *resilience.CircuitBreaker, opts ...Option) *QueryCache {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker("cache-"+backend.Name(), resilience.CircuitBreakerConfig{})
	}
	c := &QueryCache{
		backend: backend,
		breaker: breaker,
		onHit:   func() {},
		onMiss:  func() {},
		logger:  slog.Default().With("component", "query-cache", "backend", backend.Name()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key derives the cache key for a search.
func Key(query string, topK int, weights ranking.Weights) string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(strings.Join(tokenizer.Tokenize(query), " "))
	b.WriteString("|k=")
	b.WriteString(strconv.Itoa(topK))
	for _, name := range names {
		b.WriteString("|")
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(strconv.FormatFloat(weights[name], 'g', -1, 64))
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// Get returns the cached results for key. Backend failures count as misses.
func (c *QueryCache) Get(ctx context.Context, key string) ([]ranking.ScoredCandidate, bool) {
	var (
		data  []byte
		found bool
	)
	err := c.breaker.Execute(func() error {
		var err error
		data, found, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if !found {
		c.miss()
		return nil, false
	}
	var results []ranking.ScoredCandidate
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.onHit()
	return results, true
}

// Set stores results under key. Failures are logged, not returned.
func (c *QueryCache) Set(ctx context.Context, key string, results []ranking.ScoredCandidate) {
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.breaker.Execute(func() error { return c.backend.Set(ctx, key, data) }); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached results for key or runs compute once
// across concurrent callers and caches its output. The boolean reports a
// cache hit.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func() ([]ranking.ScoredCandidate, error)) ([]ranking.ScoredCandidate, bool, error) {
	if results, ok := c.Get(ctx, key); ok {
		return results, true, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]ranking.ScoredCandidate), false, nil
}

// Invalidate drops every cached entry.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var err error
		deleted, err = c.backend.Flush(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("invalidating %s cache: %w", c.backend.Name(), err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports hit and miss counters and the current entry count.
func (c *QueryCache) Stats(ctx context.Context) Stats {
	entries, err := c.backend.Len(ctx)
	if err != nil {
		c.logger.Warn("cache size unavailable", "error", err)
		entries = -1
	}
	return Stats{
		Backend:      c.backend.Name(),
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Entries:      entries,
		CircuitState: c.breaker.GetState().String(),
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	c.onMiss()
}
