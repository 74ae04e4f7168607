package analytics

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	topQueryLimit     = 10
)

// AggregatedStats summarises every event recorded since the aggregator
// started.
type AggregatedStats struct {
	TotalRequests     int64            `json:"total_requests"`
	ByEndpoint        map[string]int64 `json:"by_endpoint"`
	FailedRequests    int64            `json:"failed_requests"`
	NotFoundRequests  int64            `json:"not_found_requests"`
	NotFoundIDs       int64            `json:"not_found_ids"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgCandidates     float64          `json:"avg_candidates"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      float64          `json:"p50_latency_ms"`
	P95LatencyMs      float64          `json:"p95_latency_ms"`
	P99LatencyMs      float64          `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	RequestsPerMinute float64          `json:"requests_per_minute"`
	CapturedAt        time.Time        `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds RerankEvents into running totals. Latency percentiles
// are computed over the most recent samples only.
type Aggregator struct {
	mu                sync.RWMutex
	total             int64
	byEndpoint        map[string]int64
	failed            int64
	notFoundRequests  int64
	notFoundIDs       int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	candidateSum      int64
	latencies         []float64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byEndpoint:        make(map[string]int64),
		latencies:         make([]float64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler that records each decoded event.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return kafka.HandleJSON(agg.logger, func(_ context.Context, event RerankEvent) error {
		agg.Record(event)
		return nil
	})
}

// Record adds one event to the aggregate.
func (a *Aggregator) Record(event RerankEvent) {
	query := strings.ToLower(strings.TrimSpace(event.Query))

	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byEndpoint[string(event.Endpoint)]++
	if event.Failed() {
		a.failed++
	}
	if event.NotFound > 0 {
		a.notFoundRequests++
		a.notFoundIDs += int64(event.NotFound)
	}
	if event.Endpoint == EndpointSearch {
		if event.CacheHit {
			a.cacheHits++
		} else {
			a.cacheMisses++
		}
	}
	a.candidateSum += int64(event.Candidates)
	a.addLatency(event.LatencyMs)

	if query != "" {
		a.queryCounts[query]++
		if !event.Failed() && event.Returned == 0 {
			a.zeroResultQueries[query]++
		}
	}
	if !event.Failed() && event.Returned == 0 {
		a.zeroResults++
	}
}

// addLatency keeps at most maxLatencySamples, overwriting the oldest.
func (a *Aggregator) addLatency(ms float64) {
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, ms)
		return
	}
	a.latencies[a.next] = ms
	a.next = (a.next + 1) % maxLatencySamples
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now()
	stats := AggregatedStats{
		TotalRequests:    a.total,
		ByEndpoint:       make(map[string]int64, len(a.byEndpoint)),
		FailedRequests:   a.failed,
		NotFoundRequests: a.notFoundRequests,
		NotFoundIDs:      a.notFoundIDs,
		CacheHits:        a.cacheHits,
		CacheMisses:      a.cacheMisses,
		ZeroResultCount:  a.zeroResults,
		CapturedAt:       now.UTC(),
	}
	for k, v := range a.byEndpoint {
		stats.ByEndpoint[k] = v
	}
	if a.total > 0 {
		stats.AvgCandidates = float64(a.candidateSum) / float64(a.total)
	}
	if len(a.latencies) > 0 {
		sorted := make([]float64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Float64s(sorted)

		var sum float64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, topQueryLimit)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, topQueryLimit)
	elapsed := now.Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.RequestsPerMinute = float64(stats.TotalRequests) / elapsed
	}

	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n most frequent queries. Ties are broken alphabetically
// so the output is stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
