// Command loadtest drives the reranker API with concurrent search and
// rerank requests and prints throughput, latency percentiles and the cache
// hit ratio reported by the service.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8000] [-mode mixed]
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Mode        string
	Queries     []string
	Catalog     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	searches      atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.mu.Lock()
	s.latencies = append(s.latencies, duration)
	s.statusCodes[statusCode]++
	s.mu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "base URL of the reranker")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	mode := flag.String("mode", "mixed", "request mix: search, rerank or mixed")
	catalogSize := flag.Int("catalog", 20, "candidate ids are drawn from prod_1..prod_N")
	flag.Parse()

	switch *mode {
	case "search", "rerank", "mixed":
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		os.Exit(2)
	}

	ids := make([]string, *catalogSize)
	for i := range ids {
		ids[i] = fmt.Sprintf("prod_%d", i+1)
	}

	cfg := Config{
		BaseURL:     *baseURL,
		Concurrency: *concurrency,
		Duration:    *duration,
		Mode:        *mode,
		Catalog:     ids,
		Queries: []string{
			"wireless headphones",
			"bluetooth speaker",
			"running shoes",
			"yoga mat",
			"coffee maker",
			"gaming mouse",
			"water bottle",
			"desk lamp",
			"phone charger",
			"backpack",
			"smart watch",
			"kitchen knife",
		},
	}

	fmt.Println("=== Reranker Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Mode:        %s\n", cfg.Mode)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		workerID := w
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(workerID), uint64(time.Now().UnixNano())))
			for i := workerID; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				search := cfg.Mode == "search" || (cfg.Mode == "mixed" && i%2 == 0)

				var path string
				var body any
				if search {
					path = "/api/v1/search"
					body = map[string]any{"query": query, "top_k": 10}
				} else {
					path = "/api/v1/rerank"
					body = map[string]any{"query": query, "candidate_ids": sampleIDs(rng, cfg.Catalog, 8)}
				}

				start := time.Now()
				status, hit, err := post(ctx, client, cfg.BaseURL+path, body)
				if ctx.Err() != nil {
					return nil
				}
				stats.RecordRequest(time.Since(start), status, err)
				if search {
					stats.searches.Add(1)
					if hit {
						stats.cacheHits.Add(1)
					}
				}
			}
			return nil
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	g.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// post sends body as JSON and reports the status code and, for searches,
// whether the service answered from its cache.
func post(ctx context.Context, client *http.Client, url string, body any) (int, bool, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()

	var decoded struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		json.NewDecoder(resp.Body).Decode(&decoded)
	}
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, decoded.CacheHit, nil
}

func sampleIDs(rng *rand.Rand, ids []string, n int) []string {
	if n > len(ids) {
		n = len(ids)
	}
	out := make([]string, 0, n)
	for _, i := range rng.Perm(len(ids))[:n] {
		out = append(out, ids[i])
	}
	return out
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failed := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", failed)

	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}
	if searches := stats.searches.Load(); searches > 0 {
		fmt.Printf("Cache Hit Rate:  %.2f%% of %d searches\n", float64(stats.cacheHits.Load())/float64(searches)*100, searches)
	}

	stats.mu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	stats.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		fmt.Printf("P50:    %s\n", percentile(latencies, 50))
		fmt.Printf("P95:    %s\n", percentile(latencies, 95))
		fmt.Printf("P99:    %s\n", percentile(latencies, 99))
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	sort.Ints(codes)
	stats.mu.Lock()
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.mu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the reranker running?")
		os.Exit(1)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
