package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAggregatorRecord(t *testing.T) {
	agg := NewAggregator()
	start := agg.startTime
	agg.now = func() time.Time { return start.Add(2 * time.Minute) }

	events := []RerankEvent{
		{Endpoint: EndpointRerank, Query: "Headphones", Candidates: 4, Returned: 4, LatencyMs: 2, Status: 200},
		{Endpoint: EndpointRerank, Query: "headphones ", Candidates: 3, NotFound: 2, LatencyMs: 1, Status: 404},
		{Endpoint: EndpointSearch, Query: "yoga", Returned: 3, CacheHit: true, LatencyMs: 4, Status: 200},
		{Endpoint: EndpointSearch, Query: "unicorn", Returned: 0, LatencyMs: 3, Status: 200},
	}
	for _, e := range events {
		agg.Record(e)
	}

	s := agg.Stats()
	if s.TotalRequests != 4 || s.ByEndpoint["rerank"] != 2 || s.ByEndpoint["search"] != 2 {
		t.Errorf("totals = %+v", s)
	}
	if s.FailedRequests != 1 || s.NotFoundRequests != 1 || s.NotFoundIDs != 2 {
		t.Errorf("failures = %+v", s)
	}
	if s.CacheHits != 1 || s.CacheMisses != 1 {
		t.Errorf("cache = hits %d misses %d", s.CacheHits, s.CacheMisses)
	}
	if s.ZeroResultCount != 1 || len(s.ZeroResultQueries) != 1 || s.ZeroResultQueries[0].Query != "unicorn" {
		t.Errorf("zero results = %d %+v", s.ZeroResultCount, s.ZeroResultQueries)
	}
	if s.TopQueries[0].Query != "headphones" || s.TopQueries[0].Count != 2 {
		t.Errorf("top queries = %+v", s.TopQueries)
	}
	if s.AvgLatencyMs != 2.5 || s.P50LatencyMs != 3 || s.P99LatencyMs != 4 {
		t.Errorf("latency avg %v p50 %v p99 %v", s.AvgLatencyMs, s.P50LatencyMs, s.P99LatencyMs)
	}
	if s.AvgCandidates != 1.75 {
		t.Errorf("avg candidates = %v", s.AvgCandidates)
	}
	if s.RequestsPerMinute != 2 {
		t.Errorf("rpm = %v", s.RequestsPerMinute)
	}
}

func TestAggregatorCapsLatencySamples(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+5; i++ {
		agg.Record(RerankEvent{Endpoint: EndpointRerank, LatencyMs: float64(i), Status: 200, Returned: 1})
	}
	if len(agg.latencies) != maxLatencySamples {
		t.Fatalf("samples = %d", len(agg.latencies))
	}
	if agg.latencies[0] != float64(maxLatencySamples) {
		t.Errorf("oldest sample not overwritten: %v", agg.latencies[0])
	}
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	body, _ := json.Marshal(RerankEvent{Endpoint: EndpointSearch, Query: "mat", Returned: 1, Status: 200})
	if err := handle(context.Background(), nil, body); err != nil {
		t.Fatal(err)
	}
	if err := handle(context.Background(), []byte("k"), []byte("not json")); err != nil {
		t.Errorf("undecodable message should be skipped, got %v", err)
	}
	if got := agg.Stats().TotalRequests; got != 1 {
		t.Errorf("total = %d", got)
	}
}

type stubLister struct{ snaps []AggregatedStats }

func (s stubLister) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	if limit < len(s.snaps) {
		return s.snaps[:limit], nil
	}
	return s.snaps, nil
}

func TestHandler(t *testing.T) {
	agg := NewAggregator()
	agg.Record(RerankEvent{Endpoint: EndpointRerank, Query: "q", Returned: 1, Status: 200})

	mux := http.NewServeMux()
	NewHandler(agg, stubLister{snaps: []AggregatedStats{{TotalRequests: 9}, {TotalRequests: 8}}}).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))
	var stats AggregatedStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil || stats.TotalRequests != 1 {
		t.Errorf("stats = %+v, err %v", stats, err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=1", nil))
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Count != 1 {
		t.Errorf("snapshots count = %d, err %v", body.Count, err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rec.Code)
	}
}
