package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/service"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/middleware"
)

func newTestServer(t *testing.T, limiter *middleware.Limiter) *httptest.Server {
	t.Helper()
	db, err := database.New(config.CatalogConfig{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := catalog.NewStore(db, nil)
	if _, err := catalog.NewLoader(store).SeedIfEmpty(t.Context(), "../../data/mock_products.json"); err != nil {
		t.Fatalf("seeding: %v", err)
	}

	m := metrics.New(prometheus.NewRegistry())
	svc := service.New(store, ranking.New(ranking.Weights{"text_match": 0.6, "rating": 0.2, "popularity": 0.2}), nil,
		service.Limits{DefaultTopK: 10, MaxTopK: 20, MaxCandidates: 100, RetrievalTimeout: time.Second}, m)
	checker := health.NewChecker()
	checker.Register("catalog", health.PingCheck(db))

	cfg := config.ServerConfig{RequestTimeout: 5 * time.Second, CORSOrigins: []string{"*"}}
	srv := httptest.NewServer(routes(handler.New(svc, nil, nil, nil, m), checker, cfg, m, limiter))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoutesServeSeededCatalog(t *testing.T) {
	srv := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/rerank",
		strings.NewReader(`{"query":"wireless headphones","candidate_ids":["prod_1","prod_2","prod_3"]}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://shop.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("response is missing a request id")
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://shop.example" {
		t.Error("CORS headers not applied")
	}

	ready, err := http.Get(srv.URL + "/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	ready.Body.Close()
	if ready.StatusCode != http.StatusOK {
		t.Errorf("ready status = %d", ready.StatusCode)
	}
}

func TestRoutesRateLimit(t *testing.T) {
	srv := newTestServer(t, middleware.NewLimiter(2, time.Minute))

	var codes []int
	for i := 0; i < 3; i++ {
		resp, err := http.Post(srv.URL+"/api/v1/search", "application/json", strings.NewReader(`{"query":"mat"}`))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v", codes)
	}

	live, err := http.Get(srv.URL + "/health/live")
	if err != nil {
		t.Fatal(err)
	}
	live.Body.Close()
	if live.StatusCode != http.StatusOK {
		t.Errorf("health should bypass the limiter, got %d", live.StatusCode)
	}
}
