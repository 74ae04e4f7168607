package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersOnPrivateRegistry(t *testing.T) {
	// Two instances must not collide.
	a := New(nil)
	b := New(nil)

	a.RerankRequestsTotal.WithLabelValues("rerank", OutcomeOK).Inc()
	if got := testutil.ToFloat64(a.RerankRequestsTotal.WithLabelValues("rerank", OutcomeOK)); got != 1 {
		t.Errorf("a counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.RerankRequestsTotal.WithLabelValues("rerank", OutcomeOK)); got != 0 {
		t.Errorf("b counter = %v, want 0", got)
	}
}

func TestHandlerServesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.CacheHitsTotal.Inc()
	m.RerankBatchSize.Observe(12)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"rerank_cache_hits_total 1", "rerank_batch_size_count 1"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("scrape output missing %q", name)
		}
	}
}
