// Package metrics defines the Prometheus collectors used by the reranker
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for RerankRequestsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RerankRequestsTotal  *prometheus.CounterVec
	RerankLatency        *prometheus.HistogramVec
	RerankBatchSize      prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CatalogQueryDuration *prometheus.HistogramVec
	CircuitBreakerState  *prometheus.GaugeVec
	AnalyticsEventsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg uses a
// fresh private registry, which keeps repeated construction in tests safe.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RerankRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rerank_requests_total",
				Help: "Total rerank and search requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		RerankLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rerank_latency_seconds",
				Help:    "Time spent scoring and ordering one candidate batch.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"endpoint"},
		),
		RerankBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rerank_batch_size",
				Help:    "Number of candidates scored per request.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rerank_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "rerank_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		CatalogQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_query_duration_seconds",
				Help:    "Product catalog query latency by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Rerank analytics events by status (tracked, dropped, published, failed).",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RerankRequestsTotal,
		m.RerankLatency,
		m.RerankBatchSize,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CatalogQueryDuration,
		m.CircuitBreakerState,
		m.AnalyticsEventsTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	return m
}

// Handler returns the Prometheus scrape handler for the registry m was
// registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
