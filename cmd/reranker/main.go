// Command reranker serves the product reranking API.
//
// It loads the product catalog (seeding it from a JSON file when empty),
// ranks candidates on POST /api/v1/rerank and the whole catalog on
// POST /api/v1/search, caches search results in Redis or in memory, and
// publishes one analytics event per request to Kafka when enabled.
//
// Usage:
//
//	go run ./cmd/reranker [-config configs/development.yaml]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/service"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting reranker", "port", cfg.Server.Port, "catalog_driver", cfg.Catalog.Driver)

	if err := run(cfg); err != nil {
		slog.Error("reranker failed", "error", err)
		os.Exit(1)
	}
	slog.Info("reranker stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := m.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	var db *database.Client
	err := resilience.Retry(ctx, "catalog-connect", resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 500 * time.Millisecond}, func() error {
		var err error
		db, err = database.New(cfg.Catalog)
		return err
	})
	if err != nil {
		return fmt.Errorf("connecting to catalog: %w", err)
	}
	defer db.Close()

	store := catalog.NewStore(db, func(op string, d time.Duration) {
		m.CatalogQueryDuration.WithLabelValues(op).Observe(d.Seconds())
	})
	seeded, err := catalog.NewLoader(store).SeedIfEmpty(ctx, cfg.Catalog.SeedFile)
	if err != nil {
		return err
	}
	if seeded > 0 {
		slog.Info("catalog seeded", "products", seeded, "file", cfg.Catalog.SeedFile)
	}

	checker := health.NewChecker()
	checker.Register("catalog", health.PingCheck(db))

	queryCache, closeCache := newQueryCache(cfg, m, checker)
	defer closeCache()

	var tracker handler.Tracker
	if cfg.Analytics.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.RerankEvents)
		defer producer.Close()
		collector := analytics.NewBatchCollector(producer, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval, analytics.CollectorHooks{
			OnTracked:   func() { m.AnalyticsEventsTotal.WithLabelValues("tracked").Inc() },
			OnDropped:   func(n int) { m.AnalyticsEventsTotal.WithLabelValues("dropped").Add(float64(n)) },
			OnPublished: func(n int) { m.AnalyticsEventsTotal.WithLabelValues("published").Add(float64(n)) },
			OnFailed:    func(n int) { m.AnalyticsEventsTotal.WithLabelValues("failed").Add(float64(n)) },
		})
		collector.Start(ctx)
		defer func() {
			stop()
			collector.Close()
		}()
		tracker = collector
		checker.Register("kafka", health.Optional(health.PingCheck(producer)))
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.RerankEvents)
	}

	reranker := ranking.New(cfg.Rerank.DefaultWeights)
	svc := service.New(store, reranker, queryCache, service.Limits{
		DefaultTopK:      cfg.Rerank.DefaultTopK,
		MaxTopK:          cfg.Rerank.MaxTopK,
		MaxCandidates:    cfg.Rerank.MaxCandidates,
		RetrievalTimeout: cfg.Rerank.RetrievalTimeout,
	}, m)
	h := handler.New(svc, queryCache, tracker, tracing.NewTracer(cfg.Tracing), m)

	var limiter *middleware.Limiter
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter = middleware.NewLimiter(cfg.Server.RateLimitPerMinute, time.Minute)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      routes(h, checker, cfg.Server, m, limiter),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("reranker listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if limiter != nil {
		g.Go(func() error {
			limiter.RunCleanup(gctx)
			return nil
		})
	}
	return g.Wait()
}

// routes mounts the API and health endpoints behind the middleware chain.
// Recover sits inside Timeout because the handler runs on the timeout
// goroutine.
func routes(h *handler.Handler, checker *health.Checker, cfg config.ServerConfig, m *metrics.Metrics, limiter *middleware.Limiter) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.CORS(cfg.CORSOrigins),
		middleware.RateLimit(limiter),
		middleware.Metrics(m),
		middleware.Timeout(cfg.RequestTimeout),
		middleware.Recover,
	)
}

// newQueryCache builds the configured search cache. A Redis backend that
// cannot be reached falls back to memory so the API stays up.
func newQueryCache(cfg *config.Config, m *metrics.Metrics, checker *health.Checker) (*cache.QueryCache, func()) {
	noop := func() {}
	var (
		backend cache.Backend
		closeFn = noop
	)
	switch cfg.Cache.Backend {
	case "none":
		slog.Info("search caching disabled")
		return nil, noop
	case "redis":
		client, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, using in-memory search cache", "addr", cfg.Redis.Addr, "error", err)
			backend = cache.NewMemoryBackend(cfg.Cache.MaxSize, cfg.Cache.TTL)
			break
		}
		backend = cache.NewRedisBackend(client, cfg.Cache.TTL)
		closeFn = func() { client.Close() }
		checker.Register("redis", health.Optional(health.PingCheck(client)))
	default:
		backend = cache.NewMemoryBackend(cfg.Cache.MaxSize, cfg.Cache.TTL)
	}

	breaker := resilience.NewCircuitBreaker("cache-"+backend.Name(), resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	m.CircuitBreakerState.WithLabelValues(breaker.Name()).Set(float64(resilience.StateClosed))

	qc := cache.New(backend, breaker, cache.WithCounters(m.CacheHitsTotal.Inc, m.CacheMissesTotal.Inc))
	slog.Info("search cache enabled", "backend", backend.Name(), "ttl", cfg.Cache.TTL)
	return qc, closeFn
}
