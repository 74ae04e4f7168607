// Command analytics starts the standalone rerank analytics service.
//
// It consumes rerank events from Kafka, aggregates them in memory (request
// counts per endpoint, latency percentiles, cache hit rate, not-found and
// zero-result queries), snapshots the aggregate to the catalog database and
// serves it at GET /api/v1/analytics.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	port := flag.Int("port", 8001, "HTTP port for the analytics API")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.RerankEvents)

	if err := run(cfg, *port); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config, port int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.RerankEvents, analytics.HandleEvent(aggregator))

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	// Snapshots are best effort: without a database the live API still works.
	var snapshots *snapshot.Store
	var db *database.Client
	err := resilience.Retry(ctx, "snapshot-db-connect", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		var err error
		db, err = database.New(cfg.Catalog)
		return err
	})
	if err != nil {
		slog.Warn("snapshot database unavailable, snapshots disabled", "error", err)
	} else {
		defer db.Close()
		snapshots = snapshot.NewStore(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return err
		}
		checker.Register("snapshot_db", health.Optional(health.PingCheck(db)))
		if latest, err := snapshots.Latest(ctx); err == nil && latest != nil {
			slog.Info("previous snapshot found",
				"captured_at", latest.CapturedAt,
				"total_requests", latest.TotalRequests,
			)
		}
	}

	mux := http.NewServeMux()
	if snapshots != nil {
		analytics.NewHandler(aggregator, snapshots).Register(mux)
	} else {
		analytics.NewHandler(aggregator, nil).Register(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Recover),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	if snapshots != nil {
		g.Go(func() error {
			return snapshots.Run(gctx, aggregator, cfg.Analytics.SnapshotInterval)
		})
	}
	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
