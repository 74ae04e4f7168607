// Package service runs rerank and search requests: it retrieves candidates
// from the catalog under a deadline, enforces request-level rules such as
// not-found reporting and duplicate collapsing, and hands the batch to the
// ranking core.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/request"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking"
	apperrors "github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/tracing"
)

// Catalog is the product lookup the service needs. *catalog.Store
// implements it.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]catalog.Product, error)
	All(ctx context.Context) ([]catalog.Product, error)
	Create(ctx context.Context, p catalog.Product) error
}

// Limits bounds request sizes and catalog latency.
type Limits struct {
	DefaultTopK      int
	MaxTopK          int
	MaxCandidates    int
	RetrievalTimeout time.Duration
}

// RerankResult is the response body of a rerank request.
type RerankResult struct {
	Query      string                    `json:"query"`
	Candidates []ranking.ScoredCandidate `json:"candidates"`
	Count      int                       `json:"count"`
}

// SearchResult is the response body of a search request.
type SearchResult struct {
	Query    string                    `json:"query"`
	Results  []ranking.ScoredCandidate `json:"results"`
	Count    int                       `json:"count"`
	CacheHit bool                      `json:"cache_hit"`
}

type Service struct {
	catalog  Catalog
	reranker *ranking.Reranker
	cache    *cache.QueryCache
	limits   Limits
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Service. queryCache may be nil to disable search caching.
func New(cat Catalog, reranker *ranking.Reranker, queryCache *cache.QueryCache, limits Limits, m *metrics.Metrics) *Service {
	return &Service{
		catalog:  cat,
		reranker: reranker,
		cache:    queryCache,
		limits:   limits,
		metrics:  m,
		logger:   slog.Default().With("component", "rerank-service"),
	}
}

// Rerank scores the requested candidates. Identifiers are looked up in the
// catalog unless the request carries the candidates inline. Every unknown
// identifier is reported in a single NotFoundError.
func (s *Service) Rerank(ctx context.Context, req request.Rerank) (*RerankResult, error) {
	var candidates []catalog.Product
	if len(req.Candidates) > 0 {
		candidates = dedupeProducts(req.Candidates)
		if err := s.checkBatchSize(len(candidates)); err != nil {
			return nil, err
		}
	} else {
		ids := dedupeIDs(req.CandidateIDs)
		if err := s.checkBatchSize(len(ids)); err != nil {
			return nil, err
		}
		var err error
		candidates, err = s.retrieve(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	topK := len(candidates)
	if req.TopK != nil {
		topK = *req.TopK
	}
	scored := s.score(ctx, req.Mode, candidates, req.Query, req.Weights, topK, "rerank")
	return &RerankResult{
		Query:      req.Query,
		Candidates: scored,
		Count:      len(scored),
	}, nil
}

// Search ranks the whole catalog and returns the best TopK. Results are
// cached per query, size and resolved weights.
func (s *Service) Search(ctx context.Context, req request.Search) (*SearchResult, error) {
	topK := s.limits.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if s.limits.MaxTopK > 0 && topK > s.limits.MaxTopK {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"top_k %d exceeds the limit of %d", topK, s.limits.MaxTopK)
	}
	weights := s.reranker.ResolveWeights(req.Weights)

	compute := func() ([]ranking.ScoredCandidate, error) {
		all, err := resilience.CallWithTimeout(ctx, s.limits.RetrievalTimeout, "catalog-all", s.catalog.All)
		if err != nil {
			return nil, s.retrievalError(err)
		}
		return s.score(ctx, request.ModeBatch, all, req.Query, weights, topK, "search"), nil
	}

	var (
		results []ranking.ScoredCandidate
		hit     bool
		err     error
	)
	if s.cache != nil {
		spanCtx, span := tracing.StartChild(ctx, "cache")
		results, hit, err = s.cache.GetOrCompute(spanCtx, cache.Key(req.Query, topK, weights), compute)
		span.SetAttr("hit", hit)
		span.End()
	} else {
		results, err = compute()
	}
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Query:    req.Query,
		Results:  results,
		Count:    len(results),
		CacheHit: hit,
	}, nil
}

// GetProduct returns one catalog product.
func (s *Service) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	found, err := resilience.CallWithTimeout(ctx, s.limits.RetrievalTimeout, "catalog-get",
		func(ctx context.Context) (map[string]catalog.Product, error) {
			return s.catalog.GetByIDs(ctx, []string{id})
		})
	if err != nil {
		return catalog.Product{}, s.retrievalError(err)
	}
	p, ok := found[id]
	if !ok {
		return catalog.Product{}, &apperrors.NotFoundError{IDs: []string{id}}
	}
	return p, nil
}

// CreateProduct adds p to the catalog. Cached search results are dropped
// because the new product changes every batch they were ranked over.
func (s *Service) CreateProduct(ctx context.Context, p catalog.Product) error {
	if err := s.catalog.Create(ctx, p); err != nil {
		return err
	}
	if s.cache != nil {
		if _, err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("cache invalidation after create failed", "product_id", p.ID, "error", err)
		}
	}
	return nil
}

func (s *Service) retrieve(ctx context.Context, ids []string) ([]catalog.Product, error) {
	ctx, span := tracing.StartChild(ctx, "retrieve")
	defer span.End()
	span.SetAttr("requested", len(ids))

	found, err := resilience.CallWithTimeout(ctx, s.limits.RetrievalTimeout, "catalog-get-by-ids",
		func(ctx context.Context) (map[string]catalog.Product, error) {
			return s.catalog.GetByIDs(ctx, ids)
		})
	if err != nil {
		return nil, s.retrievalError(err)
	}

	candidates := make([]catalog.Product, 0, len(ids))
	var missing []string
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		candidates = append(candidates, p)
	}
	span.SetAttr("found", len(candidates))
	if len(missing) > 0 {
		return nil, &apperrors.NotFoundError{IDs: missing}
	}
	return candidates, nil
}

func (s *Service) score(ctx context.Context, mode string, candidates []catalog.Product, query string, weights ranking.Weights, topK int, endpoint string) []ranking.ScoredCandidate {
	_, span := tracing.StartChild(ctx, "score")
	defer span.End()
	span.SetAttr("candidates", len(candidates))
	span.SetAttr("mode", mode)

	start := time.Now()
	var scored []ranking.ScoredCandidate
	if mode == request.ModeIndependent {
		scored = s.reranker.RerankWithoutBatch(candidates, query, weights, topK)
	} else {
		scored = s.reranker.Rerank(candidates, query, weights, topK)
	}
	if s.metrics != nil {
		s.metrics.RerankLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		s.metrics.RerankBatchSize.Observe(float64(len(candidates)))
	}
	return scored
}

func (s *Service) checkBatchSize(n int) error {
	if s.limits.MaxCandidates > 0 && n > s.limits.MaxCandidates {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"%d candidates exceeds the limit of %d", n, s.limits.MaxCandidates)
	}
	return nil
}

func (s *Service) retrievalError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("catalog retrieval timed out", "timeout", s.limits.RetrievalTimeout)
		return apperrors.Newf(apperrors.ErrTimeout, http.StatusGatewayTimeout,
			"catalog retrieval exceeded %v", s.limits.RetrievalTimeout)
	}
	if errors.Is(err, apperrors.ErrCatalogUnavailable) {
		return err
	}
	return fmt.Errorf("retrieving candidates: %w", errors.Join(apperrors.ErrCatalogUnavailable, err))
}

// dedupeIDs drops repeated identifiers, keeping the first occurrence.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeProducts(products []catalog.Product) []catalog.Product {
	seen := make(map[string]struct{}, len(products))
	out := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
