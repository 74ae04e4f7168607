package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/request"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/api/service"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/tracing"
)

// RerankService is the business logic behind the HTTP API.
type RerankService interface {
	Rerank(ctx context.Context, req request.Rerank) (*service.RerankResult, error)
	Search(ctx context.Context, req request.Search) (*service.SearchResult, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	CreateProduct(ctx context.Context, p catalog.Product) error
}

// Tracker receives one event per rerank or search request.
// *analytics.BatchCollector implements it.
type Tracker interface {
	Track(event analytics.RerankEvent)
}

type Handler struct {
	service   RerankService
	validator *request.Validator
	cache     *cache.QueryCache
	tracker   Tracker
	tracer    *tracing.Tracer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. queryCache, tracker and tracer may be nil.
func New(svc RerankService, queryCache *cache.QueryCache, tracker Tracker, tracer *tracing.Tracer, m *metrics.Metrics) *Handler {
	return &Handler{
		service:   svc,
		validator: request.NewValidator(),
		cache:     queryCache,
		tracker:   tracker,
		tracer:    tracer,
		metrics:   m,
		logger:    slog.Default().With("component", "rerank-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/rerank", h.Rerank)
	mux.HandleFunc("POST /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/products", h.CreateProduct)
	mux.HandleFunc("GET /api/v1/products/{id}", h.GetProduct)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Rerank(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "rerank", middleware.GetRequestID(r.Context()))
	defer h.tracer.Finish(span)
	log := logger.FromContext(ctx)

	var req request.Rerank
	if err := h.validator.Decode(r, &req); err != nil {
		h.fail(w, string(analytics.EndpointRerank), err)
		return
	}
	span.SetAttr("query", req.Query)

	event := analytics.RerankEvent{
		Endpoint:   analytics.EndpointRerank,
		Query:      req.Query,
		TermCount:  len(tokenizer.Tokenize(req.Query)),
		Candidates: len(req.CandidateIDs) + len(req.Candidates),
		Mode:       req.Mode,
		Weights:    req.Weights,
		RequestID:  middleware.GetRequestID(ctx),
	}
	if req.TopK != nil {
		event.TopK = *req.TopK
	}

	result, err := h.service.Rerank(ctx, req)
	if err != nil {
		var nf *apperrors.NotFoundError
		if errors.As(err, &nf) {
			event.NotFound = len(nf.IDs)
		}
		h.track(event, start, apperrors.HTTPStatusCode(err))
		h.fail(w, string(analytics.EndpointRerank), err)
		return
	}

	event.Returned = result.Count
	h.track(event, start, http.StatusOK)
	h.observe(string(analytics.EndpointRerank), metrics.OutcomeOK)
	log.Info("rerank completed",
		"query", req.Query,
		"candidates", event.Candidates,
		"returned", result.Count,
		"latency_ms", event.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "search", middleware.GetRequestID(r.Context()))
	defer h.tracer.Finish(span)
	log := logger.FromContext(ctx)

	var req request.Search
	if err := h.validator.Decode(r, &req); err != nil {
		h.fail(w, string(analytics.EndpointSearch), err)
		return
	}
	span.SetAttr("query", req.Query)

	event := analytics.RerankEvent{
		Endpoint:  analytics.EndpointSearch,
		Query:     req.Query,
		TermCount: len(tokenizer.Tokenize(req.Query)),
		Weights:   req.Weights,
		RequestID: middleware.GetRequestID(ctx),
	}
	if req.TopK != nil {
		event.TopK = *req.TopK
	}

	result, err := h.service.Search(ctx, req)
	if err != nil {
		h.track(event, start, apperrors.HTTPStatusCode(err))
		h.fail(w, string(analytics.EndpointSearch), err)
		return
	}

	event.Returned = result.Count
	event.CacheHit = result.CacheHit
	h.track(event, start, http.StatusOK)
	h.observe(string(analytics.EndpointSearch), metrics.OutcomeOK)
	log.Info("search completed",
		"query", req.Query,
		"returned", result.Count,
		"cache_hit", result.CacheHit,
		"latency_ms", event.LatencyMs,
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var p catalog.Product
	if err := h.validator.Decode(r, &p); err != nil {
		h.writeAppError(w, err)
		return
	}
	if err := h.service.CreateProduct(r.Context(), p); err != nil {
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			log.Error("product create failed", "product_id", p.ID, "error", err)
		}
		h.writeAppError(w, err)
		return
	}
	log.Info("product created", "product_id", p.ID)
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats := h.cache.Stats(r.Context())
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"backend":       stats.Backend,
		"hits":          stats.Hits,
		"misses":        stats.Misses,
		"total":         total,
		"hit_rate":      hitRate,
		"entries":       stats.Entries,
		"circuit_state": stats.CircuitState,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "invalidated",
		"keys_deleted": deleted,
	})
}

func (h *Handler) track(event analytics.RerankEvent, start time.Time, status int) {
	if h.tracker == nil {
		return
	}
	event.Status = status
	event.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	event.Timestamp = time.Now().UTC()
	h.tracker.Track(event)
}

func (h *Handler) observe(endpoint, outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RerankRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// fail counts the outcome of a failed rerank or search and writes the error.
func (h *Handler) fail(w http.ResponseWriter, endpoint string, err error) {
	status := apperrors.HTTPStatusCode(err)
	switch {
	case status == http.StatusNotFound:
		h.observe(endpoint, metrics.OutcomeNotFound)
	case status == http.StatusBadRequest:
		h.observe(endpoint, metrics.OutcomeInvalid)
	default:
		h.observe(endpoint, metrics.OutcomeError)
		h.logger.Error(endpoint+" failed", "error", err, "status_code", status)
	}
	h.writeAppError(w, err)
}

// writeAppError maps err onto a status code and a client-safe body. Unknown
// candidate ids are listed so the caller can fix the request in one go.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)

	var nf *apperrors.NotFoundError
	if errors.As(err, &nf) {
		h.writeJSON(w, status, map[string]any{
			"error":       apperrors.ErrCandidateNotFound.Error(),
			"missing_ids": nf.IDs,
		})
		return
	}

	message := http.StatusText(status)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case status == http.StatusConflict:
		message = err.Error()
	case status == http.StatusServiceUnavailable:
		message = apperrors.ErrCatalogUnavailable.Error()
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
