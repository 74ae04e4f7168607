// Package tracing provides a lightweight span tree that is carried through
// request contexts and logged via slog when the root span ends. A request
// handled by the reranker yields a root span with children for catalog
// retrieval, cache lookups and scoring.
package tracing

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
)

type contextKey struct{}

// Span represents a timed operation within a trace. All methods are safe
// on a nil *Span, which is what unsampled requests carry.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span
	Attrs     map[string]any
	mu        sync.Mutex
}

// Tracer decides which requests are traced.
type Tracer struct {
	enabled    bool
	sampleRate float64
	logger     *slog.Logger
}

// NewTracer builds a Tracer from config. A disabled tracer starts no spans.
func NewTracer(cfg config.TracingConfig) *Tracer {
	return &Tracer{
		enabled:    cfg.Enabled,
		sampleRate: cfg.SampleRate,
		logger:     slog.Default().With("component", "tracing"),
	}
}

// Start opens a root span for traceID when the request is sampled. The
// returned span may be nil.
func (t *Tracer) Start(ctx context.Context, name, traceID string) (context.Context, *Span) {
	if t == nil || !t.enabled || (t.sampleRate < 1 && rand.Float64() >= t.sampleRate) {
		return ctx, nil
	}
	span := newSpan(name, traceID)
	return context.WithValue(ctx, contextKey{}, span), span
}

// Finish ends the root span and logs the tree.
func (t *Tracer) Finish(span *Span) {
	if t == nil || span == nil {
		return
	}
	span.End()
	span.log(t.logger, 0)
}

// StartChild creates a child of the span in ctx. Without a parent it
// returns ctx unchanged and a nil span.
func StartChild(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := newSpan(name, parent.TraceID)
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

// FromContext returns the current span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

func newSpan(name, traceID string) *Span {
	return &Span{
		Name:      name,
		TraceID:   traceID,
		StartTime: time.Now(),
		Attrs:     make(map[string]any),
	}
}

// End records the span's duration.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Duration = time.Since(s.StartTime)
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

func (s *Span) log(logger *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()

	logger.Info("span", attrs...)
	for _, child := range children {
		child.log(logger, depth+1)
	}
}
