// Package analytics records what the reranker is asked to do. The API
// publishes a RerankEvent per request through a BatchCollector; the
// analytics service consumes them into an Aggregator and snapshots the
// aggregate to the database.
package analytics

import "time"

// Endpoint identifies which API operation produced an event.
type Endpoint string

const (
	EndpointRerank Endpoint = "rerank"
	EndpointSearch Endpoint = "search"
)

// RerankEvent describes one rerank or search request.
type RerankEvent struct {
	Endpoint   Endpoint           `json:"endpoint"`
	Query      string             `json:"query"`
	TermCount  int                `json:"term_count"`
	Candidates int                `json:"candidates"`
	Returned   int                `json:"returned"`
	NotFound   int                `json:"not_found"`
	TopK       int                `json:"top_k"`
	Mode       string             `json:"mode,omitempty"`
	Weights    map[string]float64 `json:"weights,omitempty"`
	CacheHit   bool               `json:"cache_hit"`
	LatencyMs  float64            `json:"latency_ms"`
	Status     int                `json:"status"`
	Timestamp  time.Time          `json:"timestamp"`
	RequestID  string             `json:"request_id"`
}

// Failed reports whether the request ended in an error response.
func (e RerankEvent) Failed() bool {
	return e.Status >= 400
}
