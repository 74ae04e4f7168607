// Package ranking scores and orders product candidates against a free-text
// query. It blends a BM25 text relevance signal with bounded numeric
// features using per-request weights.
//
// Reranking is two-pass. The first pass extracts a raw feature vector for
// every candidate with the whole batch as corpus context. The text_match
// feature is then min-max normalised across the batch and the second pass
// computes the weighted sum. All state lives inside one call, so a Reranker
// is safe for concurrent use.
package ranking

import (
	"math"
	"slices"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/feature"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/normalize"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/tokenizer"
)

// Weights maps a feature name to its non-negative weight. Missing features
// weigh 0. Weights need not sum to 1.
type Weights map[string]float64

// Sum returns the total of all weights, added in key order so the result
// is the same on every call.
func (w Weights) Sum() float64 {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var total float64
	for _, k := range keys {
		total += w[k]
	}
	return total
}

// Clone returns a copy of w.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// ScoredCandidate is a candidate with its final score and the normalised
// feature values and weighted contributions that produced it.
type ScoredCandidate struct {
	catalog.Product
	Score         float64            `json:"score"`
	Features      map[string]float64 `json:"features,omitempty"`
	Contributions map[string]float64 `json:"contributions,omitempty"`
}

// Reranker orders candidates by a weighted blend of features.
type Reranker struct {
	extractor *feature.Extractor
	defaults  Weights
}

// New creates a Reranker that falls back to defaults when a request carries
// no weights.
func New(defaults Weights) *Reranker {
	return &Reranker{
		extractor: feature.NewExtractor(),
		defaults:  defaults.Clone(),
	}
}

// DefaultWeights returns a copy of the configured default weights.
func (r *Reranker) DefaultWeights() Weights {
	return r.defaults.Clone()
}

// ResolveWeights returns w, or the defaults when w is empty.
func (r *Reranker) ResolveWeights(w Weights) Weights {
	if len(w) == 0 {
		return r.DefaultWeights()
	}
	return w
}

// Rerank scores candidates for query and returns at most topK of them,
// best first. Candidates with equal scores keep their input order. A topK
// of 0 or less returns an empty slice.
func (r *Reranker) Rerank(candidates []catalog.Product, query string, weights Weights, topK int) []ScoredCandidate {
	if topK <= 0 || len(candidates) == 0 {
		return []ScoredCandidate{}
	}
	active := r.ResolveWeights(weights)
	ceiling := active.Sum()

	batch := feature.NewBatch(candidates)
	vectors := make([]feature.Vector, len(candidates))
	for i, c := range candidates {
		vectors[i] = r.extractor.Extract(c, query, batch)
	}

	// An empty query matches nothing, so text_match stays 0 rather than
	// collapsing to the neutral midpoint.
	if len(tokenizer.Tokenize(query)) > 0 {
		normalizeFeature(vectors, feature.TextMatch)
	}

	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = score(c, vectors[i], active, ceiling)
	}
	return rank(scored, topK)
}

// RerankWithoutBatch scores every candidate independently using the
// term-overlap fallback for text_match. It is the single-candidate mode and
// is never mixed with batch scoring inside one request.
func (r *Reranker) RerankWithoutBatch(candidates []catalog.Product, query string, weights Weights, topK int) []ScoredCandidate {
	if topK <= 0 || len(candidates) == 0 {
		return []ScoredCandidate{}
	}
	active := r.ResolveWeights(weights)
	ceiling := active.Sum()
	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = score(c, r.extractor.Extract(c, query, nil), active, ceiling)
	}
	return rank(scored, topK)
}

// normalizeFeature min-max normalises one feature across all vectors in
// place.
func normalizeFeature(vectors []feature.Vector, name string) {
	raw := make([]float64, len(vectors))
	for i, v := range vectors {
		raw[i] = v[name]
	}
	for i, n := range normalize.MinMax(raw) {
		vectors[i][name] = n
	}
}

func score(c catalog.Product, v feature.Vector, weights Weights, ceiling float64) ScoredCandidate {
	contributions := make(map[string]float64, len(v))
	var total float64
	for _, name := range feature.Names {
		contribution := weights[name] * v[name]
		contributions[name] = contribution
		total += contribution
	}
	// Rounding may overshoot the weight total by half a unit in the last
	// place, so the score is capped at it.
	return ScoredCandidate{
		Product:       c,
		Score:         math.Min(math.Round(total*10000)/10000, ceiling),
		Features:      map[string]float64(v),
		Contributions: contributions,
	}
}

func rank(scored []ScoredCandidate, topK int) []ScoredCandidate {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
