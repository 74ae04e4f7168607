// Package feature derives the per-candidate feature vector used by the
// reranker: a text relevance signal plus bounded numeric signals.
package feature

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/corpus"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/normalize"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/tokenizer"
)

// Feature names.
const (
	TextMatch  = "text_match"
	Price      = "price"
	Rating     = "rating"
	Popularity = "popularity"
)

// maxReviews caps the review count used by the popularity log scale.
const maxReviews = 10000.0

// Names lists every feature in a fixed order.
var Names = []string{TextMatch, Price, Rating, Popularity}

// IsKnown reports whether name is a feature the extractor produces.
func IsKnown(name string) bool {
	for _, n := range Names {
		if n == name {
			return true
		}
	}
	return false
}

// Vector maps feature names to values for one candidate.
type Vector map[string]float64

// Batch carries the batch-relative context for extraction: corpus
// statistics for BM25 and the price range. Build it once per request.
type Batch struct {
	stats    *corpus.Stats
	minPrice float64
	maxPrice float64
}

// NewBatch tokenises every candidate and computes the batch statistics.
func NewBatch(candidates []catalog.Product) *Batch {
	docs := make([][]string, len(candidates))
	prices := make([]float64, len(candidates))
	for i, c := range candidates {
		docs[i] = tokenizer.Tokenize(tokenizer.Document(c.Title, c.Description))
		prices[i] = c.Price
	}
	lo, hi := normalize.Range(prices)
	return &Batch{
		stats:    corpus.Build(docs),
		minPrice: lo,
		maxPrice: hi,
	}
}

// Stats exposes the corpus statistics of the batch.
func (b *Batch) Stats() *corpus.Stats {
	return b.stats
}

// Extractor computes feature vectors. It holds no state and is safe for
// concurrent use.
type Extractor struct{}

// NewExtractor returns an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract computes the feature vector of c for query. With a batch,
// text_match is the raw BM25 score and price is scaled over the batch range.
// Without one, text_match is the query term overlap ratio and price is
// neutral. The two text_match modes are on different scales and must not be
// mixed within one request.
func (e *Extractor) Extract(c catalog.Product, query string, batch *Batch) Vector {
	queryTerms := tokenizer.Tokenize(query)
	docTerms := tokenizer.Tokenize(tokenizer.Document(c.Title, c.Description))

	v := Vector{
		Rating:     RatingScore(c.Rating),
		Popularity: PopularityScore(c.NumReviews),
	}
	if batch == nil {
		v[TextMatch] = OverlapRatio(queryTerms, docTerms)
		v[Price] = normalize.Neutral
		return v
	}
	v[TextMatch] = ranker.Score(queryTerms, tokenizer.TermFrequencies(docTerms), len(docTerms), batch.stats)
	v[Price] = PriceScore(c.Price, batch.minPrice, batch.maxPrice)
	return v
}

// OverlapRatio returns |query ∩ doc| / |query| over distinct terms, or 0
// for an empty query.
func OverlapRatio(queryTerms, docTerms []string) float64 {
	unique := tokenizer.Unique(queryTerms)
	if len(unique) == 0 {
		return 0
	}
	present := make(map[string]struct{}, len(docTerms))
	for _, term := range docTerms {
		present[term] = struct{}{}
	}
	overlap := 0
	for _, term := range unique {
		if _, ok := present[term]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(unique))
}

// PriceScore maps price into [0, 1] so the cheapest product in the range
// scores 1. A degenerate range yields the neutral value.
func PriceScore(price, minPrice, maxPrice float64) float64 {
	if maxPrice == minPrice {
		return normalize.Neutral
	}
	return normalize.Clamp01(1 - (price-minPrice)/(maxPrice-minPrice))
}

// RatingScore scales a rating on the 0-5 scale into [0, 1].
func RatingScore(rating float64) float64 {
	return normalize.Clamp01(rating / catalog.MaxRating)
}

// PopularityScore maps a review count onto a log scale capped at
// maxReviews.
func PopularityScore(numReviews int) float64 {
	if numReviews <= 0 {
		return 0
	}
	return normalize.Clamp01(math.Log(float64(numReviews)+1) / math.Log(maxReviews+1))
}
