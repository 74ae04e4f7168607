package feature

import (
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/corpus"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/ranker"
	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/tokenizer"
)

func product(id, title, desc string, price, rating float64, reviews int) catalog.Product {
	return catalog.Product{
		ID:          id,
		Title:       title,
		Description: desc,
		Price:       price,
		Rating:      rating,
		NumReviews:  reviews,
	}
}

func TestExtractFallbackUsesOverlapRatio(t *testing.T) {
	e := NewExtractor()
	c := product("1", "Wireless Headphones", "great sound", 99, 4, 10)

	tests := []struct {
		query string
		want  float64
	}{
		{"wireless headphones", 1},
		{"wireless speakers", 0.5},
		{"Wireless wireless", 1},
		{"bluetooth", 0},
		{"", 0},
		{"   ", 0},
	}
	for _, tt := range tests {
		v := e.Extract(c, tt.query, nil)
		if v[TextMatch] != tt.want {
			t.Errorf("fallback text_match(%q) = %v, want %v", tt.query, v[TextMatch], tt.want)
		}
		if v[Price] != 0.5 {
			t.Errorf("fallback price = %v, want neutral 0.5", v[Price])
		}
	}
}

func TestExtractFallbackIsNotBM25(t *testing.T) {
	c := product("1", "wireless headphones", "premium", 10, 4, 0)
	query := "headphones"
	v := NewExtractor().Extract(c, query, nil)

	doc := tokenizer.Tokenize(tokenizer.Document(c.Title, c.Description))
	bm25 := ranker.Score(tokenizer.Tokenize(query), tokenizer.TermFrequencies(doc), len(doc), corpus.Build([][]string{doc}))
	if v[TextMatch] == bm25 {
		t.Fatalf("fallback text_match equals BM25 score %v", bm25)
	}
	if v[TextMatch] != 1 {
		t.Errorf("fallback text_match = %v, want 1", v[TextMatch])
	}
}

func TestExtractWithBatchUsesBM25(t *testing.T) {
	batch := []catalog.Product{
		product("1", "wireless headphones", "premium", 100, 4.5, 100),
		product("2", "wireless speakers", "", 50, 4.0, 10),
		product("3", "wired headphones", "", 25, 3.0, 0),
	}
	b := NewBatch(batch)
	e := NewExtractor()

	var scores []float64
	for _, c := range batch {
		scores = append(scores, e.Extract(c, "headphones", b)[TextMatch])
	}
	if scores[1] != 0 {
		t.Errorf("non-matching doc text_match = %v, want 0", scores[1])
	}
	if scores[0] <= 0 || scores[2] <= 0 {
		t.Errorf("matching docs should score > 0: %v", scores)
	}
	if scores[2] < scores[0] {
		t.Errorf("shorter matching doc %v should score >= longer %v", scores[2], scores[0])
	}
}

func TestExtractPriceIsBatchRelative(t *testing.T) {
	batch := []catalog.Product{
		product("1", "a", "", 10, 0, 0),
		product("2", "b", "", 20, 0, 0),
		product("3", "c", "", 30, 0, 0),
	}
	b := NewBatch(batch)
	e := NewExtractor()
	want := []float64{1, 0.5, 0}
	for i, c := range batch {
		if got := e.Extract(c, "", b)[Price]; got != want[i] {
			t.Errorf("price score of %s = %v, want %v", c.ID, got, want[i])
		}
	}
}

func TestExtractEqualPricesAreNeutral(t *testing.T) {
	batch := []catalog.Product{
		product("1", "a", "", 42, 0, 0),
		product("2", "b", "", 42, 0, 0),
	}
	b := NewBatch(batch)
	for _, c := range batch {
		if got := NewExtractor().Extract(c, "a", b)[Price]; got != 0.5 {
			t.Errorf("price = %v, want 0.5", got)
		}
	}
}

func TestRatingScore(t *testing.T) {
	for in, want := range map[float64]float64{0: 0, 2.5: 0.5, 5: 1, 7: 1, -1: 0} {
		if got := RatingScore(in); got != want {
			t.Errorf("RatingScore(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestPopularityScore(t *testing.T) {
	if got := PopularityScore(0); got != 0 {
		t.Errorf("PopularityScore(0) = %v, want 0", got)
	}
	if got := PopularityScore(-5); got != 0 {
		t.Errorf("PopularityScore(-5) = %v, want 0", got)
	}
	if got := PopularityScore(10000); math.Abs(got-1) > 1e-12 {
		t.Errorf("PopularityScore(10000) = %v, want 1", got)
	}
	if got := PopularityScore(1_000_000); got != 1 {
		t.Errorf("PopularityScore above cap = %v, want 1", got)
	}
	if PopularityScore(10) >= PopularityScore(100) {
		t.Error("popularity should increase with review count")
	}
}

func TestExtractValuesBounded(t *testing.T) {
	batch := []catalog.Product{
		product("1", "x y z", "", 0, 5, 50000),
		product("2", "x", "", 999, 0, 0),
	}
	b := NewBatch(batch)
	for _, c := range batch {
		v := NewExtractor().Extract(c, "x", b)
		for _, name := range []string{Price, Rating, Popularity} {
			if v[name] < 0 || v[name] > 1 {
				t.Errorf("%s = %v out of [0,1]", name, v[name])
			}
		}
		if v[TextMatch] < 0 {
			t.Errorf("text_match = %v, want non-negative", v[TextMatch])
		}
	}
}

func TestIsKnown(t *testing.T) {
	for _, name := range Names {
		if !IsKnown(name) {
			t.Errorf("IsKnown(%q) = false", name)
		}
	}
	if IsKnown("freshness") {
		t.Error("IsKnown(freshness) = true")
	}
}
