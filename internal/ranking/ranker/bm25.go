// Package ranker implements Okapi BM25 relevance scoring over a batch of
// tokenised documents.
package ranker

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/corpus"
)

const (
	// K1 controls term-frequency saturation.
	K1 = 1.5
	// B controls document-length normalisation (0 = none, 1 = full).
	B = 0.75
)

// Score returns the BM25 score of one document for queryTerms. Each query
// term is scored once per occurrence in the query. Terms that are absent
// from the document contribute nothing.
func Score(queryTerms []string, termFreq map[string]int, docLength int, stats *corpus.Stats) float64 {
	if len(queryTerms) == 0 || docLength == 0 {
		return 0
	}
	var score float64
	for _, term := range queryTerms {
		tf, ok := termFreq[term]
		if !ok || tf == 0 {
			continue
		}
		idf := IDF(stats.TotalDocs, stats.DocumentFrequency(term))
		score += idf * TFNorm(float64(tf), float64(docLength), stats.AvgDocLength)
	}
	return score
}

// IDF computes ln((N - n + 0.5)/(n + 0.5) + 1). The +1 keeps the value
// positive for terms present in every document.
func IDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// TFNorm computes the saturated, length-normalised term frequency. A zero
// average length collapses the length factor to (1 - B).
func TFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	lengthNorm := 1 - B
	if avgDocLength > 0 {
		lengthNorm += B * docLength / avgDocLength
	}
	denominator := termFreq + K1*lengthNorm
	if denominator == 0 {
		return 0
	}
	return (termFreq * (K1 + 1)) / denominator
}
