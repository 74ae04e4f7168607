// Package corpus computes batch-scoped collection statistics for BM25. The
// statistics describe only the candidates of the current request and are
// rebuilt from scratch every time.
package corpus

// Stats holds the document frequency of every term, the average document
// length and the number of documents in one batch.
type Stats struct {
	DocFreq      map[string]int
	AvgDocLength float64
	TotalDocs    int
}

// Build computes Stats over docs, which are already tokenised. Document
// frequency is binary per document: repeated terms count once. An empty
// batch has an average length of 0.
func Build(docs [][]string) *Stats {
	stats := &Stats{
		DocFreq:   make(map[string]int),
		TotalDocs: len(docs),
	}
	if len(docs) == 0 {
		return stats
	}

	totalLen := 0
	for _, doc := range docs {
		totalLen += len(doc)
		seen := make(map[string]struct{}, len(doc))
		for _, term := range doc {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			stats.DocFreq[term]++
		}
	}
	stats.AvgDocLength = float64(totalLen) / float64(len(docs))
	return stats
}

// DocumentFrequency returns the number of documents containing term.
func (s *Stats) DocumentFrequency(term string) int {
	return s.DocFreq[term]
}
