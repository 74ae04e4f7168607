package corpus

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/internal/ranking/tokenizer"
)

func TestBuild(t *testing.T) {
	docs := [][]string{
		tokenizer.Tokenize("wireless headphones premium"),
		tokenizer.Tokenize("wireless speakers"),
		tokenizer.Tokenize("wired headphones headphones"),
		tokenizer.Tokenize("bluetooth speaker"),
	}
	stats := Build(docs)

	if stats.TotalDocs != 4 {
		t.Errorf("TotalDocs = %d, want 4", stats.TotalDocs)
	}
	if want := 10.0 / 4.0; stats.AvgDocLength != want {
		t.Errorf("AvgDocLength = %v, want %v", stats.AvgDocLength, want)
	}

	tests := []struct {
		term string
		want int
	}{
		{"headphones", 2},
		{"wireless", 2},
		{"missing", 0},
		{"speakers", 1},
		{"speaker", 1},
	}
	for _, tt := range tests {
		if got := stats.DocumentFrequency(tt.term); got != tt.want {
			t.Errorf("DocumentFrequency(%q) = %d, want %d", tt.term, got, tt.want)
		}
	}
}

func TestBuildEmptyBatch(t *testing.T) {
	stats := Build(nil)
	if stats.TotalDocs != 0 || stats.AvgDocLength != 0 {
		t.Errorf("empty batch stats = %+v, want zero values", stats)
	}
	if stats.DocumentFrequency("headphones") != 0 {
		t.Error("expected zero document frequency for empty batch")
	}
}

func TestBuildEmptyDocuments(t *testing.T) {
	stats := Build([][]string{{}, {}})
	if stats.TotalDocs != 2 {
		t.Errorf("TotalDocs = %d, want 2", stats.TotalDocs)
	}
	if stats.AvgDocLength != 0 {
		t.Errorf("AvgDocLength = %v, want 0", stats.AvgDocLength)
	}
}
