package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"lowercase", "Hello World", []string{"hello", "world"}},
		{"mixed whitespace", "hello  world\ttab\nline", []string{"hello", "world", "tab", "line"}},
		{"punctuation kept", "over-ear, wireless!", []string{"over-ear,", "wireless!"}},
		{"empty", "", []string{}},
		{"whitespace only", "  \t\n ", []string{}},
		{"no stemming", "Running Headphones", []string{"running", "headphones"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if got == nil {
				t.Fatal("Tokenize returned nil slice")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestDocumentJoinsFields(t *testing.T) {
	doc := Document("Wireless", "Headphones")
	got := Tokenize(doc)
	want := []string{"wireless", "headphones"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize(Document) = %v, want %v", got, want)
	}
}

func TestTermFrequencies(t *testing.T) {
	got := TermFrequencies([]string{"hello", "world", "hello"})
	want := map[string]int{"hello": 2, "world": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TermFrequencies = %v, want %v", got, want)
	}
	if len(TermFrequencies(nil)) != 0 {
		t.Error("expected empty map for nil input")
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]string{"b", "a", "b", "c", "a"})
	want := []string{"b", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unique = %v, want %v", got, want)
	}
}

func BenchmarkTokenize(b *testing.B) {
	text := strings.Repeat("Premium wireless over-ear headphones with noise cancelling ", 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}
