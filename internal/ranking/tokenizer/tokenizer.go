// Package tokenizer provides text tokenisation for the reranker. It
// lower-cases input and splits on whitespace. Punctuation is kept attached
// to the surrounding word and no stemming or stop-word removal is applied.
package tokenizer

import "strings"

// fieldSeparator joins the title and description of a product so a query
// matching words from both fields still counts as one document.
const fieldSeparator = " "

// Tokenize breaks text into a slice of lowercased terms. Empty or
// whitespace-only input yields an empty, non-nil slice.
func Tokenize(text string) []string {
	words := strings.Fields(strings.ToLower(text))
	if words == nil {
		return []string{}
	}
	return words
}

// Document builds the searchable text of a product from its title and
// description.
func Document(title, description string) string {
	return title + fieldSeparator + description
}

// TermFrequencies counts how often each term occurs in terms.
func TermFrequencies(terms []string) map[string]int {
	freq := make(map[string]int, len(terms))
	for _, term := range terms {
		freq[term]++
	}
	return freq
}

// Unique returns the distinct terms of terms in first-seen order.
func Unique(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}
