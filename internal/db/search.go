package db

import (
	"strings"
	"unicode"
)

// TextQuery is the input for full-text search.
type TextQuery struct {
	IndexName    string
	Terms        []string // OR-ed together; ranking is the backend's relevance score
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Tokenize lowercases s and splits it into letter/digit runs.
// Both backends use it so a query and an indexed document agree on terms.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
