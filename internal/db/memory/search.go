package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kailas-cloud/feedex/internal/db"
)

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	cp := *def
	s.indexes[def.Name] = &cp
	return nil
}

// IndexExists reports whether the index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

type scoredDoc struct {
	key   string
	score float64
}

// SearchText scores hashes under the index prefixes with field-weighted BM25-style
// term frequency times inverse document frequency. Any matching term qualifies a document.
func (s *Store) SearchText(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	terms := normalizeTerms(q.Terms)
	if len(terms) == 0 {
		return nil, fmt.Errorf("query is required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, &db.Error{Op: db.OpSearch, Err: db.ErrIndexNotFound}
	}
	weights := def.TextFields()

	// term frequencies per document, weighted by field
	tf := make(map[string]map[string]float64)
	df := make(map[string]int)
	docs := 0
	for key, h := range s.hashes {
		if !hasAnyPrefix(key, def.Prefixes) {
			continue
		}
		docs++
		perTerm := make(map[string]float64)
		for field, w := range weights {
			for _, tok := range db.Tokenize(h[field]) {
				if _, want := terms[tok]; want {
					perTerm[tok] += w
				}
			}
		}
		if len(perTerm) == 0 {
			continue
		}
		tf[key] = perTerm
		for t := range perTerm {
			df[t]++
		}
	}

	hits := make([]scoredDoc, 0, len(tf))
	for key, perTerm := range tf {
		var score float64
		for t, f := range perTerm {
			idf := math.Log(1 + (float64(docs)-float64(df[t])+0.5)/(float64(df[t])+0.5))
			score += idf * f
		}
		hits = append(hits, scoredDoc{key: key, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].key < hits[j].key
	})

	total := len(hits)
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}

	entries := make([]db.SearchEntry, len(hits))
	for i, h := range hits {
		entries[i] = db.SearchEntry{
			Key:    h.key,
			Score:  h.score,
			Fields: projectFields(s.hashes[h.key], q.ReturnFields),
		}
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func normalizeTerms(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		for _, tok := range db.Tokenize(t) {
			out[tok] = struct{}{}
		}
	}
	return out
}

func hasAnyPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func projectFields(h map[string]string, fields []string) map[string]string {
	if len(fields) == 0 {
		return copyHash(h)
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := h[f]; ok {
			out[f] = v
		}
	}
	return out
}
