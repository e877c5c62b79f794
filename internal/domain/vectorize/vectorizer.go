// Package vectorize encodes item metadata into a fixed-dimension feature vector
// and decodes taste vectors back into a readable breakdown.
//
// Layout: [bpm | genres | emotions | instruments | kinds | hashed tags].
package vectorize

import (
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/feedex/internal/domain/item"
)

// Config describes the vocabularies and numeric ranges.
type Config struct {
	BPMMin      float64
	BPMMax      float64
	Genres      []string
	Emotions    []string
	Instruments []string
	Kinds       []string
	HashBuckets int
}

// Dimension returns the vector length implied by cfg.
func (c Config) Dimension() int {
	return 1 + len(c.Genres) + len(c.Emotions) + len(c.Instruments) + len(c.Kinds) + c.HashBuckets
}

// Validate checks the ranges and vocabularies.
func (c Config) Validate() error {
	if c.BPMMax <= c.BPMMin {
		return fmt.Errorf("bpm max (%v) must exceed min (%v)", c.BPMMax, c.BPMMin)
	}
	if c.HashBuckets < 0 {
		return fmt.Errorf("hash buckets must be >= 0")
	}
	for name, vocab := range map[string][]string{
		"genres": c.Genres, "emotions": c.Emotions, "instruments": c.Instruments, "kinds": c.Kinds,
	} {
		seen := make(map[string]bool, len(vocab))
		for _, term := range vocab {
			t := normalizeTerm(term)
			if t == "" {
				return fmt.Errorf("%s: empty term", name)
			}
			if seen[t] {
				return fmt.Errorf("%s: duplicate term %q", name, term)
			}
			seen[t] = true
		}
	}
	return nil
}

// vocabulary maps a term to its absolute slot.
type vocabulary struct {
	name   string
	terms  []string
	offset int
	slots  map[string]int
}

func newVocabulary(name string, terms []string, offset int) vocabulary {
	v := vocabulary{name: name, terms: terms, offset: offset, slots: make(map[string]int, len(terms))}
	for i, t := range terms {
		v.slots[normalizeTerm(t)] = offset + i
	}
	return v
}

// Vectorizer is immutable and safe for concurrent use.
type Vectorizer struct {
	cfg        Config
	vocabs     []vocabulary
	hashOffset int
	dim        int
}

// New builds the slot layout for cfg.
func New(cfg Config) (*Vectorizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("vectorizer config: %w", err)
	}
	offset := 1
	vocabs := make([]vocabulary, 0, 4)
	for _, spec := range []struct {
		name  string
		terms []string
	}{
		{"genres", cfg.Genres},
		{"emotions", cfg.Emotions},
		{"instruments", cfg.Instruments},
		{"kinds", cfg.Kinds},
	} {
		vocabs = append(vocabs, newVocabulary(spec.name, spec.terms, offset))
		offset += len(spec.terms)
	}
	return &Vectorizer{cfg: cfg, vocabs: vocabs, hashOffset: offset, dim: cfg.Dimension()}, nil
}

// Dimension returns D.
func (v *Vectorizer) Dimension() int { return v.dim }

// Vectorize encodes md. The result always has exactly Dimension() elements.
func (v *Vectorizer) Vectorize(md item.Metadata) []float64 {
	out := make([]float64, v.dim)

	if md.BPM != nil {
		out[0] = v.normalizeBPM(*md.BPM)
	}

	for i, terms := range [][]string{md.Genres, md.Emotions, md.Instruments, md.Kinds} {
		for _, term := range terms {
			if slot, ok := v.vocabs[i].slots[normalizeTerm(term)]; ok {
				out[slot] = 1
			}
		}
	}

	if v.cfg.HashBuckets > 0 {
		for _, tag := range md.Tags {
			t := normalizeTerm(tag)
			if t == "" {
				continue
			}
			out[v.hashOffset+v.bucket(t)] = 1
		}
	}
	return out
}

// Terms returns the vocabulary terms and tags of md that the search index stores.
func (v *Vectorizer) Terms(md item.Metadata) []string {
	var out []string
	for i, terms := range [][]string{md.Genres, md.Emotions, md.Instruments, md.Kinds} {
		for _, term := range terms {
			if _, ok := v.vocabs[i].slots[normalizeTerm(term)]; ok {
				out = append(out, normalizeTerm(term))
			}
		}
	}
	for _, tag := range md.Tags {
		if t := normalizeTerm(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (v *Vectorizer) normalizeBPM(bpm float64) float64 {
	switch {
	case bpm <= v.cfg.BPMMin:
		return 0
	case bpm >= v.cfg.BPMMax:
		return 1
	default:
		return (bpm - v.cfg.BPMMin) / (v.cfg.BPMMax - v.cfg.BPMMin)
	}
}

func (v *Vectorizer) bucket(tag string) int {
	return int(xxhash.Sum64String(tag) % uint64(v.cfg.HashBuckets))
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Summary is the readable breakdown of a taste vector.
type Summary struct {
	UserID        int64                         `json:"user_id"`
	BPMPreference *float64                      `json:"bpm_preference"`
	Features      map[string]map[string]float64 `json:"features"`
	TagBuckets    map[int]float64               `json:"tags_hash_buckets,omitempty"`
}

// Decode inverts the layout for inspection. Vectors of the wrong length yield
// only the slots that exist.
func (v *Vectorizer) Decode(userID int64, vec []float64) Summary {
	s := Summary{UserID: userID, Features: make(map[string]map[string]float64, len(v.vocabs))}

	if len(vec) > 0 {
		bpm := round(vec[0]*(v.cfg.BPMMax-v.cfg.BPMMin)+v.cfg.BPMMin, 2)
		s.BPMPreference = &bpm
	}

	for _, voc := range v.vocabs {
		scores := make(map[string]float64, len(voc.terms))
		for i, term := range voc.terms {
			idx := voc.offset + i
			if idx < len(vec) {
				scores[term] = round(vec[idx], 4)
			}
		}
		s.Features[voc.name] = scores
	}

	for b := 0; b < v.cfg.HashBuckets; b++ {
		idx := v.hashOffset + b
		if idx >= len(vec) {
			break
		}
		if math.Abs(vec[idx]) > 1e-6 {
			if s.TagBuckets == nil {
				s.TagBuckets = make(map[int]float64)
			}
			s.TagBuckets[b] = round(vec[idx], 4)
		}
	}
	return s
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
