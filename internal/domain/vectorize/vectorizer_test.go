package vectorize

import (
	"math"
	"testing"

	"github.com/kailas-cloud/feedex/internal/domain/item"
)

func testConfig() Config {
	return Config{
		BPMMin:      60,
		BPMMax:      200,
		Genres:      []string{"ambient", "techno", "jazz"},
		Emotions:    []string{"calm", "dark"},
		Instruments: []string{"synth", "piano"},
		Kinds:       []string{"loop", "one-shot"},
		HashBuckets: 16,
	}
}

func newTestVectorizer(t *testing.T) *Vectorizer {
	t.Helper()
	v, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func ptr(f float64) *float64 { return &f }

func TestDimension(t *testing.T) {
	v := newTestVectorizer(t)
	if got, want := v.Dimension(), 1+3+2+2+2+16; got != want {
		t.Errorf("Dimension = %d, want %d", got, want)
	}
}

func TestVectorize_AlwaysDimensionD(t *testing.T) {
	v := newTestVectorizer(t)
	inputs := []item.Metadata{
		{},
		{BPM: ptr(120)},
		{Genres: []string{"unknown", "techno"}, Tags: []string{"a", "b", "c"}},
		{Tags: make([]string, 500)},
	}
	for i, md := range inputs {
		if got := len(v.Vectorize(md)); got != v.Dimension() {
			t.Errorf("input %d: len = %d, want %d", i, got, v.Dimension())
		}
	}
}

func TestVectorize_BPM(t *testing.T) {
	v := newTestVectorizer(t)
	tests := []struct {
		bpm  float64
		want float64
	}{
		{40, 0},
		{60, 0},
		{130, 0.5},
		{200, 1},
		{250, 1},
	}
	for _, tt := range tests {
		got := v.Vectorize(item.Metadata{BPM: &tt.bpm})[0]
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("bpm %v -> %v, want %v", tt.bpm, got, tt.want)
		}
		if got < 0 || got > 1 {
			t.Errorf("bpm %v normalized out of range: %v", tt.bpm, got)
		}
	}
}

func TestVectorize_MultiHot(t *testing.T) {
	v := newTestVectorizer(t)
	vec := v.Vectorize(item.Metadata{
		Genres:      []string{"Techno", "jazz", "polka"},
		Emotions:    []string{"dark"},
		Instruments: []string{"piano"},
		Kinds:       []string{"loop"},
	})

	// genres start at 1, emotions at 4, instruments at 6, kinds at 8
	want := map[int]float64{2: 1, 3: 1, 5: 1, 7: 1, 8: 1}
	for i := 0; i < 10; i++ {
		if vec[i] != want[i] {
			t.Errorf("slot %d = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestVectorize_HashedTagsStable(t *testing.T) {
	v := newTestVectorizer(t)
	a := v.Vectorize(item.Metadata{Tags: []string{"Vinyl"}})
	b := v.Vectorize(item.Metadata{Tags: []string{" vinyl "}})

	hot := 0
	for i := 10; i < len(a); i++ {
		if a[i] != b[i] {
			t.Fatalf("tag normalization differs at %d", i)
		}
		if a[i] == 1 {
			hot++
		}
	}
	if hot != 1 {
		t.Errorf("one tag must set exactly one bucket, got %d", hot)
	}
}

func TestTerms(t *testing.T) {
	v := newTestVectorizer(t)
	got := v.Terms(item.Metadata{Genres: []string{"Techno", "polka"}, Tags: []string{"Dusty"}})
	if len(got) != 2 || got[0] != "techno" || got[1] != "dusty" {
		t.Errorf("Terms = %v", got)
	}
}

func TestDecode(t *testing.T) {
	v := newTestVectorizer(t)
	vec := v.Vectorize(item.Metadata{BPM: ptr(130), Genres: []string{"ambient"}, Tags: []string{"x"}})

	s := v.Decode(7, vec)
	if s.UserID != 7 {
		t.Errorf("UserID = %d", s.UserID)
	}
	if s.BPMPreference == nil || *s.BPMPreference != 130 {
		t.Errorf("BPMPreference = %v, want 130", s.BPMPreference)
	}
	if s.Features["genres"]["ambient"] != 1 || s.Features["genres"]["techno"] != 0 {
		t.Errorf("genres = %v", s.Features["genres"])
	}
	if len(s.TagBuckets) != 1 {
		t.Errorf("TagBuckets = %v, want one bucket", s.TagBuckets)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted bpm", func(c *Config) { c.BPMMin, c.BPMMax = 200, 60 }},
		{"negative buckets", func(c *Config) { c.HashBuckets = -1 }},
		{"duplicate term", func(c *Config) { c.Genres = []string{"jazz", "JAZZ"} }},
		{"empty term", func(c *Config) { c.Kinds = []string{" "} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
