package scoring

import (
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/feedex/internal/domain/item"
)

const tol = 1e-9

func TestNovelty(t *testing.T) {
	tests := []struct {
		name string
		age  float64
		want float64
	}{
		{"fresh", 0, 1},
		{"half life", 48, 0.5},
		{"two half lives", 96, 0.25},
		{"clock skew", -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Novelty(tt.age, 48, 1)
			if math.Abs(got-tt.want) > tol {
				t.Errorf("Novelty(%v) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestScore(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	fresh := item.Reconstruct(1, 7, []float64{1, 0}, now)
	old := item.Reconstruct(2, 7, []float64{0, 1}, now.Add(-48*time.Hour))

	s := New(DefaultConfig())

	tests := []struct {
		name       string
		taste      []float64
		it         item.Item
		definitive map[int64]struct{}
		following  bool
		want       float64
	}{
		{"similar fresh", []float64{1, 0}, fresh, nil, false, 1 + 0.2},
		{"following adds bonus", []float64{1, 0}, fresh, nil, true, 1 + 0.5 + 0.2},
		{"orthogonal half-life", []float64{1, 0}, old, nil, false, 0.1},
		{"neutral taste", []float64{0, 0}, fresh, nil, false, 0.2},
		{"definitive dampens", []float64{1, 0}, fresh, map[int64]struct{}{1: {}}, false, 1.2 * 0.3},
		{"dimension mismatch", []float64{1, 0, 0}, fresh, nil, false, 0.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.taste, &tt.it, tt.definitive, tt.following, now)
			if math.Abs(got-tt.want) > tol {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreIn_UsesFollowedCreators(t *testing.T) {
	now := time.Now()
	it := item.Reconstruct(1, 42, []float64{1}, now)
	s := New(DefaultConfig())

	plain := s.ScoreIn([]float64{1}, &it, Context{Now: now})
	followed := s.ScoreIn([]float64{1}, &it, Context{Now: now, FollowedCreators: map[int64]struct{}{42: {}}})
	if math.Abs(followed-plain-0.5) > tol {
		t.Errorf("following bonus = %v, want 0.5", followed-plain)
	}
}

func TestAboveFloor(t *testing.T) {
	s := New(DefaultConfig())
	if !s.AboveFloor(-0.9) {
		t.Error("ordinary negative score must survive")
	}
	if s.AboveFloor(-1000) {
		t.Error("score at the floor is dropped")
	}
}
