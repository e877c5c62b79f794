// Package scoring ranks an item for a user:
//
//	score = cos(taste, item)*Wsim + following*Wfollow + novelty*Wnovelty
//
// multiplied by the visibility factor when the user already interacted with
// the item definitively.
package scoring

import (
	"math"
	"time"

	"github.com/kailas-cloud/feedex/internal/domain/item"
	"github.com/kailas-cloud/feedex/internal/domain/vector"
)

// Config carries the scoring weights.
type Config struct {
	SimilarityWeight float64
	FollowingWeight  float64
	NoveltyWeight    float64
	HalfLifeHours    float64
	MaxNoveltyBonus  float64
	VisibilityFactor float64
	// PenaltyFloor is the worst-case score; batch recompute keeps scores above it.
	PenaltyFloor float64
}

// DefaultConfig returns the stock weights.
func DefaultConfig() Config {
	return Config{
		SimilarityWeight: 1.0,
		FollowingWeight:  0.5,
		NoveltyWeight:    0.2,
		HalfLifeHours:    48,
		MaxNoveltyBonus:  1.0,
		VisibilityFactor: 0.3,
		PenaltyFloor:     -1000,
	}
}

// Context is the per-user information the score depends on.
type Context struct {
	// Definitive holds item ids the user interacted with definitively.
	Definitive map[int64]struct{}
	// FollowedCreators holds creator ids the user follows.
	FollowedCreators map[int64]struct{}
	Now              time.Time
}

// Scorer is a pure function of its configuration.
type Scorer struct {
	cfg Config
}

// New creates a Scorer.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score ranks it against taste. following overrides the creator lookup.
func (s *Scorer) Score(taste []float64, it *item.Item, definitive map[int64]struct{}, following bool, now time.Time) float64 {
	sim := vector.Cosine(taste, it.Vector())

	var follow float64
	if following {
		follow = 1
	}

	ageHours := now.Sub(it.CreatedAt()).Hours()
	nov := Novelty(ageHours, s.cfg.HalfLifeHours, s.cfg.MaxNoveltyBonus)

	score := sim*s.cfg.SimilarityWeight + follow*s.cfg.FollowingWeight + nov*s.cfg.NoveltyWeight

	if _, seen := definitive[it.ID()]; seen {
		score *= s.cfg.VisibilityFactor
	}
	return score
}

// ScoreIn is Score with following derived from sc.
func (s *Scorer) ScoreIn(taste []float64, it *item.Item, sc Context) float64 {
	_, following := sc.FollowedCreators[it.CreatorID()]
	return s.Score(taste, it, sc.Definitive, following, sc.Now)
}

// Novelty returns maxBonus * 0.5^(ageHours/halfLife). Negative age yields 0.
func Novelty(ageHours, halfLifeHours, maxBonus float64) float64 {
	if ageHours < 0 || halfLifeHours <= 0 {
		return 0
	}
	return maxBonus * math.Pow(0.5, ageHours/halfLifeHours)
}

// AboveFloor reports whether a batch candidate survives the drop floor.
func (s *Scorer) AboveFloor(score float64) bool {
	return score > s.cfg.PenaltyFloor
}
