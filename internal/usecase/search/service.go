package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/feedex/internal/domain"
	"github.com/kailas-cloud/feedex/internal/domain/scoring"
	"github.com/kailas-cloud/feedex/internal/domain/vector"
)

// Config tunes hybrid search.
type Config struct {
	CandidateLimit int
	TextWeight     float64
	PersonalWeight float64
	Dimension      int
}

// DefaultConfig returns the search defaults for dimension d.
func DefaultConfig(d int) Config {
	return Config{CandidateLimit: 500, TextWeight: 0.5, PersonalWeight: 0.5, Dimension: d}
}

// Query is one search request.
type Query struct {
	Term    string
	UserID  int64
	Page    int
	PerPage int
}

// Result is one ranked item.
type Result struct {
	ItemID int64   `json:"item_id"`
	Score  float64 `json:"score"`
}

// Page is a page of search results.
type Page struct {
	Results []Result
	Total   int
	Page    int
	PerPage int
}

// Service ranks full-text matches by relevance and by the user's taste.
// It never writes.
type Service struct {
	text     TextIndex
	profiles ProfileReader
	defs     DefinitiveReader
	follows  FollowGraph
	scorer   *scoring.Scorer
	cfg      Config
	now      func() time.Time
}

// New creates a hybrid search service.
func New(
	text TextIndex, profiles ProfileReader, defs DefinitiveReader,
	follows FollowGraph, scorer *scoring.Scorer, cfg Config,
) *Service {
	return &Service{
		text: text, profiles: profiles, defs: defs, follows: follows,
		scorer: scorer, cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Search returns one page of hybrid-ranked items. page is at least 1 and
// perPage is clamped to 1..100. A blank term yields an empty page.
func (s *Service) Search(ctx context.Context, q Query) (Page, error) {
	page := max(1, q.Page)
	perPage := min(max(1, q.PerPage), 100)
	out := Page{Results: []Result{}, Page: page, PerPage: perPage}

	term := strings.TrimSpace(q.Term)
	if term == "" {
		return out, nil
	}

	textHits, err := s.text.SearchText(ctx, term, s.cfg.CandidateLimit)
	if err != nil {
		return Page{}, fmt.Errorf("full-text search: %w", err)
	}
	if len(textHits) == 0 {
		return out, nil
	}

	ids := make([]int64, len(textHits))
	for i, h := range textHits {
		ids[i] = h.ItemID
	}
	items, err := s.text.GetMany(ctx, ids)
	if err != nil {
		return Page{}, fmt.Errorf("load matches: %w", err)
	}

	sc, taste, err := s.personalization(ctx, q.UserID)
	if err != nil {
		return Page{}, err
	}

	textScore := make(map[int64]float64, len(textHits))
	for _, h := range textHits {
		textScore[h.ItemID] = h.Score
	}
	hits := make([]hit, 0, len(items))
	for i := range items {
		it := &items[i]
		hits = append(hits, hit{
			itemID:   it.ID(),
			text:     textScore[it.ID()],
			personal: s.scorer.ScoreIn(taste, it, sc),
		})
	}

	ranked := fuseWeighted(hits, s.cfg.TextWeight, s.cfg.PersonalWeight)
	out.Total = len(ranked)
	if offset := (page - 1) * perPage; offset < len(ranked) {
		out.Results = ranked[offset:min(offset+perPage, len(ranked))]
	}
	return out, nil
}

// personalization loads what the score needs. Anonymous or unknown users
// get a neutral taste vector.
func (s *Service) personalization(ctx context.Context, userID int64) (scoring.Context, []float64, error) {
	sc := scoring.Context{Now: s.now()}
	taste := vector.Zero(s.cfg.Dimension)
	if userID <= 0 {
		return sc, taste, nil
	}

	p, err := s.profiles.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
	case err != nil:
		return sc, nil, fmt.Errorf("load profile: %w", err)
	default:
		taste = p.Vector()
	}

	if sc.Definitive, err = s.defs.DefinitiveItems(ctx, userID); err != nil {
		return sc, nil, fmt.Errorf("definitive interactions: %w", err)
	}
	if sc.FollowedCreators, err = s.follows.Following(ctx, userID); err != nil {
		return sc, nil, fmt.Errorf("followed creators: %w", err)
	}
	return sc, taste, nil
}
