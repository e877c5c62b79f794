package candidate

import (
	"context"
	"fmt"
	"math/rand/v2"

	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	"github.com/kailas-cloud/feedex/internal/domain/vector"
)

// randomRounds bounds how many times padding re-samples when draws keep
// colliding with already selected or excluded ids.
const randomRounds = 3

// Request describes one candidate selection.
type Request struct {
	// Reference is the taste vector (batch) or the liked item's vector (quick update).
	Reference []float64
	// Threshold marks a dimension of Reference as hot when exceeded.
	Threshold float64
	Limit     int
	// Exclude ids never appear in the result.
	Exclude map[int64]struct{}
}

// Service is the candidate selector: an approximate pre-filter over the
// catalog that the scorer then ranks.
type Service struct {
	items   ItemIndex
	shuffle func(n int, swap func(i, j int))
}

// New creates a candidate selector.
func New(items ItemIndex) *Service {
	return &Service{items: items, shuffle: rand.Shuffle}
}

// WithShuffle overrides the permutation used to randomize posting order.
func (s *Service) WithShuffle(fn func(n int, swap func(i, j int))) *Service {
	s.shuffle = fn
	return s
}

// Select returns up to req.Limit items sharing at least one hot dimension
// with req.Reference, padded with uniformly random items when short.
func (s *Service) Select(ctx context.Context, req Request) ([]domitem.Item, error) {
	if req.Limit <= 0 {
		return nil, nil
	}

	picked := make(map[int64]struct{}, req.Limit)
	ids := make([]int64, 0, req.Limit)
	take := func(candidates []int64) {
		for _, id := range candidates {
			if len(ids) >= req.Limit {
				return
			}
			if _, skip := req.Exclude[id]; skip {
				continue
			}
			if _, dup := picked[id]; dup {
				continue
			}
			picked[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if hot := vector.Hot(req.Reference, req.Threshold); len(hot) > 0 {
		similar, err := s.items.InAnyDimension(ctx, hot)
		if err != nil {
			return nil, fmt.Errorf("hot dimension lookup: %w", err)
		}
		s.shuffle(len(similar), func(i, j int) { similar[i], similar[j] = similar[j], similar[i] })
		take(similar)
	}

	for round := 0; round < randomRounds && len(ids) < req.Limit; round++ {
		want := req.Limit - len(ids) + len(req.Exclude) + len(picked)
		random, err := s.items.Random(ctx, want)
		if err != nil {
			return nil, fmt.Errorf("random sample: %w", err)
		}
		before := len(ids)
		take(random)
		if len(ids) == before {
			break
		}
	}

	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	return items, nil
}
