package memory

import (
	"context"
	"sort"

	"github.com/kailas-cloud/feedex/internal/db"
)

// ZAdd adds or updates scored members.
func (s *Store) ZAdd(_ context.Context, key string, members ...db.Z) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		z = make(map[string]float64, len(members))
		s.zsets[key] = z
	}
	for _, m := range members {
		z[m.Member] = m.Score
	}
	return nil
}

// ZRem removes members; an emptied sorted set disappears.
func (s *Store) ZRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zsets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(z, m)
	}
	if len(z) == 0 {
		delete(s.zsets, key)
	}
	return nil
}

// ZRangeByScore returns up to limit members in ascending (score, member) order.
func (s *Store) ZRangeByScore(_ context.Context, key string, limit int) ([]db.Z, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	ordered := ascending(s.zsets[key])
	s.mu.RUnlock()
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

// ZRevRange returns members ranked by descending (score, member), Redis index rules.
func (s *Store) ZRevRange(_ context.Context, key string, start, stop int64) ([]db.Z, error) {
	s.mu.RLock()
	ordered := ascending(s.zsets[key])
	s.mu.RUnlock()

	n := int64(len(ordered))
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}

	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []db.Z{}, nil
	}
	return ordered[start : stop+1], nil
}

// ZCard returns the sorted set size.
func (s *Store) ZCard(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.zsets[key])), nil
}

// ZReplace swaps the sorted set content under the write lock.
func (s *Store) ZReplace(_ context.Context, key string, members []db.Z) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(members) == 0 {
		delete(s.zsets, key)
		return nil
	}
	z := make(map[string]float64, len(members))
	for _, m := range members {
		z[m.Member] = m.Score
	}
	s.zsets[key] = z
	return nil
}

func ascending(z map[string]float64) []db.Z {
	out := make([]db.Z, 0, len(z))
	for m, sc := range z {
		out = append(out, db.Z{Member: m, Score: sc})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}
