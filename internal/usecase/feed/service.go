package feed

import (
	"context"
	"fmt"
	"time"

	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
)

// Feed sources reported to readers.
const (
	SourceMaterialized = "materialized"
	SourceRecent       = "recent"
)

// Page is one page of a user's feed.
type Page struct {
	UserID      int64
	ItemIDs     []int64
	Page        int
	PerPage     int
	Total       int
	Source      string
	GeneratedAt time.Time
}

// Service materializes top-K feeds and serves them page by page.
// Replace and Merge do not lock: callers hold the user's lock around the
// whole profile/feed read-modify-write.
type Service struct {
	feeds          Store
	catalog        Catalog
	size           int
	defaultPerPage int
	maxPerPage     int
	now            func() time.Time
}

// New creates a feed service keeping at most size entries per user.
func New(feeds Store, catalog Catalog, size int) *Service {
	return &Service{
		feeds:          feeds,
		catalog:        catalog,
		size:           size,
		defaultPerPage: 20,
		maxPerPage:     100,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithPaging sets the default and maximum page sizes.
func (s *Service) WithPaging(defaultPerPage, maxPerPage int) *Service {
	if defaultPerPage > 0 {
		s.defaultPerPage = defaultPerPage
	}
	if maxPerPage > 0 {
		s.maxPerPage = maxPerPage
	}
	return s
}

// WithClock overrides the generation timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Size returns K.
func (s *Service) Size() int { return s.size }

// Replace swaps the user's whole feed, keeping the best K entries.
// Entries whose item was deleted while the feed was ranked are dropped.
// The reverse index is linked before the existence check, so a concurrent
// item delete either finds this user or is seen missing here.
func (s *Service) Replace(ctx context.Context, userID int64, entries []domfeed.Entry) error {
	entries = domfeed.Truncate(entries, s.size)
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ItemID
	}
	if err := s.feeds.Link(ctx, userID, ids...); err != nil {
		return fmt.Errorf("link feed items: %w", err)
	}
	live, err := s.catalog.Existing(ctx, ids)
	if err != nil {
		return fmt.Errorf("check feed items: %w", err)
	}

	kept := make([]domfeed.Entry, 0, len(entries))
	var gone []int64
	for _, e := range entries {
		if _, ok := live[e.ItemID]; ok {
			kept = append(kept, e)
		} else {
			gone = append(gone, e.ItemID)
		}
	}
	if err := s.feeds.Replace(ctx, userID, kept, s.now()); err != nil {
		return fmt.Errorf("replace feed: %w", err)
	}
	if len(gone) > 0 {
		// drops the links made above
		if err := s.feeds.Remove(ctx, userID, gone...); err != nil {
			return fmt.Errorf("unlink deleted items: %w", err)
		}
	}
	return nil
}

// Merge splices incoming into the current feed: incoming rows win over
// current rows for the same item, then the union is cut to K.
func (s *Service) Merge(ctx context.Context, userID int64, incoming []domfeed.Entry) error {
	if len(incoming) == 0 {
		return nil
	}
	current, err := s.feeds.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("read feed: %w", err)
	}
	merged := domfeed.Merge(current.Entries, incoming, s.size)
	if err := s.feeds.Replace(ctx, userID, merged, s.now()); err != nil {
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}

// Remove drops items from the feed without rescoring the rest.
// Returns how many of them were in the feed.
func (s *Service) Remove(ctx context.Context, userID int64, itemIDs ...int64) (int, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	current, err := s.feeds.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("read feed: %w", err)
	}
	present := make(map[int64]struct{}, len(current.Entries))
	for _, e := range current.Entries {
		present[e.ItemID] = struct{}{}
	}
	removed := 0
	for _, id := range itemIDs {
		if _, ok := present[id]; ok {
			removed++
		}
	}
	if err := s.feeds.Remove(ctx, userID, itemIDs...); err != nil {
		return 0, fmt.Errorf("remove from feed: %w", err)
	}
	return removed, nil
}

// Get returns one page of the user's feed. Users without a materialized
// feed get the catalog ordered by recency instead.
func (s *Service) Get(ctx context.Context, userID int64, page, perPage int) (Page, error) {
	page, perPage = s.clamp(page, perPage)
	offset := (page - 1) * perPage

	f, err := s.feeds.Get(ctx, userID)
	if err != nil {
		return Page{}, fmt.Errorf("read feed: %w", err)
	}
	if len(f.Entries) > 0 {
		out := Page{
			UserID:      userID,
			ItemIDs:     []int64{},
			Page:        page,
			PerPage:     perPage,
			Total:       len(f.Entries),
			Source:      SourceMaterialized,
			GeneratedAt: f.GeneratedAt,
		}
		if offset < len(f.Entries) {
			end := min(offset+perPage, len(f.Entries))
			for _, e := range f.Entries[offset:end] {
				out.ItemIDs = append(out.ItemIDs, e.ItemID)
			}
		}
		return out, nil
	}

	ids, err := s.catalog.Newest(ctx, offset, perPage)
	if err != nil {
		return Page{}, fmt.Errorf("recent items: %w", err)
	}
	total, err := s.catalog.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count items: %w", err)
	}
	if ids == nil {
		ids = []int64{}
	}
	return Page{
		UserID:  userID,
		ItemIDs: ids,
		Page:    page,
		PerPage: perPage,
		Total:   int(total),
		Source:  SourceRecent,
	}, nil
}

func (s *Service) clamp(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.defaultPerPage
	}
	if perPage > s.maxPerPage {
		perPage = s.maxPerPage
	}
	return page, perPage
}
