package feedex

import (
	"context"
	"time"

	searchuc "github.com/kailas-cloud/feedex/internal/usecase/search"
	syncuc "github.com/kailas-cloud/feedex/internal/usecase/sync"
)

// Feed returns one page of the user's feed. Users without a materialized
// feed get the newest items.
func (c *Client) Feed(ctx context.Context, userID int64, page, perPage int) (_ FeedPage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("feed", start, err) }()

	p, err := c.feedSvc.Get(ctx, userID, page, perPage)
	if err != nil {
		return FeedPage{}, err
	}
	return FeedPage{
		UserID:      p.UserID,
		ItemIDs:     p.ItemIDs,
		Page:        p.Page,
		PerPage:     p.PerPage,
		Total:       p.Total,
		Source:      p.Source,
		GeneratedAt: p.GeneratedAt,
	}, nil
}

// Taste decodes the user's taste profile or returns ErrProfileNotFound.
func (c *Client) Taste(ctx context.Context, userID int64) (_ TasteSummary, err error) {
	start := time.Now()
	defer func() { c.obs.observe("taste", start, err) }()

	s, err := c.tasteSvc.Summary(ctx, userID)
	if err != nil {
		return TasteSummary{}, err
	}
	return TasteSummary{
		UserID:        s.UserID,
		BPMPreference: s.BPMPreference,
		Features:      s.Features,
		TagBuckets:    s.TagBuckets,
	}, nil
}

// Search ranks full-text matches for term, personalized for userID
// (zero for anonymous).
func (c *Client) Search(ctx context.Context, term string, userID int64, page, perPage int) (_ SearchPage, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	res, err := c.searchSvc.Search(ctx, searchuc.Query{Term: term, UserID: userID, Page: page, PerPage: perPage})
	if err != nil {
		return SearchPage{}, err
	}
	hits := make([]SearchHit, len(res.Results))
	for i, r := range res.Results {
		hits[i] = SearchHit{ItemID: r.ItemID, Score: r.Score}
	}
	return SearchPage{Hits: hits, Page: res.Page, PerPage: res.PerPage, Total: res.Total}, nil
}

// Checksum fingerprints one synchronized collection.
func (c *Client) Checksum(ctx context.Context, typ SyncType) (_ Checksum, err error) {
	start := time.Now()
	defer func() { c.obs.observe("sync_checksum", start, err) }()

	t, err := syncuc.ParseType(string(typ))
	if err != nil {
		return Checksum{}, err
	}
	sum, err := c.syncSvc.Checksum(ctx, t)
	if err != nil {
		return Checksum{}, err
	}
	out := Checksum{Count: sum.Count}
	if sum.Checksum != nil {
		out.Checksum = *sum.Checksum
	}
	return out, nil
}

// IDs lists the raw values of one synchronized collection.
func (c *Client) IDs(ctx context.Context, typ SyncType) (_ []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("sync_ids", start, err) }()

	t, err := syncuc.ParseType(string(typ))
	if err != nil {
		return nil, err
	}
	return c.syncSvc.IDs(ctx, t)
}
