package feed

import (
	"context"
	"time"

	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
)

// Store persists materialized feeds.
type Store interface {
	Replace(ctx context.Context, userID int64, entries []domfeed.Entry, at time.Time) error
	Get(ctx context.Context, userID int64) (domfeed.Feed, error)
	Remove(ctx context.Context, userID int64, itemIDs ...int64) error
	Link(ctx context.Context, userID int64, itemIDs ...int64) error
}

// Catalog serves the recency fallback and tells which items still exist.
type Catalog interface {
	Newest(ctx context.Context, offset, limit int) ([]int64, error)
	Count(ctx context.Context) (int64, error)
	Existing(ctx context.Context, ids []int64) (map[int64]struct{}, error)
}
