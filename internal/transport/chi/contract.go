package chi

import (
	"context"

	"github.com/kailas-cloud/feedex/internal/domain/vectorize"
	batchuc "github.com/kailas-cloud/feedex/internal/usecase/batch"
	feeduc "github.com/kailas-cloud/feedex/internal/usecase/feed"
	healthuc "github.com/kailas-cloud/feedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/feedex/internal/usecase/search"
	syncuc "github.com/kailas-cloud/feedex/internal/usecase/sync"
)

// FeedReader serves materialized feeds with the recency fallback.
type FeedReader interface {
	Get(ctx context.Context, userID int64, page, perPage int) (feeduc.Page, error)
}

// TasteReader decodes taste profiles.
type TasteReader interface {
	Summary(ctx context.Context, userID int64) (vectorize.Summary, error)
}

// Searcher runs hybrid search.
type Searcher interface {
	Search(ctx context.Context, q searchuc.Query) (searchuc.Page, error)
}

// SyncReader fingerprints engine state.
type SyncReader interface {
	Checksum(ctx context.Context, typ syncuc.Type) (syncuc.Checksum, error)
	IDs(ctx context.Context, typ syncuc.Type) ([]string, error)
}

// EventRouter delivers event envelopes.
type EventRouter interface {
	RouteEnvelope(ctx context.Context, data []byte) (bool, error)
}

// Recalculator rebuilds a single user.
type Recalculator interface {
	RecalculateUser(ctx context.Context, userID int64, force bool) (batchuc.UserReport, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
