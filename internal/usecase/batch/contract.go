package batch

import (
	"context"
	"time"

	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
	"github.com/kailas-cloud/feedex/internal/usecase/candidate"
)

// InteractionLog is the pending-interaction queue and per-user history.
type InteractionLog interface {
	Unprocessed(ctx context.Context, limit int) ([]dominter.Interaction, error)
	MarkProcessed(ctx context.Context, ids []int64, at time.Time) error
	ResetUser(ctx context.Context, userID int64) (int, error)
	ForUser(ctx context.Context, userID int64) ([]dominter.Interaction, error)
	DefinitiveItems(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// ProfileStore reads and writes taste profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID int64) (domtaste.Profile, error)
	Save(ctx context.Context, p *domtaste.Profile) error
	Delete(ctx context.Context, userID int64) error
}

// ItemReader loads item vectors.
type ItemReader interface {
	GetMany(ctx context.Context, ids []int64) ([]domitem.Item, error)
}

// UserDirectory tracks known users.
type UserDirectory interface {
	Register(ctx context.Context, userIDs ...int64) error
	All(ctx context.Context) ([]int64, error)
}

// FollowGraph answers which creators a user follows.
type FollowGraph interface {
	Following(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// CandidateSelector narrows the catalog for a taste vector.
type CandidateSelector interface {
	Select(ctx context.Context, req candidate.Request) ([]domitem.Item, error)
}

// FeedWriter replaces a user's materialized feed.
type FeedWriter interface {
	Replace(ctx context.Context, userID int64, entries []domfeed.Entry) error
}

// Locker serializes work per user.
type Locker interface {
	Lock(key int64) func()
}
