package quickupdate

import (
	"context"

	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
	domfollow "github.com/kailas-cloud/feedex/internal/domain/follow"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
	"github.com/kailas-cloud/feedex/internal/usecase/candidate"
)

// InteractionWriter records and retracts interactions.
type InteractionWriter interface {
	Append(ctx context.Context, in dominter.Interaction) (dominter.Interaction, error)
	Upsert(ctx context.Context, in dominter.Interaction) (dominter.Interaction, bool, error)
	DeleteOne(ctx context.Context, userID, itemID int64, typ dominter.Type) (bool, error)
	DefinitiveItems(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// ProfileStore reads and writes taste profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID int64) (domtaste.Profile, error)
	Save(ctx context.Context, p *domtaste.Profile) error
}

// ItemReader loads items and a creator's catalog.
type ItemReader interface {
	Get(ctx context.Context, id int64) (domitem.Item, error)
	GetMany(ctx context.Context, ids []int64) ([]domitem.Item, error)
	NewestByCreator(ctx context.Context, creatorID int64, limit int) ([]int64, error)
	ByCreator(ctx context.Context, creatorID int64) ([]int64, error)
}

// FollowGraph maintains follow edges.
type FollowGraph interface {
	Add(ctx context.Context, f domfollow.Follow) (bool, error)
	Remove(ctx context.Context, followerID, followedID int64) (bool, error)
	Following(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// UserDirectory tracks known users.
type UserDirectory interface {
	Register(ctx context.Context, userIDs ...int64) error
}

// CandidateSelector narrows the catalog around a reference vector.
type CandidateSelector interface {
	Select(ctx context.Context, req candidate.Request) ([]domitem.Item, error)
}

// FeedEditor applies bounded deltas to a materialized feed.
type FeedEditor interface {
	Merge(ctx context.Context, userID int64, incoming []domfeed.Entry) error
	Remove(ctx context.Context, userID int64, itemIDs ...int64) (int, error)
}

// Locker serializes work per user.
type Locker interface {
	Lock(key int64) func()
}
