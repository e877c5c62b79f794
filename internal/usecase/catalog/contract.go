package catalog

import (
	"context"

	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
)

// Vectorizer encodes item metadata.
type Vectorizer interface {
	Vectorize(md domitem.Metadata) []float64
	Terms(md domitem.Metadata) []string
	Dimension() int
}

// ItemStore persists vectorized items.
type ItemStore interface {
	Upsert(ctx context.Context, it *domitem.Item, md domitem.Metadata, terms []string) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// FeedIndex finds and edits the feeds an item appears in.
type FeedIndex interface {
	UsersWithItem(ctx context.Context, itemID int64) ([]int64, error)
	Remove(ctx context.Context, userID int64, itemIDs ...int64) error
	ForgetItem(ctx context.Context, itemID int64) error
	Delete(ctx context.Context, userID int64) error
}

// InteractionPurger drops interaction history.
type InteractionPurger interface {
	DeleteForItem(ctx context.Context, itemID int64) ([]int64, error)
	DeleteForUser(ctx context.Context, userID int64) error
}

// ProfileStore manages taste profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID int64) (domtaste.Profile, error)
	Save(ctx context.Context, p *domtaste.Profile) error
	Delete(ctx context.Context, userID int64) error
}

// UserDirectory tracks known users.
type UserDirectory interface {
	Register(ctx context.Context, userIDs ...int64) error
	Remove(ctx context.Context, userID int64) error
}

// FollowPurger drops a user's follow edges.
type FollowPurger interface {
	DeleteUser(ctx context.Context, userID int64) error
}

// Locker serializes work per user.
type Locker interface {
	Lock(key int64) func()
}
