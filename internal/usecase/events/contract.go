package events

import (
	"context"

	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	"github.com/kailas-cloud/feedex/internal/usecase/catalog"
	"github.com/kailas-cloud/feedex/internal/usecase/quickupdate"
)

// QuickUpdater is the event-path feed engine.
type QuickUpdater interface {
	Like(ctx context.Context, userID, itemID int64) (quickupdate.Result, error)
	Comment(ctx context.Context, userID, itemID int64) (quickupdate.Result, error)
	Unlike(ctx context.Context, userID, itemID int64) (quickupdate.Result, error)
	Follow(ctx context.Context, followerID, followedID int64) (quickupdate.Result, error)
	Unfollow(ctx context.Context, followerID, followedID int64) (quickupdate.Result, error)
	Record(ctx context.Context, userID, itemID int64, typ dominter.Type) error
}

// Catalog owns item and user lifecycles.
type Catalog interface {
	UpsertItem(ctx context.Context, in catalog.ItemInput) (bool, error)
	DeleteItem(ctx context.Context, itemID int64) error
	CreateUser(ctx context.Context, userID int64) error
	DeleteUser(ctx context.Context, userID int64) error
}
