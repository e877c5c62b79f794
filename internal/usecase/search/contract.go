package search

import (
	"context"

	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
	itemrepo "github.com/kailas-cloud/feedex/internal/repository/item"
)

// TextIndex retrieves full-text candidates.
type TextIndex interface {
	SearchText(ctx context.Context, query string, limit int) ([]itemrepo.TextHit, error)
	GetMany(ctx context.Context, ids []int64) ([]domitem.Item, error)
}

// ProfileReader loads taste profiles.
type ProfileReader interface {
	Get(ctx context.Context, userID int64) (domtaste.Profile, error)
}

// DefinitiveReader returns the user's definitive interaction items.
type DefinitiveReader interface {
	DefinitiveItems(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// FollowGraph returns followed creators.
type FollowGraph interface {
	Following(ctx context.Context, userID int64) (map[int64]struct{}, error)
}
