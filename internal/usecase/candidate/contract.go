package candidate

import (
	"context"

	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
)

// ItemIndex is the lookup surface the selector narrows the catalog with.
type ItemIndex interface {
	InAnyDimension(ctx context.Context, dims []int) ([]int64, error)
	Random(ctx context.Context, n int) ([]int64, error)
	GetMany(ctx context.Context, ids []int64) ([]domitem.Item, error)
}
