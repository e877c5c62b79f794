package sync

import "context"

// IDSource lists entity ids.
type IDSource interface {
	AllIDs(ctx context.Context) ([]int64, error)
}

// UserSource lists known users.
type UserSource interface {
	All(ctx context.Context) ([]int64, error)
}

// PairSource lists relations as "a-b" strings.
type PairSource interface {
	Pairs(ctx context.Context) ([]string, error)
}

// LikeSource lists likes as "user-item" strings.
type LikeSource interface {
	LikePairs(ctx context.Context) ([]string, error)
}
