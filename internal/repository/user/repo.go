package user

import (
	"context"
	"fmt"
	"strconv"
)

// store is the consumer interface for the user registry (ISP).
type store interface {
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

// Repo keeps the set of known user ids.
type Repo struct {
	store  store
	prefix string
}

// New creates a user registry.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Register adds user ids. Registering twice is a no-op.
func (r *Repo) Register(ctx context.Context, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	if err := r.store.SAdd(ctx, r.key(), formatIDs(userIDs)...); err != nil {
		return fmt.Errorf("sadd users: %w", err)
	}
	return nil
}

// Remove forgets a user.
func (r *Repo) Remove(ctx context.Context, userID int64) error {
	if err := r.store.SRem(ctx, r.key(), strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("srem users: %w", err)
	}
	return nil
}

// Exists reports whether the user is registered.
func (r *Repo) Exists(ctx context.Context, userID int64) (bool, error) {
	ok, err := r.store.SIsMember(ctx, r.key(), strconv.FormatInt(userID, 10))
	if err != nil {
		return false, fmt.Errorf("sismember users: %w", err)
	}
	return ok, nil
}

// All returns every registered user id.
func (r *Repo) All(ctx context.Context) ([]int64, error) {
	members, err := r.store.SMembers(ctx, r.key())
	if err != nil {
		return nil, fmt.Errorf("smembers users: %w", err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Repo) key() string { return r.prefix + "users" }

func formatIDs(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
