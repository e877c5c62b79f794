package follow

import (
	"context"
	"fmt"
	"strconv"

	domfollow "github.com/kailas-cloud/feedex/internal/domain/follow"
)

// store is the consumer interface for the follow graph (ISP).
type store interface {
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
}

// Repo stores both directions of the follow graph and a global pair set.
type Repo struct {
	store  store
	prefix string
}

// New creates a follow repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Add records the follow. Returns true if it did not exist.
func (r *Repo) Add(ctx context.Context, f domfollow.Follow) (bool, error) {
	exists, err := r.IsFollowing(ctx, f.FollowerID, f.FollowedID)
	if err != nil {
		return false, err
	}
	if err := r.store.SAdd(ctx, r.outKey(f.FollowerID), strconv.FormatInt(f.FollowedID, 10)); err != nil {
		return false, fmt.Errorf("sadd following: %w", err)
	}
	if err := r.store.SAdd(ctx, r.inKey(f.FollowedID), strconv.FormatInt(f.FollowerID, 10)); err != nil {
		return false, fmt.Errorf("sadd followers: %w", err)
	}
	if err := r.store.SAdd(ctx, r.pairsKey(), pair(f.FollowerID, f.FollowedID)); err != nil {
		return false, fmt.Errorf("sadd follow pairs: %w", err)
	}
	return !exists, nil
}

// Remove deletes the follow. Returns false if it did not exist.
func (r *Repo) Remove(ctx context.Context, followerID, followedID int64) (bool, error) {
	exists, err := r.IsFollowing(ctx, followerID, followedID)
	if err != nil {
		return false, err
	}
	if err := r.store.SRem(ctx, r.outKey(followerID), strconv.FormatInt(followedID, 10)); err != nil {
		return false, fmt.Errorf("srem following: %w", err)
	}
	if err := r.store.SRem(ctx, r.inKey(followedID), strconv.FormatInt(followerID, 10)); err != nil {
		return false, fmt.Errorf("srem followers: %w", err)
	}
	if err := r.store.SRem(ctx, r.pairsKey(), pair(followerID, followedID)); err != nil {
		return false, fmt.Errorf("srem follow pairs: %w", err)
	}
	return exists, nil
}

// IsFollowing reports whether followerID follows followedID.
func (r *Repo) IsFollowing(ctx context.Context, followerID, followedID int64) (bool, error) {
	ok, err := r.store.SIsMember(ctx, r.outKey(followerID), strconv.FormatInt(followedID, 10))
	if err != nil {
		return false, fmt.Errorf("sismember following: %w", err)
	}
	return ok, nil
}

// Following returns the creator ids the user follows.
func (r *Repo) Following(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	return r.idSet(ctx, r.outKey(userID))
}

// Followers returns the ids following the user.
func (r *Repo) Followers(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	return r.idSet(ctx, r.inKey(userID))
}

// Pairs returns every follow as "follower-followed".
func (r *Repo) Pairs(ctx context.Context) ([]string, error) {
	members, err := r.store.SMembers(ctx, r.pairsKey())
	if err != nil {
		return nil, fmt.Errorf("smembers follow pairs: %w", err)
	}
	return members, nil
}

// DeleteUser removes every follow the user takes part in.
func (r *Repo) DeleteUser(ctx context.Context, userID int64) error {
	following, err := r.Following(ctx, userID)
	if err != nil {
		return err
	}
	for id := range following {
		if _, err := r.Remove(ctx, userID, id); err != nil {
			return err
		}
	}
	followers, err := r.Followers(ctx, userID)
	if err != nil {
		return err
	}
	for id := range followers {
		if _, err := r.Remove(ctx, id, userID); err != nil {
			return err
		}
	}
	if err := r.store.Del(ctx, r.outKey(userID), r.inKey(userID)); err != nil {
		return fmt.Errorf("del follow sets: %w", err)
	}
	return nil
}

func (r *Repo) idSet(ctx context.Context, key string) (map[int64]struct{}, error) {
	members, err := r.store.SMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	out := make(map[int64]struct{}, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (r *Repo) outKey(userID int64) string {
	return r.prefix + "follow:out:" + strconv.FormatInt(userID, 10)
}

func (r *Repo) inKey(userID int64) string {
	return r.prefix + "follow:in:" + strconv.FormatInt(userID, 10)
}

func (r *Repo) pairsKey() string { return r.prefix + "follow:pairs" }

func pair(a, b int64) string {
	return strconv.FormatInt(a, 10) + "-" + strconv.FormatInt(b, 10)
}
