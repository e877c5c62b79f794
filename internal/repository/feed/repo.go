package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/feedex/internal/db"
	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
)

// store is the consumer interface for materialized feeds (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	ZRem(ctx context.Context, key string, members ...string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]db.Z, error)
	ZReplace(ctx context.Context, key string, members []db.Z) error
}

// Repo stores one sorted set per user plus an item -> users reverse index
// so deleting an item can purge it from every feed.
type Repo struct {
	store  store
	prefix string
}

// New creates a feed repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Replace atomically swaps the user's feed for entries.
func (r *Repo) Replace(ctx context.Context, userID int64, entries []domfeed.Entry, at time.Time) error {
	current, err := r.entries(ctx, userID)
	if err != nil {
		return err
	}

	zs := make([]db.Z, len(entries))
	next := make(map[int64]struct{}, len(entries))
	for i, e := range entries {
		zs[i] = db.Z{Member: strconv.FormatInt(e.ItemID, 10), Score: e.Score}
		next[e.ItemID] = struct{}{}
	}

	// reverse index first: a superset is harmless, a missing link is not
	for id := range next {
		if err := r.link(ctx, userID, id); err != nil {
			return err
		}
	}

	key := r.key(userID)
	if err := r.store.ZReplace(ctx, key, zs); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	stamp := []byte(strconv.FormatInt(at.UnixMilli(), 10))
	if err := r.store.Set(ctx, r.generatedKey(userID), stamp); err != nil {
		return fmt.Errorf("set generated_at: %w", err)
	}

	for _, e := range current {
		if _, kept := next[e.ItemID]; kept {
			continue
		}
		if err := r.store.SRem(ctx, r.inFeedsKey(e.ItemID), strconv.FormatInt(userID, 10)); err != nil {
			return fmt.Errorf("srem in-feeds %d: %w", e.ItemID, err)
		}
	}
	return nil
}

// Link adds the user to the reverse index of each item ahead of a write
// that will reference them.
func (r *Repo) Link(ctx context.Context, userID int64, itemIDs ...int64) error {
	for _, id := range itemIDs {
		if err := r.link(ctx, userID, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) link(ctx context.Context, userID, itemID int64) error {
	if err := r.store.SAdd(ctx, r.inFeedsKey(itemID), strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("sadd in-feeds %d: %w", itemID, err)
	}
	return nil
}

// Get returns the whole feed, best first. A user without a feed gets an
// empty Feed with a zero GeneratedAt.
func (r *Repo) Get(ctx context.Context, userID int64) (domfeed.Feed, error) {
	entries, err := r.entries(ctx, userID)
	if err != nil {
		return domfeed.Feed{}, err
	}
	f := domfeed.Feed{UserID: userID, Entries: entries}
	if len(entries) == 0 {
		return f, nil
	}
	raw, err := r.store.Get(ctx, r.generatedKey(userID))
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
	case err != nil:
		return domfeed.Feed{}, fmt.Errorf("get generated_at: %w", err)
	default:
		if ms, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
			f.GeneratedAt = time.UnixMilli(ms).UTC()
		}
	}
	return f, nil
}

func (r *Repo) entries(ctx context.Context, userID int64) ([]domfeed.Entry, error) {
	key := r.key(userID)
	zs, err := r.store.ZRevRange(ctx, key, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	out := make([]domfeed.Entry, 0, len(zs))
	for _, z := range zs {
		id, err := strconv.ParseInt(z.Member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, domfeed.Entry{ItemID: id, Score: z.Score})
	}
	// Redis orders equal scores by member bytes; ids compare numerically
	domfeed.Sort(out)
	return out, nil
}

// Remove deletes items from the user's feed without touching other rows.
func (r *Repo) Remove(ctx context.Context, userID int64, itemIDs ...int64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	members := make([]string, len(itemIDs))
	for i, id := range itemIDs {
		members[i] = strconv.FormatInt(id, 10)
	}
	key := r.key(userID)
	if err := r.store.ZRem(ctx, key, members...); err != nil {
		return fmt.Errorf("zrem %s: %w", key, err)
	}
	for _, id := range itemIDs {
		if err := r.store.SRem(ctx, r.inFeedsKey(id), strconv.FormatInt(userID, 10)); err != nil {
			return fmt.Errorf("srem in-feeds %d: %w", id, err)
		}
	}
	return nil
}

// UsersWithItem returns the users whose feed may contain the item.
func (r *Repo) UsersWithItem(ctx context.Context, itemID int64) ([]int64, error) {
	members, err := r.store.SMembers(ctx, r.inFeedsKey(itemID))
	if err != nil {
		return nil, fmt.Errorf("smembers in-feeds %d: %w", itemID, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ForgetItem drops the item's reverse index once no feed references it.
func (r *Repo) ForgetItem(ctx context.Context, itemID int64) error {
	if err := r.store.Del(ctx, r.inFeedsKey(itemID)); err != nil {
		return fmt.Errorf("del in-feeds %d: %w", itemID, err)
	}
	return nil
}

// Delete drops the user's feed.
func (r *Repo) Delete(ctx context.Context, userID int64) error {
	current, err := r.entries(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.store.Del(ctx, r.key(userID), r.generatedKey(userID)); err != nil {
		return fmt.Errorf("del feed %d: %w", userID, err)
	}
	for _, e := range current {
		if err := r.store.SRem(ctx, r.inFeedsKey(e.ItemID), strconv.FormatInt(userID, 10)); err != nil {
			return fmt.Errorf("srem in-feeds %d: %w", e.ItemID, err)
		}
	}
	return nil
}

func (r *Repo) key(userID int64) string { return r.prefix + "feed:" + strconv.FormatInt(userID, 10) }

func (r *Repo) generatedKey(userID int64) string {
	return r.prefix + "feed:generated:" + strconv.FormatInt(userID, 10)
}

func (r *Repo) inFeedsKey(itemID int64) string {
	return r.prefix + "feed:in:" + strconv.FormatInt(itemID, 10)
}
