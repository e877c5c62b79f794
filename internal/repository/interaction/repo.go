package interaction

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/feedex/internal/db"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
)

// store is the consumer interface for the interaction log (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Get(ctx context.Context, key string) ([]byte, error)
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	ZAdd(ctx context.Context, key string, members ...db.Z) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRangeByScore(ctx context.Context, key string, limit int) ([]db.Z, error)
	ZCard(ctx context.Context, key string) (int64, error)
}

// Repo is the append-only interaction log. Unprocessed entries sit in a
// sorted set scored by id so the batch path drains them oldest first.
type Repo struct {
	store  store
	prefix string
}

// New creates an interaction repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Append records an interaction unconditionally.
func (r *Repo) Append(ctx context.Context, in dominter.Interaction) (dominter.Interaction, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return dominter.Interaction{}, err
	}
	return r.write(ctx, in, id)
}

// Upsert records an interaction at most once per (user, item, type).
// Returns the stored row and whether it was created. The unique key is
// claimed with SET NX before the row exists, so concurrent callers cannot
// both create it.
func (r *Repo) Upsert(ctx context.Context, in dominter.Interaction) (dominter.Interaction, bool, error) {
	existing, err := r.find(ctx, in.UserID, in.ItemID, in.Type)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, db.ErrKeyNotFound) {
		return dominter.Interaction{}, false, err
	}

	id, err := r.nextID(ctx)
	if err != nil {
		return dominter.Interaction{}, false, err
	}
	uniq := r.uniqKey(in.UserID, in.ItemID, in.Type)
	claimed, err := r.store.SetNX(ctx, uniq, []byte(strconv.FormatInt(id, 10)))
	if err != nil {
		return dominter.Interaction{}, false, fmt.Errorf("claim uniq: %w", err)
	}
	if !claimed {
		existing, err := r.find(ctx, in.UserID, in.ItemID, in.Type)
		if errors.Is(err, db.ErrKeyNotFound) {
			// the winner is still writing its row
			return in, false, nil
		}
		if err != nil {
			return dominter.Interaction{}, false, err
		}
		return existing, false, nil
	}

	stored, err := r.write(ctx, in, id)
	if err != nil {
		// release the claim or the pair stays blocked forever
		if delErr := r.store.Del(context.WithoutCancel(ctx), uniq); delErr != nil {
			err = errors.Join(err, fmt.Errorf("release uniq: %w", delErr))
		}
		return dominter.Interaction{}, false, err
	}
	return stored, true, nil
}

func (r *Repo) nextID(ctx context.Context) (int64, error) {
	id, err := r.store.Incr(ctx, r.seqKey())
	if err != nil {
		return 0, fmt.Errorf("incr interaction seq: %w", err)
	}
	return id, nil
}

func (r *Repo) write(ctx context.Context, in dominter.Interaction, id int64) (dominter.Interaction, error) {
	in.ID = id
	in.ProcessedAt = nil
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	member := strconv.FormatInt(id, 10)

	if err := r.store.HSet(ctx, r.key(id), buildHashFields(&in)); err != nil {
		return dominter.Interaction{}, fmt.Errorf("hset interaction %d: %w", id, err)
	}
	if err := r.store.SAdd(ctx, r.userKey(in.UserID), member); err != nil {
		return dominter.Interaction{}, fmt.Errorf("sadd user interactions: %w", err)
	}
	if err := r.store.SAdd(ctx, r.itemKey(in.ItemID), member); err != nil {
		return dominter.Interaction{}, fmt.Errorf("sadd item interactions: %w", err)
	}
	if err := r.indexType(ctx, &in); err != nil {
		return dominter.Interaction{}, err
	}
	// pending last: the batch path must never see a half-written row
	if err := r.store.ZAdd(ctx, r.pendingKey(), db.Z{Member: member, Score: float64(id)}); err != nil {
		return dominter.Interaction{}, fmt.Errorf("zadd pending: %w", err)
	}
	return in, nil
}

func (r *Repo) indexType(ctx context.Context, in *dominter.Interaction) error {
	if dominter.IsDefinitive(in.Type) {
		if err := r.store.SAdd(ctx, r.definitiveKey(in.UserID), strconv.FormatInt(in.ItemID, 10)); err != nil {
			return fmt.Errorf("sadd definitive: %w", err)
		}
	}
	if in.Type == dominter.Like {
		if err := r.store.SAdd(ctx, r.likePairsKey(), pair(in.UserID, in.ItemID)); err != nil {
			return fmt.Errorf("sadd like pairs: %w", err)
		}
	}
	return nil
}

func (r *Repo) find(ctx context.Context, userID, itemID int64, typ dominter.Type) (dominter.Interaction, error) {
	raw, err := r.store.Get(ctx, r.uniqKey(userID, itemID, typ))
	if err != nil {
		return dominter.Interaction{}, err
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return dominter.Interaction{}, fmt.Errorf("parse interaction id %q: %w", raw, err)
	}
	return r.Get(ctx, id)
}

// Get returns one interaction or db.ErrKeyNotFound.
func (r *Repo) Get(ctx context.Context, id int64) (dominter.Interaction, error) {
	m, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		return dominter.Interaction{}, fmt.Errorf("hgetall interaction %d: %w", id, err)
	}
	in, ok := parseHashFields(id, m)
	if !ok {
		return dominter.Interaction{}, db.ErrKeyNotFound
	}
	return in, nil
}

// DeleteOne removes the (user, item, type) row recorded via Upsert.
// Returns false when no such row exists.
func (r *Repo) DeleteOne(ctx context.Context, userID, itemID int64, typ dominter.Type) (bool, error) {
	in, err := r.find(ctx, userID, itemID, typ)
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := r.remove(ctx, &in); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) remove(ctx context.Context, in *dominter.Interaction) error {
	member := strconv.FormatInt(in.ID, 10)
	if err := r.store.ZRem(ctx, r.pendingKey(), member); err != nil {
		return fmt.Errorf("zrem pending: %w", err)
	}
	if err := r.store.SRem(ctx, r.userKey(in.UserID), member); err != nil {
		return fmt.Errorf("srem user interactions: %w", err)
	}
	if err := r.store.SRem(ctx, r.itemKey(in.ItemID), member); err != nil {
		return fmt.Errorf("srem item interactions: %w", err)
	}
	if dominter.IsDefinitive(in.Type) {
		if err := r.store.SRem(ctx, r.definitiveKey(in.UserID), strconv.FormatInt(in.ItemID, 10)); err != nil {
			return fmt.Errorf("srem definitive: %w", err)
		}
	}
	if in.Type == dominter.Like {
		if err := r.store.SRem(ctx, r.likePairsKey(), pair(in.UserID, in.ItemID)); err != nil {
			return fmt.Errorf("srem like pairs: %w", err)
		}
	}
	if err := r.store.Del(ctx, r.key(in.ID), r.uniqKey(in.UserID, in.ItemID, in.Type)); err != nil {
		return fmt.Errorf("del interaction %d: %w", in.ID, err)
	}
	return nil
}

// Unprocessed returns up to limit unprocessed interactions, id ascending.
func (r *Repo) Unprocessed(ctx context.Context, limit int) ([]dominter.Interaction, error) {
	zs, err := r.store.ZRangeByScore(ctx, r.pendingKey(), limit)
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore pending: %w", err)
	}
	ids := make([]int64, 0, len(zs))
	for _, z := range zs {
		if id, err := strconv.ParseInt(z.Member, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return r.load(ctx, ids)
}

// PendingCount returns the number of unprocessed interactions.
func (r *Repo) PendingCount(ctx context.Context) (int64, error) {
	n, err := r.store.ZCard(ctx, r.pendingKey())
	if err != nil {
		return 0, fmt.Errorf("zcard pending: %w", err)
	}
	return n, nil
}

// MarkProcessed stamps exactly ids and drops them from the pending queue in
// one command. Rows deleted in the meantime are not recreated.
func (r *Repo) MarkProcessed(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.load(ctx, ids)
	if err != nil {
		return err
	}
	stamp := formatProcessed(&at)
	items := make([]db.HashSetItem, 0, len(rows))
	for _, in := range rows {
		items = append(items, db.HashSetItem{Key: r.key(in.ID), Fields: map[string]string{fieldProcessedAt: stamp}})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("hset processed_at: %w", err)
	}
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = strconv.FormatInt(id, 10)
	}
	if err := r.store.ZRem(ctx, r.pendingKey(), members...); err != nil {
		return fmt.Errorf("zrem pending: %w", err)
	}
	return nil
}

// ResetUser marks every interaction of a user unprocessed again.
func (r *Repo) ResetUser(ctx context.Context, userID int64) (int, error) {
	rows, err := r.ForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	items := make([]db.HashSetItem, len(rows))
	pending := make([]db.Z, len(rows))
	for i, in := range rows {
		items[i] = db.HashSetItem{Key: r.key(in.ID), Fields: map[string]string{fieldProcessedAt: unprocessedMarker}}
		pending[i] = db.Z{Member: strconv.FormatInt(in.ID, 10), Score: float64(in.ID)}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return 0, fmt.Errorf("hset processed_at: %w", err)
	}
	if err := r.store.ZAdd(ctx, r.pendingKey(), pending...); err != nil {
		return 0, fmt.Errorf("zadd pending: %w", err)
	}
	return len(rows), nil
}

// ForUser returns every interaction of a user, id ascending.
func (r *Repo) ForUser(ctx context.Context, userID int64) ([]dominter.Interaction, error) {
	return r.loadSet(ctx, r.userKey(userID))
}

// DefinitiveItems returns the item ids the user interacted with definitively.
func (r *Repo) DefinitiveItems(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	members, err := r.store.SMembers(ctx, r.definitiveKey(userID))
	if err != nil {
		return nil, fmt.Errorf("smembers definitive: %w", err)
	}
	out := make(map[int64]struct{}, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

// LikePairs returns "user-item" pairs of every recorded like.
func (r *Repo) LikePairs(ctx context.Context) ([]string, error) {
	members, err := r.store.SMembers(ctx, r.likePairsKey())
	if err != nil {
		return nil, fmt.Errorf("smembers like pairs: %w", err)
	}
	return members, nil
}

// DeleteForItem removes the item's whole history. Returns the affected users.
func (r *Repo) DeleteForItem(ctx context.Context, itemID int64) ([]int64, error) {
	rows, err := r.loadSet(ctx, r.itemKey(itemID))
	if err != nil {
		return nil, err
	}
	users := make(map[int64]struct{})
	for i := range rows {
		if err := r.remove(ctx, &rows[i]); err != nil {
			return nil, err
		}
		users[rows[i].UserID] = struct{}{}
	}
	if err := r.store.Del(ctx, r.itemKey(itemID)); err != nil {
		return nil, fmt.Errorf("del item interactions: %w", err)
	}
	out := make([]int64, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	return out, nil
}

// DeleteForUser removes the user's whole history.
func (r *Repo) DeleteForUser(ctx context.Context, userID int64) error {
	rows, err := r.ForUser(ctx, userID)
	if err != nil {
		return err
	}
	for i := range rows {
		if err := r.remove(ctx, &rows[i]); err != nil {
			return err
		}
	}
	if err := r.store.Del(ctx, r.userKey(userID), r.definitiveKey(userID)); err != nil {
		return fmt.Errorf("del user interactions: %w", err)
	}
	return nil
}

func (r *Repo) loadSet(ctx context.Context, key string) ([]dominter.Interaction, error) {
	members, err := r.store.SMembers(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return r.load(ctx, ids)
}

func (r *Repo) load(ctx context.Context, ids []int64) ([]dominter.Interaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall interactions: %w", err)
	}
	out := make([]dominter.Interaction, 0, len(ids))
	for i, m := range rows {
		if in, ok := parseHashFields(ids[i], m); ok {
			out = append(out, in)
		}
	}
	return out, nil
}
