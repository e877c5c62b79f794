package item

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/feedex/internal/db"
	"github.com/kailas-cloud/feedex/internal/domain"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
)

// store is the consumer interface for the item catalog (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SUnion(ctx context.Context, keys ...string) ([]string, error)
	SRandMember(ctx context.Context, key string, count int) ([]string, error)
	SCard(ctx context.Context, key string) (int64, error)
	ZAdd(ctx context.Context, key string, members ...db.Z) error
	ZRem(ctx context.Context, key string, members ...string) error
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]db.Z, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo stores item vectors together with the secondary structures the
// candidate selector and feeds read: per-dimension posting lists, a recency
// index, a per-creator index and a full-text index.
type Repo struct {
	store            store
	prefix           string
	postingThreshold float64
}

// New creates an item repository. Dimensions whose value exceeds
// postingThreshold are listed in that dimension's posting set.
func New(s store, prefix string, postingThreshold float64) *Repo {
	return &Repo{store: s, prefix: prefix, postingThreshold: postingThreshold}
}

// EnsureIndex creates the full-text index when missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	name := r.indexName()
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}
	def, err := db.NewIndex(name).
		Prefix(r.itemPrefix()).
		TextWeighted(fieldTitle, 5).
		TextWeighted(fieldTerms, 2).
		Text(fieldDescription).
		Numeric(fieldCreatedAt).
		Build()
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

// Upsert stores the item and refreshes every secondary structure.
// Returns true if the item did not exist before.
func (r *Repo) Upsert(ctx context.Context, it *domitem.Item, md domitem.Metadata, terms []string) (bool, error) {
	key := r.itemKey(it.ID())
	member := strconv.FormatInt(it.ID(), 10)

	prev, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return false, fmt.Errorf("hgetall %s: %w", key, err)
	}
	old, existed := parseHashFields(it.ID(), prev)
	if existed {
		if err := r.dropSecondary(ctx, &old); err != nil {
			return false, err
		}
	}

	if err := r.store.HSet(ctx, key, buildHashFields(it, md, terms)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}

	for _, dim := range r.postings(it.Vector()) {
		if err := r.store.SAdd(ctx, r.dimKey(dim), member); err != nil {
			return false, fmt.Errorf("sadd posting %d: %w", dim, err)
		}
	}
	created := db.Z{Member: member, Score: float64(it.CreatedAt().UnixMilli())}
	if err := r.store.ZAdd(ctx, r.recentKey(), created); err != nil {
		return false, fmt.Errorf("zadd recent: %w", err)
	}
	if err := r.store.ZAdd(ctx, r.creatorKey(it.CreatorID()), created); err != nil {
		return false, fmt.Errorf("zadd creator: %w", err)
	}
	if err := r.store.SAdd(ctx, r.allKey(), member); err != nil {
		return false, fmt.Errorf("sadd items: %w", err)
	}
	return !existed, nil
}

// Get returns an item by id.
func (r *Repo) Get(ctx context.Context, id int64) (domitem.Item, error) {
	key := r.itemKey(id)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domitem.Item{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	it, ok := parseHashFields(id, m)
	if !ok {
		return domitem.Item{}, domain.ErrItemNotFound
	}
	return it, nil
}

// GetMany returns the items that exist among ids, in input order.
func (r *Repo) GetMany(ctx context.Context, ids []int64) ([]domitem.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id)
	}
	rows, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	out := make([]domitem.Item, 0, len(ids))
	for i, m := range rows {
		if it, ok := parseHashFields(ids[i], m); ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// Existing returns the subset of ids that are still in the catalog.
func (r *Repo) Existing(ctx context.Context, ids []int64) (map[int64]struct{}, error) {
	out := make(map[int64]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id)
	}
	found, err := r.store.ExistsMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("exists items: %w", err)
	}
	for i, ok := range found {
		if ok {
			out[ids[i]] = struct{}{}
		}
	}
	return out, nil
}

// Delete removes the item and its secondary structures.
// Returns domain.ErrItemNotFound when nothing was stored.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	it, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.dropSecondary(ctx, &it); err != nil {
		return err
	}
	if err := r.store.SRem(ctx, r.allKey(), strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("srem items: %w", err)
	}
	if err := r.store.Del(ctx, r.itemKey(id)); err != nil {
		return fmt.Errorf("del item %d: %w", id, err)
	}
	return nil
}

func (r *Repo) dropSecondary(ctx context.Context, it *domitem.Item) error {
	member := strconv.FormatInt(it.ID(), 10)
	for _, dim := range r.postings(it.Vector()) {
		if err := r.store.SRem(ctx, r.dimKey(dim), member); err != nil {
			return fmt.Errorf("srem posting %d: %w", dim, err)
		}
	}
	if err := r.store.ZRem(ctx, r.recentKey(), member); err != nil {
		return fmt.Errorf("zrem recent: %w", err)
	}
	if err := r.store.ZRem(ctx, r.creatorKey(it.CreatorID()), member); err != nil {
		return fmt.Errorf("zrem creator: %w", err)
	}
	return nil
}

// InAnyDimension returns item ids listed under any of dims.
func (r *Repo) InAnyDimension(ctx context.Context, dims []int) ([]int64, error) {
	if len(dims) == 0 {
		return nil, nil
	}
	keys := make([]string, len(dims))
	for i, d := range dims {
		keys[i] = r.dimKey(d)
	}
	members, err := r.store.SUnion(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("sunion postings: %w", err)
	}
	return parseIDs(members), nil
}

// Random returns up to n distinct random item ids.
func (r *Repo) Random(ctx context.Context, n int) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := r.store.SRandMember(ctx, r.allKey(), n)
	if err != nil {
		return nil, fmt.Errorf("srandmember items: %w", err)
	}
	return parseIDs(members), nil
}

// Count returns the catalog size.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.SCard(ctx, r.allKey())
	if err != nil {
		return 0, fmt.Errorf("scard items: %w", err)
	}
	return n, nil
}

// AllIDs returns every item id.
func (r *Repo) AllIDs(ctx context.Context) ([]int64, error) {
	members, err := r.store.SMembers(ctx, r.allKey())
	if err != nil {
		return nil, fmt.Errorf("smembers items: %w", err)
	}
	return parseIDs(members), nil
}

// Newest returns item ids by creation time, newest first, paginated.
func (r *Repo) Newest(ctx context.Context, offset, limit int) ([]int64, error) {
	return r.revRange(ctx, r.recentKey(), offset, limit)
}

// NewestByCreator returns a creator's item ids, newest first.
func (r *Repo) NewestByCreator(ctx context.Context, creatorID int64, limit int) ([]int64, error) {
	return r.revRange(ctx, r.creatorKey(creatorID), 0, limit)
}

// ByCreator returns every item id of a creator.
func (r *Repo) ByCreator(ctx context.Context, creatorID int64) ([]int64, error) {
	return r.revRange(ctx, r.creatorKey(creatorID), 0, -1)
}

func (r *Repo) revRange(ctx context.Context, key string, offset, limit int) ([]int64, error) {
	if limit == 0 {
		return nil, nil
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	zs, err := r.store.ZRevRange(ctx, key, int64(offset), stop)
	if err != nil {
		return nil, fmt.Errorf("zrevrange %s: %w", key, err)
	}
	ids := make([]int64, 0, len(zs))
	for _, z := range zs {
		if id, err := strconv.ParseInt(z.Member, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// TextHit is one full-text match.
type TextHit struct {
	ItemID int64
	Score  float64
}

// SearchText runs a BM25 query over title, terms and description.
func (r *Repo) SearchText(ctx context.Context, query string, limit int) ([]TextHit, error) {
	terms := db.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	res, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.indexName(),
		Terms:        terms,
		TopK:         limit,
		ReturnFields: []string{fieldCreatorID},
	})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	hits := make([]TextHit, 0, len(res.Entries))
	for _, e := range res.Entries {
		id, err := strconv.ParseInt(strings.TrimPrefix(e.Key, r.itemPrefix()), 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, TextHit{ItemID: id, Score: e.Score})
	}
	return hits, nil
}

func (r *Repo) postings(vec []float64) []int {
	var dims []int
	for i, x := range vec {
		if x > r.postingThreshold {
			dims = append(dims, i)
		}
	}
	return dims
}

func parseIDs(members []string) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if id, err := strconv.ParseInt(m, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
