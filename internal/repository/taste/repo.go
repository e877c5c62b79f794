package taste

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/feedex/internal/db"
	"github.com/kailas-cloud/feedex/internal/domain"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
)

const (
	fieldVector    = "vector"
	fieldUpdatedAt = "updated_at"
)

// store is the consumer interface for taste profiles (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
}

// Repo persists one taste profile per user.
type Repo struct {
	store  store
	prefix string
}

// New creates a taste profile repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Get returns a profile or domain.ErrProfileNotFound.
func (r *Repo) Get(ctx context.Context, userID int64) (domtaste.Profile, error) {
	key := r.key(userID)
	m, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domtaste.Profile{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	vec := db.DecodeVector(m[fieldVector])
	if vec == nil {
		return domtaste.Profile{}, domain.ErrProfileNotFound
	}
	var updated time.Time
	if ms, err := strconv.ParseInt(m[fieldUpdatedAt], 10, 64); err == nil {
		updated = time.UnixMilli(ms).UTC()
	}
	return domtaste.Reconstruct(userID, vec, updated), nil
}

// Save upserts the profile.
func (r *Repo) Save(ctx context.Context, p *domtaste.Profile) error {
	key := r.key(p.UserID())
	fields := map[string]string{
		fieldVector:    db.EncodeVector(p.Vector()),
		fieldUpdatedAt: strconv.FormatInt(p.UpdatedAt().UnixMilli(), 10),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Delete removes the profile.
func (r *Repo) Delete(ctx context.Context, userID int64) error {
	key := r.key(userID)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (r *Repo) key(userID int64) string {
	return r.prefix + "taste:" + strconv.FormatInt(userID, 10)
}
