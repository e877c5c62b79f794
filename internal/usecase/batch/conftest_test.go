package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/feedex/internal/db/memory"
	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	"github.com/kailas-cloud/feedex/internal/domain/scoring"
	"github.com/kailas-cloud/feedex/internal/keylock"
	feedrepo "github.com/kailas-cloud/feedex/internal/repository/feed"
	followrepo "github.com/kailas-cloud/feedex/internal/repository/follow"
	interrepo "github.com/kailas-cloud/feedex/internal/repository/interaction"
	itemrepo "github.com/kailas-cloud/feedex/internal/repository/item"
	tasterepo "github.com/kailas-cloud/feedex/internal/repository/taste"
	userrepo "github.com/kailas-cloud/feedex/internal/repository/user"
	"github.com/kailas-cloud/feedex/internal/usecase/candidate"
	feeduc "github.com/kailas-cloud/feedex/internal/usecase/feed"
)

const testPrefix = "feedex:"

// harness wires the batch service onto the in-memory store.
type harness struct {
	svc          *Service
	items        *itemrepo.Repo
	interactions *interrepo.Repo
	profiles     *tasterepo.Repo
	users        *userrepo.Repo
	feeds        *feeduc.Service
}

func newHarness(t *testing.T, dim int) *harness {
	t.Helper()
	s := memory.New()
	h := &harness{
		items:        itemrepo.New(s, testPrefix, 0),
		interactions: interrepo.New(s, testPrefix),
		profiles:     tasterepo.New(s, testPrefix),
		users:        userrepo.New(s, testPrefix),
	}
	if err := h.items.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	h.feeds = feeduc.New(feedrepo.New(s, testPrefix), h.items, 200)
	cfg := DefaultConfig(dim)
	h.svc = New(
		h.interactions, h.profiles, h.items, h.users,
		followrepo.New(s, testPrefix), candidate.New(h.items), h.feeds,
		keylock.New(), scoring.New(scoring.DefaultConfig()), cfg,
	)
	return h
}

func (h *harness) addItem(t *testing.T, id, creator int64, vec []float64, created time.Time) {
	t.Helper()
	it, err := domitem.New(id, creator, vec, created)
	if err != nil {
		t.Fatalf("domitem.New: %v", err)
	}
	if _, err := h.items.Upsert(context.Background(), &it, domitem.Metadata{}, nil); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func (h *harness) record(t *testing.T, user, item int64, typ dominter.Type, weight float64) {
	t.Helper()
	in := dominter.Interaction{UserID: user, ItemID: item, Type: typ, Weight: weight}
	if _, err := h.interactions.Append(context.Background(), in); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

// failingFeeds fails every replace.
type failingFeeds struct{ err error }

func (f failingFeeds) Replace(context.Context, int64, []domfeed.Entry) error { return f.err }

// mockLog is a func-field InteractionLog.
type mockLog struct {
	unprocessedFn func(ctx context.Context, limit int) ([]dominter.Interaction, error)
	markFn        func(ctx context.Context, ids []int64, at time.Time) error
}

func (m *mockLog) Unprocessed(ctx context.Context, limit int) ([]dominter.Interaction, error) {
	return m.unprocessedFn(ctx, limit)
}

func (m *mockLog) MarkProcessed(ctx context.Context, ids []int64, at time.Time) error {
	if m.markFn == nil {
		return nil
	}
	return m.markFn(ctx, ids, at)
}

func (m *mockLog) ResetUser(context.Context, int64) (int, error) { return 0, nil }

func (m *mockLog) ForUser(context.Context, int64) ([]dominter.Interaction, error) { return nil, nil }

func (m *mockLog) DefinitiveItems(context.Context, int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

var errBoom = errors.New("boom")
