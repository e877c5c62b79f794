package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/feedex/internal/domain"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	"github.com/kailas-cloud/feedex/internal/domain/scoring"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
	itemrepo "github.com/kailas-cloud/feedex/internal/repository/item"
)

// --- Mocks ---

type mockText struct {
	hits      []itemrepo.TextHit
	items     map[int64]domitem.Item
	err       error
	lastLimit int
	called    bool
}

func (m *mockText) SearchText(_ context.Context, _ string, limit int) ([]itemrepo.TextHit, error) {
	m.called = true
	m.lastLimit = limit
	return m.hits, m.err
}

func (m *mockText) GetMany(_ context.Context, ids []int64) ([]domitem.Item, error) {
	var out []domitem.Item
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type mockProfiles struct {
	profile domtaste.Profile
	err     error
}

func (m *mockProfiles) Get(context.Context, int64) (domtaste.Profile, error) { return m.profile, m.err }

type mockDefs struct{ set map[int64]struct{} }

func (m *mockDefs) DefinitiveItems(context.Context, int64) (map[int64]struct{}, error) {
	return m.set, nil
}

type mockFollows struct{ set map[int64]struct{} }

func (m *mockFollows) Following(context.Context, int64) (map[int64]struct{}, error) {
	return m.set, nil
}

var fixedNow = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func catalog() map[int64]domitem.Item {
	old := fixedNow.Add(-1000 * time.Hour)
	return map[int64]domitem.Item{
		1: domitem.Reconstruct(1, 10, []float64{1, 0}, old),
		2: domitem.Reconstruct(2, 11, []float64{0, 1}, old),
		3: domitem.Reconstruct(3, 12, []float64{0, 1}, old),
	}
}

func newService(text *mockText, profiles *mockProfiles) *Service {
	cfg := DefaultConfig(2)
	return New(text, profiles, &mockDefs{}, &mockFollows{}, scoring.New(scoring.DefaultConfig()), cfg).
		WithClock(func() time.Time { return fixedNow })
}

// --- Tests ---

func TestSearch_BlankTerm(t *testing.T) {
	text := &mockText{}
	page, err := newService(text, &mockProfiles{}).Search(context.Background(), Query{Term: "   ", Page: 0, PerPage: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text.called {
		t.Error("blank term must not hit the index")
	}
	if page.Page != 1 || page.PerPage != 100 || page.Total != 0 || page.Results == nil {
		t.Errorf("page = %+v", page)
	}
}

func TestSearch_PersonalizationReordersTextRank(t *testing.T) {
	text := &mockText{
		hits: []itemrepo.TextHit{
			{ItemID: 1, Score: 4},
			{ItemID: 2, Score: 3.8},
		},
		items: catalog(),
	}
	profiles := &mockProfiles{profile: domtaste.Reconstruct(5, []float64{0, 1}, fixedNow)}

	page, err := newService(text, profiles).Search(context.Background(), Query{Term: "loop", UserID: 5, Page: 1, PerPage: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 2 || len(page.Results) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Results[0].ItemID != 2 {
		t.Errorf("results = %+v, want taste match first", page.Results)
	}
	if text.lastLimit != 500 {
		t.Errorf("candidate limit = %d, want 500", text.lastLimit)
	}
}

func TestSearch_AnonymousUsesTextOrder(t *testing.T) {
	text := &mockText{
		hits:  []itemrepo.TextHit{{ItemID: 2, Score: 1}, {ItemID: 1, Score: 4}},
		items: catalog(),
	}
	page, err := newService(text, &mockProfiles{err: domain.ErrProfileNotFound}).
		Search(context.Background(), Query{Term: "x", PerPage: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Results[0].ItemID != 1 {
		t.Errorf("results = %+v", page.Results)
	}
}

func TestSearch_Pagination(t *testing.T) {
	text := &mockText{
		hits:  []itemrepo.TextHit{{ItemID: 1, Score: 3}, {ItemID: 2, Score: 2}, {ItemID: 3, Score: 1}},
		items: catalog(),
	}
	svc := newService(text, &mockProfiles{err: domain.ErrProfileNotFound})

	page, _ := svc.Search(context.Background(), Query{Term: "x", Page: 2, PerPage: 2})
	if page.Total != 3 || len(page.Results) != 1 || page.Results[0].ItemID != 3 {
		t.Errorf("page 2 = %+v", page)
	}
	page, _ = svc.Search(context.Background(), Query{Term: "x", Page: 5, PerPage: 2})
	if len(page.Results) != 0 || page.Total != 3 {
		t.Errorf("page 5 = %+v", page)
	}
}

func TestSearch_IndexError(t *testing.T) {
	text := &mockText{err: errors.New("index down")}
	_, err := newService(text, &mockProfiles{}).Search(context.Background(), Query{Term: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestSearch_ProfileError(t *testing.T) {
	text := &mockText{hits: []itemrepo.TextHit{{ItemID: 1, Score: 1}}, items: catalog()}
	_, err := newService(text, &mockProfiles{err: errors.New("storage down")}).
		Search(context.Background(), Query{Term: "x", UserID: 5})
	if err == nil {
		t.Fatal("expected error")
	}
}
