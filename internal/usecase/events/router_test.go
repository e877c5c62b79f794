package events

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/feedex/internal/domain"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	"github.com/kailas-cloud/feedex/internal/usecase/catalog"
	"github.com/kailas-cloud/feedex/internal/usecase/quickupdate"
)

// --- Mocks ---

type call struct {
	op   string
	a, b int64
	typ  dominter.Type
}

type mockQuick struct {
	calls []call
	err   error
}

func (m *mockQuick) pair(op string, a, b int64) (quickupdate.Result, error) {
	m.calls = append(m.calls, call{op: op, a: a, b: b})
	return quickupdate.Result{}, m.err
}

func (m *mockQuick) Like(_ context.Context, u, i int64) (quickupdate.Result, error) {
	return m.pair("like", u, i)
}

func (m *mockQuick) Comment(_ context.Context, u, i int64) (quickupdate.Result, error) {
	return m.pair("comment", u, i)
}

func (m *mockQuick) Unlike(_ context.Context, u, i int64) (quickupdate.Result, error) {
	return m.pair("unlike", u, i)
}

func (m *mockQuick) Follow(_ context.Context, a, b int64) (quickupdate.Result, error) {
	return m.pair("follow", a, b)
}

func (m *mockQuick) Unfollow(_ context.Context, a, b int64) (quickupdate.Result, error) {
	return m.pair("unfollow", a, b)
}

func (m *mockQuick) Record(_ context.Context, u, i int64, typ dominter.Type) error {
	m.calls = append(m.calls, call{op: "record", a: u, b: i, typ: typ})
	return m.err
}

type mockCatalog struct {
	upserted []catalog.ItemInput
	deleted  []int64
	created  []int64
	removed  []int64
}

func (m *mockCatalog) UpsertItem(_ context.Context, in catalog.ItemInput) (bool, error) {
	m.upserted = append(m.upserted, in)
	return true, nil
}

func (m *mockCatalog) DeleteItem(_ context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockCatalog) CreateUser(_ context.Context, id int64) error {
	m.created = append(m.created, id)
	return nil
}

func (m *mockCatalog) DeleteUser(_ context.Context, id int64) error {
	m.removed = append(m.removed, id)
	return nil
}

func newRouter() (*Router, *mockQuick, *mockCatalog) {
	q, c := &mockQuick{}, &mockCatalog{}
	return New(q, c), q, c
}

// --- Tests ---

func TestRoute_Interactions(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		want    call
	}{
		{"like", InteractionLike, `{"user_id":1,"item_id":2}`, call{op: "like", a: 1, b: 2}},
		{"like alias", "like", `{"user_id":1,"item_id":2}`, call{op: "like", a: 1, b: 2}},
		{"sample id alias", InteractionLike, `{"user_id":1,"sample_id":7}`, call{op: "like", a: 1, b: 7}},
		{"string ids", InteractionComment, `{"user_id":"3","item_id":"4"}`, call{op: "comment", a: 3, b: 4}},
		{"unlike", "unlike", `{"user_id":1,"item_id":2}`, call{op: "unlike", a: 1, b: 2}},
		{"follow", InteractionFollow, `{"user_id":1,"followed_user_id":9}`, call{op: "follow", a: 1, b: 9}},
		{"unfollow", "unfollow", `{"user_id":1,"unfollowed_user_id":9}`, call{op: "unfollow", a: 1, b: 9}},
		{"dislike recorded", InteractionDislike, `{"user_id":1,"item_id":2}`,
			call{op: "record", a: 1, b: 2, typ: dominter.Dislike}},
		{"play recorded", InteractionPlay, `{"user_id":1,"sample_id":2}`,
			call{op: "record", a: 1, b: 2, typ: dominter.Play}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, q, _ := newRouter()
			handled, err := r.Route(context.Background(), tt.event, []byte(tt.payload))
			if err != nil || !handled {
				t.Fatalf("Route = %v, %v", handled, err)
			}
			if len(q.calls) != 1 || q.calls[0] != tt.want {
				t.Errorf("calls = %+v, want [%+v]", q.calls, tt.want)
			}
		})
	}
}

func TestRoute_UnknownIgnored(t *testing.T) {
	r, q, _ := newRouter()
	handled, err := r.Route(context.Background(), "user.interaction.wave", []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handled {
		t.Error("unknown event must not be handled")
	}
	if len(q.calls) != 0 {
		t.Errorf("calls = %+v", q.calls)
	}
	if r.Known("user.interaction.wave") || !r.Known("like") {
		t.Error("Known mismatch")
	}
}

func TestRoute_InvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
	}{
		{"missing item", InteractionLike, `{"user_id":1}`},
		{"missing user", InteractionLike, `{"item_id":1}`},
		{"negative id", InteractionUnlike, `{"user_id":-1,"item_id":1}`},
		{"malformed json", InteractionLike, `{"user_id":`},
		{"non numeric id", InteractionLike, `{"user_id":"abc","item_id":1}`},
		{"follow target missing", InteractionFollow, `{"user_id":1}`},
		{"unfollow uses its own key", InteractionUnfollow, `{"user_id":1,"followed_user_id":0}`},
		{"item id missing", SampleDeleted, `{}`},
		{"user missing", UserCreated, `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, q, _ := newRouter()
			_, err := r.Route(context.Background(), tt.event, []byte(tt.payload))
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if len(q.calls) != 0 {
				t.Errorf("no engine call expected, got %+v", q.calls)
			}
		})
	}
}

func TestRoute_FieldNameInError(t *testing.T) {
	r, _, _ := newRouter()
	_, err := r.Route(context.Background(), InteractionLike, []byte(`{"item_id":1}`))
	var ie *domain.InvalidInputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if ie.Field != "user_id" {
		t.Errorf("Field = %q, want user_id", ie.Field)
	}
}

func TestRoute_EngineErrorPropagates(t *testing.T) {
	r, q, _ := newRouter()
	q.err = errors.New("store down")
	handled, err := r.Route(context.Background(), InteractionLike, []byte(`{"user_id":1,"item_id":2}`))
	if !handled || err == nil {
		t.Fatalf("Route = %v, %v; want handled with error", handled, err)
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		t.Error("engine failure must not look like bad input")
	}
}

func TestRoute_ItemLifecycle(t *testing.T) {
	r, _, c := newRouter()
	ctx := context.Background()
	payload := `{"sample_id":5,"creator_id":9,"created_at":"2026-01-02T03:04:05Z",
		"metadata":{"bpm":120,"genero":["techno"],"genres":["house"],"emocion_es":["calm"],
		"instrumentos":["piano"],"tipo":["loop"],"tags":["dark"],"title":"Night"}}`

	if _, err := r.Route(ctx, SampleCreated, []byte(payload)); err != nil {
		t.Fatalf("created: %v", err)
	}
	if _, err := r.Route(ctx, SampleUpdated, []byte(`{"item_id":5,"creator_id":9,"metadata":{}}`)); err != nil {
		t.Fatalf("updated: %v", err)
	}
	if _, err := r.Route(ctx, SampleDeleted, []byte(`{"sample_id":5}`)); err != nil {
		t.Fatalf("deleted: %v", err)
	}

	if len(c.upserted) != 2 {
		t.Fatalf("upserted = %d, want 2", len(c.upserted))
	}
	in := c.upserted[0]
	if in.ItemID != 5 || in.CreatorID != 9 {
		t.Errorf("ids = %d/%d", in.ItemID, in.CreatorID)
	}
	if in.CreatedAt.Year() != 2026 {
		t.Errorf("CreatedAt = %v", in.CreatedAt)
	}
	md := in.Metadata
	if md.BPM == nil || *md.BPM != 120 {
		t.Errorf("BPM = %v", md.BPM)
	}
	if len(md.Genres) != 2 || md.Genres[0] != "house" || md.Genres[1] != "techno" {
		t.Errorf("Genres = %v", md.Genres)
	}
	if len(md.Emotions) != 1 || len(md.Instruments) != 1 || len(md.Kinds) != 1 || len(md.Tags) != 1 {
		t.Errorf("metadata = %+v", md)
	}
	if md.Title != "Night" {
		t.Errorf("Title = %q", md.Title)
	}
	if len(c.deleted) != 1 || c.deleted[0] != 5 {
		t.Errorf("deleted = %v", c.deleted)
	}
}

func TestRoute_UserLifecycle(t *testing.T) {
	r, _, c := newRouter()
	ctx := context.Background()
	if _, err := r.Route(ctx, UserCreated, []byte(`{"user_id":3}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Route(ctx, UserDeleted, []byte(`{"user_id":3}`)); err != nil {
		t.Fatal(err)
	}
	if len(c.created) != 1 || len(c.removed) != 1 {
		t.Errorf("created=%v removed=%v", c.created, c.removed)
	}
}

func TestRouteEnvelope(t *testing.T) {
	r, q, _ := newRouter()
	ctx := context.Background()

	handled, err := r.RouteEnvelope(ctx, []byte(`{"event_name":"like","payload":{"user_id":1,"item_id":2}}`))
	if err != nil || !handled {
		t.Fatalf("RouteEnvelope = %v, %v", handled, err)
	}
	if len(q.calls) != 1 {
		t.Errorf("calls = %+v", q.calls)
	}

	if _, err := r.RouteEnvelope(ctx, []byte(`{"payload":{}}`)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing event_name: got %v", err)
	}
	if _, err := r.RouteEnvelope(ctx, []byte(`not json`)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("garbage: got %v", err)
	}
}
