package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/kailas-cloud/feedex/internal/config"
	"github.com/kailas-cloud/feedex/internal/db/memory"
	"github.com/kailas-cloud/feedex/internal/engine"
	feeduc "github.com/kailas-cloud/feedex/internal/usecase/feed"
)

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.Config{
		HTTP:     config.HTTPConfig{Port: 8080},
		Database: config.DatabaseConfig{Driver: "memory"},
	}
	cfg.ApplyDefaults()
	e, err := engine.New(context.Background(), cfg, memory.New(), nil)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e
}

func newTestServer(e *engine.Engine) *Server {
	return NewServer(e.Feed, e.Taste, e.Search, e.Sync, e.Events, e.Batch, e.Health, nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func postEvent(t *testing.T, h http.Handler, name, payload string) {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/v1/events",
		fmt.Sprintf(`{"event_name":%q,"payload":%s}`, name, payload))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("POST %s: status %d body %s", name, rr.Code, rr.Body.String())
	}
}

// seed creates three items, newest last.
func seed(t *testing.T, h http.Handler) {
	t.Helper()
	postEvent(t, h, "sample.lifecycle.created",
		`{"sample_id":1,"creator_id":100,"created_at":"2026-01-01T10:00:00Z",`+
			`"metadata":{"bpm":128,"genres":["techno"],"title":"Warehouse loop"}}`)
	postEvent(t, h, "sample.lifecycle.created",
		`{"sample_id":2,"creator_id":100,"created_at":"2026-01-01T11:00:00Z",`+
			`"metadata":{"bpm":122,"genero":["house"],"title":"Deep chords"}}`)
	postEvent(t, h, "sample.lifecycle.created",
		`{"item_id":"3","creator_id":101,"created_at":"2026-01-01T12:00:00Z",`+
			`"metadata":{"bpm":90,"genres":["jazz"],"title":"Brush kit"}}`)
}

func TestGetFeed_RecencyFallback(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()
	seed(t, h)

	rr := do(t, h, http.MethodGet, "/v1/feed/42?per_page=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[FeedResponse](t, rr)
	if resp.Source != feeduc.SourceRecent {
		t.Errorf("source = %q, want %q", resp.Source, feeduc.SourceRecent)
	}
	if !slices.Equal(resp.ItemIDs, []int64{3, 2}) {
		t.Errorf("item_ids = %v, want [3 2]", resp.ItemIDs)
	}
	if resp.Total != 3 || resp.Page != 1 || resp.PerPage != 2 {
		t.Errorf("paging = %+v", resp)
	}
	if resp.GeneratedAt != nil {
		t.Errorf("generated_at = %v, want null for recency", resp.GeneratedAt)
	}
}

func TestGetFeed_MaterializedAfterRecalculate(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()
	seed(t, h)
	postEvent(t, h, "user.interaction.play", `{"user_id":42,"item_id":1}`)

	rr := do(t, h, http.MethodPost, "/v1/admin/users/42/recalculate?force=true", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("recalculate status = %d, body %s", rr.Code, rr.Body.String())
	}
	rep := decode[RecalculateResponse](t, rr)
	if !rep.Forced || rep.UserID != 42 || rep.Folded != 1 {
		t.Errorf("report = %+v", rep)
	}

	resp := decode[FeedResponse](t, do(t, h, http.MethodGet, "/v1/feed/42", ""))
	if resp.Source != feeduc.SourceMaterialized {
		t.Errorf("source = %q, want materialized", resp.Source)
	}
	if resp.GeneratedAt == nil {
		t.Error("generated_at missing")
	}
	if len(resp.ItemIDs) == 0 {
		t.Error("materialized feed is empty")
	}
}

func TestGetFeed_BadParams(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()

	tests := []struct {
		target string
		code   ErrorCode
	}{
		{"/v1/feed/abc", CodeBadRequest},
		{"/v1/feed/0", CodeValidation},
		{"/v1/feed/1?page=x", CodeBadRequest},
		{"/v1/feed/1?per_page=1.5", CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, tt.target, "")
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if got := decode[ErrorResponse](t, rr); got.Code != tt.code {
				t.Errorf("code = %s, want %s", got.Code, tt.code)
			}
		})
	}
}

func TestGetTaste(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()

	rr := do(t, h, http.MethodGet, "/v1/taste/7", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown user: status = %d, want 404", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeProfileNotFound {
		t.Errorf("code = %s", got.Code)
	}

	postEvent(t, h, "user.lifecycle.created", `{"user_id":7}`)
	rr = do(t, h, http.MethodGet, "/v1/taste/7", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var summary struct {
		UserID   int64                         `json:"user_id"`
		Features map[string]map[string]float64 `json:"features"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.UserID != 7 {
		t.Errorf("user_id = %d", summary.UserID)
	}
	if _, ok := summary.Features["genres"]; !ok {
		t.Errorf("features = %v, want genres section", summary.Features)
	}
}

func TestSearch(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()
	seed(t, h)

	rr := do(t, h, http.MethodGet, "/v1/search?q=techno&user_id=42", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	resp := decode[SearchResponse](t, rr)
	if resp.Total == 0 || resp.Results[0].ItemID != 1 {
		t.Errorf("results = %+v, want item 1 first", resp.Results)
	}

	resp = decode[SearchResponse](t, do(t, h, http.MethodGet, "/v1/search?q=", ""))
	if resp.Total != 0 || len(resp.Results) != 0 {
		t.Errorf("blank query = %+v, want empty", resp)
	}

	if rr := do(t, h, http.MethodGet, "/v1/search?q=x&user_id=me", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad user_id: status = %d, want 400", rr.Code)
	}
}

func TestSync(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()
	seed(t, h)

	rr := do(t, h, http.MethodGet, "/v1/sync/items/checksum", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var sum struct {
		Checksum *string `json:"checksum"`
		Count    int     `json:"count"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.Count != 3 || sum.Checksum == nil {
		t.Errorf("checksum = %+v", sum)
	}

	ids := decode[SyncIDsResponse](t, do(t, h, http.MethodGet, "/v1/sync/likes/ids", ""))
	if ids.Count != 0 || ids.IDs == nil {
		t.Errorf("likes ids = %+v, want empty non-null list", ids)
	}

	rr = do(t, h, http.MethodGet, "/v1/sync/playlists/ids", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown type: status = %d, want 400", rr.Code)
	}
}

func TestPostEvent(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()

	rr := do(t, h, http.MethodPost, "/v1/events", `{"event_name":"user.interaction.bookmark","payload":{}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown event: status = %d", rr.Code)
	}
	if got := decode[EventResponse](t, rr); got.Routed {
		t.Error("unknown event reported as routed")
	}

	rr = do(t, h, http.MethodPost, "/v1/events", `{"event_name":"like","payload":{"user_id":1}}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid payload: status = %d, want 400", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeValidation || !strings.Contains(got.Message, "item_id") {
		t.Errorf("error = %+v", got)
	}

	rr = do(t, h, http.MethodPost, "/v1/events", `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()

	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "ok" || resp.Checks["database"] != "ok" {
		t.Errorf("health = %+v", resp)
	}
}

func TestAuthOnRouter(t *testing.T) {
	h := newTestServer(newTestEngine(t)).WithAPIKeys([]string{"secret"}).Handler()

	if rr := do(t, h, http.MethodGet, "/v1/feed/1", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/health", ""); rr.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/feed/1", http.NoBody)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("with key: status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

type failingFeeds struct {
	err   error
	panic bool
}

func (f failingFeeds) Get(context.Context, int64, int, int) (feeduc.Page, error) {
	if f.panic {
		panic("boom")
	}
	return feeduc.Page{}, f.err
}

func TestInternalErrorsAreGeneric(t *testing.T) {
	e := newTestEngine(t)
	for name, feeds := range map[string]failingFeeds{
		"error": {err: errors.New("dial tcp 10.0.0.5:6379: connection refused")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			h := NewServer(feeds, e.Taste, e.Search, e.Sync, e.Events, e.Batch, e.Health, nil).Handler()

			rr := do(t, h, http.MethodGet, "/v1/feed/1", "")
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rr.Code)
			}
			got := decode[ErrorResponse](t, rr)
			if got.Code != CodeInternal || got.Message != "internal error" {
				t.Errorf("body = %+v", got)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(newTestEngine(t)).Handler()
	rr := do(t, h, http.MethodGet, "/v2/feed/1", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
