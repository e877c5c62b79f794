package chi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/feedex/internal/logger"
	"github.com/kailas-cloud/feedex/internal/metrics"
	healthuc "github.com/kailas-cloud/feedex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/feedex/internal/usecase/search"
	syncuc "github.com/kailas-cloud/feedex/internal/usecase/sync"
)

const maxEventBytes = 1 << 20

// Server exposes the read side of the engine plus the event and admin hooks.
type Server struct {
	feeds   FeedReader
	taste   TasteReader
	search  Searcher
	sync    SyncReader
	events  EventRouter
	recalc  Recalculator
	health  HealthChecker
	logger  *zap.Logger
	apiKeys []string
}

// NewServer creates an HTTP API server.
func NewServer(
	feeds FeedReader,
	taste TasteReader,
	search Searcher,
	sync SyncReader,
	events EventRouter,
	recalc Recalculator,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		feeds: feeds, taste: taste, search: search, sync: sync,
		events: events, recalc: recalc, health: health, logger: logger,
	}
}

// WithAPIKeys enables bearer authentication on every route but /health and /metrics.
func (s *Server) WithAPIKeys(keys []string) *Server {
	s.apiKeys = keys
	return s
}

// Handler builds the chi router with the full middleware chain.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r gochi.Router) {
		r.Get("/feed/{user_id}", s.GetFeed)
		r.Get("/taste/{user_id}", s.GetTaste)
		r.Get("/search", s.Search)
		r.Get("/sync/{type}/checksum", s.SyncChecksum)
		r.Get("/sync/{type}/ids", s.SyncIDs)
		r.Post("/events", s.PostEvent)
		r.Post("/admin/users/{user_id}/recalculate", s.Recalculate)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// GetFeed handles GET /v1/feed/{user_id}.
func (s *Server) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	page, perPage, ok := s.paging(w, r)
	if !ok {
		return
	}

	p, err := s.feeds.Get(r.Context(), userID, page, perPage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := FeedResponse{
		UserID:  p.UserID,
		ItemIDs: p.ItemIDs,
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   p.Total,
		Source:  p.Source,
	}
	if !p.GeneratedAt.IsZero() {
		resp.GeneratedAt = &p.GeneratedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTaste handles GET /v1/taste/{user_id}.
func (s *Server) GetTaste(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	summary, err := s.taste.Summary(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Search handles GET /v1/search?q=&user_id=&page=&per_page=.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := searchuc.Query{Term: query.Get("q")}

	var userID *int64
	if err := runtime.BindQueryParameter("form", true, false, "user_id", query, &userID); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid parameter user_id: %v", err))
		return
	}
	if userID != nil {
		q.UserID = *userID
	}
	var ok bool
	if q.Page, q.PerPage, ok = s.paging(w, r); !ok {
		return
	}

	res, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SearchItem, len(res.Results))
	for i, hit := range res.Results {
		items[i] = SearchItem{ItemID: hit.ItemID, Score: hit.Score}
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Query:   q.Term,
		Results: items,
		Page:    res.Page,
		PerPage: res.PerPage,
		Total:   res.Total,
	})
}

// SyncChecksum handles GET /v1/sync/{type}/checksum.
func (s *Server) SyncChecksum(w http.ResponseWriter, r *http.Request) {
	typ, err := syncuc.ParseType(gochi.URLParam(r, "type"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	sum, err := s.sync.Checksum(r.Context(), typ)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// SyncIDs handles GET /v1/sync/{type}/ids.
func (s *Server) SyncIDs(w http.ResponseWriter, r *http.Request) {
	typ, err := syncuc.ParseType(gochi.URLParam(r, "type"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	ids, err := s.sync.IDs(r.Context(), typ)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, SyncIDsResponse{Type: string(typ), IDs: ids, Count: len(ids)})
}

// PostEvent handles POST /v1/events. The event is routed synchronously.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	routed, err := s.events.RouteEnvelope(r.Context(), body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	status := http.StatusAccepted
	if !routed {
		status = http.StatusOK
	}
	writeJSON(w, status, EventResponse{Routed: routed})
}

// Recalculate handles POST /v1/admin/users/{user_id}/recalculate?force=.
func (s *Server) Recalculate(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.pathUserID(w, r)
	if !ok {
		return
	}
	var force bool
	if err := runtime.BindQueryParameter("form", true, false, "force", r.URL.Query(), &force); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid parameter force: %v", err))
		return
	}

	rep, err := s.recalc.RecalculateUser(r.Context(), userID, force)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{
		UserID: rep.UserID,
		Forced: rep.Forced,
		Reset:  rep.Reset,
		Folded: rep.Folded,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Pending: report.Pending,
	})
}

func (s *Server) pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var userID int64
	err := runtime.BindStyledParameterWithOptions("simple", "user_id", gochi.URLParam(r, "user_id"), &userID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid parameter user_id: %v", err))
		return 0, false
	}
	if userID <= 0 {
		writeError(w, http.StatusBadRequest, CodeValidation, "user_id must be positive")
		return 0, false
	}
	return userID, true
}

// paging binds page and per_page. Zero means "use the default".
func (s *Server) paging(w http.ResponseWriter, r *http.Request) (page, perPage int, ok bool) {
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &page); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid parameter page: %v", err))
		return 0, 0, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "per_page", query, &perPage); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid parameter per_page: %v", err))
		return 0, 0, false
	}
	return page, perPage, true
}

// handleDomainError maps sentinels to status codes. Anything else is a
// generic 500 that never carries internal detail.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range errorHandlers {
		if h(w, err) {
			log.Warn("request rejected", zap.Error(err))
			return
		}
	}
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		log.Warn("request cancelled", zap.Error(err))
	} else {
		log.Error("internal error", zap.Error(err))
	}
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
