package chi

import (
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/kailas-cloud/feedex/internal/domain"
)

// ErrorCode is a machine-readable error code.
type ErrorCode string

// Error codes returned in ErrorResponse.
const (
	CodeBadRequest      ErrorCode = "bad_request"
	CodeUnauthorized    ErrorCode = "unauthorized"
	CodeValidation      ErrorCode = "validation_failed"
	CodeNotFound        ErrorCode = "not_found"
	CodeProfileNotFound ErrorCode = "profile_not_found"
	CodeInternal        ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FeedResponse is one page of a feed.
type FeedResponse struct {
	UserID      int64      `json:"user_id"`
	GeneratedAt *time.Time `json:"generated_at"`
	ItemIDs     []int64    `json:"item_ids"`
	Page        int        `json:"page"`
	PerPage     int        `json:"per_page"`
	Total       int        `json:"total"`
	Source      string     `json:"source"`
}

// SearchResponse is one page of search results.
type SearchResponse struct {
	Query   string       `json:"query"`
	Results []SearchItem `json:"results"`
	Page    int          `json:"page"`
	PerPage int          `json:"per_page"`
	Total   int          `json:"total"`
}

// SearchItem is one ranked search hit.
type SearchItem struct {
	ItemID int64   `json:"item_id"`
	Score  float64 `json:"score"`
}

// SyncIDsResponse lists raw ids of a synchronized collection.
type SyncIDsResponse struct {
	Type  string   `json:"type"`
	IDs   []string `json:"ids"`
	Count int      `json:"count"`
}

// EventResponse acknowledges a routed event.
type EventResponse struct {
	Routed bool `json:"routed"`
}

// RecalculateResponse reports a single-user recalculation.
type RecalculateResponse struct {
	UserID int64 `json:"user_id"`
	Forced bool  `json:"forced"`
	Reset  int   `json:"reset"`
	Folded int   `json:"folded"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Pending int64             `json:"pending_interactions"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

var errorHandlers = []errorHandler{
	invalidInputHandler,
	sentinelHandler(domain.ErrInvalidSyncType, http.StatusBadRequest, CodeBadRequest),
	sentinelHandler(domain.ErrProfileNotFound, http.StatusNotFound, CodeProfileNotFound),
	sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, CodeNotFound),
	sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

// invalidInputHandler reports the offending field, which is caller data.
func invalidInputHandler(w http.ResponseWriter, err error) bool {
	if !errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	msg := domain.ErrInvalidInput.Error()
	var iie *domain.InvalidInputError
	if errors.As(err, &iie) {
		msg = iie.Error()
	}
	writeError(w, http.StatusBadRequest, CodeValidation, msg)
	return true
}
