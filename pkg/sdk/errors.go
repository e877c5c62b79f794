package feedex

import "github.com/kailas-cloud/feedex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput    = domain.ErrInvalidInput
	ErrNotFound        = domain.ErrNotFound
	ErrItemNotFound    = domain.ErrItemNotFound
	ErrProfileNotFound = domain.ErrProfileNotFound
	ErrInvalidSyncType = domain.ErrInvalidSyncType
)
