package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a caller error such as a missing mandatory identifier.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrItemNotFound signals a missing item vector.
	ErrItemNotFound = errors.New("item not found")
	// ErrProfileNotFound signals a missing taste profile.
	ErrProfileNotFound = errors.New("taste profile not found")
	// ErrDimensionMismatch signals vectors of different length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrUnknownEvent signals an event name with no route.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidSyncType signals an unsupported sync resource type.
	ErrInvalidSyncType = errors.New("invalid sync type")
)

// InvalidInputError wraps ErrInvalidInput with the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidInput.Error(), e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// NewInvalidInput creates an input error for field.
func NewInvalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
