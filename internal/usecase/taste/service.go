// Package taste serves read-only views of taste profiles.
package taste

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/feedex/internal/domain"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
	"github.com/kailas-cloud/feedex/internal/domain/vectorize"
)

// ProfileReader loads taste profiles.
type ProfileReader interface {
	Get(ctx context.Context, userID int64) (domtaste.Profile, error)
}

// Decoder turns a taste vector into named features.
type Decoder interface {
	Decode(userID int64, vec []float64) vectorize.Summary
}

// Service decodes profiles for inspection.
type Service struct {
	profiles ProfileReader
	decoder  Decoder
}

// New creates a taste summary service.
func New(profiles ProfileReader, decoder Decoder) *Service {
	return &Service{profiles: profiles, decoder: decoder}
}

// Summary returns the decoded profile or domain.ErrProfileNotFound.
func (s *Service) Summary(ctx context.Context, userID int64) (vectorize.Summary, error) {
	if userID <= 0 {
		return vectorize.Summary{}, domain.NewInvalidInput("user_id", "must be positive")
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return vectorize.Summary{}, fmt.Errorf("load profile %d: %w", userID, err)
	}
	return s.decoder.Decode(userID, p.Vector()), nil
}
