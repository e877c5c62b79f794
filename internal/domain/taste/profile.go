package taste

import (
	"time"

	"github.com/kailas-cloud/feedex/internal/domain/vector"
)

// Profile is a user's taste vector in item feature space.
type Profile struct {
	userID    int64
	vector    []float64
	updatedAt time.Time
}

// Neutral creates an all-zero profile of dimension d.
func Neutral(userID int64, d int) Profile {
	return Profile{userID: userID, vector: vector.Zero(d), updatedAt: time.Now().UTC()}
}

// Reconstruct creates a Profile without validation (storage hydration).
func Reconstruct(userID int64, vec []float64, updatedAt time.Time) Profile {
	return Profile{userID: userID, vector: vec, updatedAt: updatedAt}
}

// UserID returns the owner.
func (p *Profile) UserID() int64 { return p.userID }

// Vector returns the taste vector.
func (p *Profile) Vector() []float64 { return p.vector }

// UpdatedAt returns the last modification time.
func (p *Profile) UpdatedAt() time.Time { return p.updatedAt }

// WithVector returns a copy carrying vec and a fresh timestamp.
func (p Profile) WithVector(vec []float64) Profile {
	return Profile{userID: p.userID, vector: vec, updatedAt: time.Now().UTC()}
}
