package item

import (
	"time"

	"github.com/kailas-cloud/feedex/internal/domain"
)

// Metadata is the typed feature bag of a catalog item.
// Unknown vocabulary terms are accepted and ignored by vectorization.
type Metadata struct {
	BPM         *float64 `json:"bpm,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Emotions    []string `json:"emotions,omitempty"`
	Instruments []string `json:"instruments,omitempty"`
	Kinds       []string `json:"kinds,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Item is a vectorized catalog entry (immutable value object).
type Item struct {
	id        int64
	creatorID int64
	vector    []float64
	createdAt time.Time
}

// New validates identifiers and creates an Item.
func New(id, creatorID int64, vec []float64, createdAt time.Time) (Item, error) {
	if id <= 0 {
		return Item{}, domain.NewInvalidInput("item_id", "is required")
	}
	if creatorID <= 0 {
		return Item{}, domain.NewInvalidInput("creator_id", "is required")
	}
	if len(vec) == 0 {
		return Item{}, domain.NewInvalidInput("vector", "is empty")
	}
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return Item{id: id, creatorID: creatorID, vector: vec, createdAt: createdAt}, nil
}

// Reconstruct creates an Item without validation (storage hydration).
func Reconstruct(id, creatorID int64, vec []float64, createdAt time.Time) Item {
	return Item{id: id, creatorID: creatorID, vector: vec, createdAt: createdAt}
}

// ID returns the item identifier.
func (i *Item) ID() int64 { return i.id }

// CreatorID returns the creator identifier.
func (i *Item) CreatorID() int64 { return i.creatorID }

// Vector returns the feature vector.
func (i *Item) Vector() []float64 { return i.vector }

// CreatedAt returns the creation time used for novelty.
func (i *Item) CreatedAt() time.Time { return i.createdAt }
