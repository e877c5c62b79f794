package interaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/feedex/internal/domain"
)

// Type is a closed set of interaction kinds.
type Type string

// Known interaction types.
const (
	Like       Type = "like"
	Dislike    Type = "dislike"
	Share      Type = "share"
	Comment    Type = "comment"
	AddToBoard Type = "add_to_board"
	Follow     Type = "follow"
	Play       Type = "play"
	Skip       Type = "skip"
)

var known = map[Type]bool{
	Like: true, Dislike: true, Share: true, Comment: true,
	AddToBoard: true, Follow: true, Play: true, Skip: true,
}

// ParseType validates a type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !known[t] {
		return "", fmt.Errorf("interaction type %q: %w", s, domain.ErrInvalidInput)
	}
	return t, nil
}

// DefaultWeights returns the stock type -> weight table.
func DefaultWeights() map[Type]float64 {
	return map[Type]float64{
		Like:       1.0,
		Share:      0.8,
		Comment:    0.8,
		AddToBoard: 0.9,
		Follow:     0.6,
		Play:       0.2,
		Skip:       -0.3,
		Dislike:    -1.0,
	}
}

// IsDefinitive reports whether the type persistently dampens an item for its user.
// Only dislike qualifies; liked items may resurface at normal rank.
func IsDefinitive(t Type) bool {
	return t == Dislike
}

// Interaction is one entry of the append-only interaction log.
type Interaction struct {
	ID          int64
	UserID      int64
	ItemID      int64
	Type        Type
	Weight      float64
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Processed reports whether the batch path already folded this entry.
func (i *Interaction) Processed() bool { return i.ProcessedAt != nil }
