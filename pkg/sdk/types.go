package feedex

import "time"

// SyncType names a synchronized collection.
type SyncType string

// Sync collections.
const (
	SyncItems   SyncType = "items"
	SyncUsers   SyncType = "users"
	SyncLikes   SyncType = "likes"
	SyncFollows SyncType = "follows"
)

// Item is a catalog entry with the metadata the vectorizer reads.
type Item struct {
	ID          int64
	CreatorID   int64
	BPM         *float64
	Genres      []string
	Emotions    []string
	Instruments []string
	Kinds       []string
	Tags        []string
	Title       string
	Description string
	// CreatedAt defaults to now.
	CreatedAt time.Time
}

// UpdateResult reports what a quick update changed in the user's feed.
type UpdateResult struct {
	Injected int
	Removed  int
	Nudged   bool
	Fallback bool
}

// FeedPage is one page of a user's feed.
type FeedPage struct {
	UserID      int64
	ItemIDs     []int64
	Page        int
	PerPage     int
	Total       int
	Source      string // "materialized" or "recent"
	GeneratedAt time.Time
}

// TasteSummary is a decoded taste profile.
type TasteSummary struct {
	UserID        int64
	BPMPreference *float64
	// Features maps a vocabulary (genres, emotions, ...) to term weights.
	Features   map[string]map[string]float64
	TagBuckets map[int]float64
}

// SearchHit is a single ranked search result.
type SearchHit struct {
	ItemID int64
	Score  float64
}

// SearchPage is one page of search results.
type SearchPage struct {
	Hits    []SearchHit
	Page    int
	PerPage int
	Total   int
}

// Checksum fingerprints a synchronized collection. Checksum is empty when
// the collection is.
type Checksum struct {
	Checksum string
	Count    int
}

// CycleReport summarizes one batch cycle.
type CycleReport struct {
	CycleID         string
	Idle            bool
	Folded          int
	Skipped         int
	Users           int
	FeedsRecomputed int
	Duration        time.Duration
}

// RecalcReport summarizes a single-user recalculation.
type RecalcReport struct {
	UserID int64
	Forced bool
	Reset  int
	Folded int
}
