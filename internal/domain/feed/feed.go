package feed

import (
	"container/heap"
	"sort"
	"time"
)

// Entry is one ranked item of a materialized feed.
type Entry struct {
	ItemID int64
	Score  float64
}

// Feed is a user's materialized top-K list, highest score first.
type Feed struct {
	UserID      int64
	Entries     []Entry
	GeneratedAt time.Time
}

// Less orders entries by score descending, then item id ascending.
func Less(a, b Entry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ItemID < b.ItemID
}

// Sort orders entries in place by Less.
func Sort(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return Less(entries[i], entries[j]) })
}

// TopK keeps the k best entries seen so far, one per item id.
// Pushing an item id again keeps the higher of the two scores.
type TopK struct {
	k     int
	h     worstFirst
	index map[int64]int
}

// NewTopK creates a bounded collector. k <= 0 keeps nothing.
func NewTopK(k int) *TopK {
	return &TopK{k: k, index: make(map[int64]int)}
}

// Push offers an entry.
func (t *TopK) Push(e Entry) {
	if t.k <= 0 {
		return
	}
	if pos, ok := t.index[e.ItemID]; ok {
		if Less(e, t.h.entries[pos]) {
			t.h.entries[pos] = e
			heap.Fix(&t.h, pos)
			t.reindex()
		}
		return
	}
	if t.h.Len() < t.k {
		heap.Push(&t.h, e)
		t.reindex()
		return
	}
	// root is the worst kept entry
	if Less(e, t.h.entries[0]) {
		delete(t.index, t.h.entries[0].ItemID)
		t.h.entries[0] = e
		heap.Fix(&t.h, 0)
		t.reindex()
	}
}

// Len returns the number of kept entries.
func (t *TopK) Len() int { return t.h.Len() }

// Result returns the kept entries best first. The collector stays usable.
func (t *TopK) Result() []Entry {
	out := make([]Entry, len(t.h.entries))
	copy(out, t.h.entries)
	Sort(out)
	return out
}

func (t *TopK) reindex() {
	clear(t.index)
	for i, e := range t.h.entries {
		t.index[e.ItemID] = i
	}
}

// worstFirst is a heap whose root is the lowest ranked entry.
type worstFirst struct {
	entries []Entry
}

func (h worstFirst) Len() int           { return len(h.entries) }
func (h worstFirst) Less(i, j int) bool { return Less(h.entries[j], h.entries[i]) }
func (h worstFirst) Swap(i, j int)      { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *worstFirst) Push(x any) { h.entries = append(h.entries, x.(Entry)) }

func (h *worstFirst) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}

// Truncate returns the k best of entries, deduplicated by item id.
func Truncate(entries []Entry, k int) []Entry {
	top := NewTopK(k)
	for _, e := range entries {
		top.Push(e)
	}
	return top.Result()
}

// Merge splices incoming into current: current rows whose item id appears in
// incoming are dropped, the union is ranked and cut to k.
func Merge(current, incoming []Entry, k int) []Entry {
	replaced := make(map[int64]struct{}, len(incoming))
	for _, e := range incoming {
		replaced[e.ItemID] = struct{}{}
	}
	top := NewTopK(k)
	for _, e := range current {
		if _, ok := replaced[e.ItemID]; ok {
			continue
		}
		top.Push(e)
	}
	for _, e := range incoming {
		top.Push(e)
	}
	return top.Result()
}

// Without returns entries minus the given item ids, order preserved.
func Without(entries []Entry, ids map[int64]struct{}) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, drop := ids[e.ItemID]; drop {
			continue
		}
		out = append(out, e)
	}
	return out
}
