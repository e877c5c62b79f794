// Package memory is an in-process db.Store used for local runs and tests.
//
// It mirrors the Redis semantics the repositories rely on: one key namespace
// shared by hashes, strings, sets and sorted sets; sorted sets ordered by
// score then member; ZReplace atomic with respect to every other call.
package memory

import (
	"context"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kailas-cloud/feedex/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// Store keeps every structure behind a single RWMutex.
type Store struct {
	mu      sync.RWMutex
	hashes  map[string]map[string]string
	strings map[string][]byte
	sets    map[string]map[string]struct{}
	zsets   map[string]map[string]float64
	indexes map[string]*db.IndexDefinition
}

// New creates an empty store.
func New() *Store {
	return &Store{
		hashes:  make(map[string]map[string]string),
		strings: make(map[string][]byte),
		sets:    make(map[string]map[string]struct{}),
		zsets:   make(map[string]map[string]float64),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// --- hashes ---

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hsetLocked(key, fields)
	return nil
}

// HSetMulti stores multiple hashes.
func (s *Store) HSetMulti(_ context.Context, items []db.HashSetItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.hsetLocked(it.Key, it.Fields)
	}
	return nil
}

func (s *Store) hsetLocked(key string, fields map[string]string) {
	if len(fields) == 0 {
		return
	}
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

// HGetAll returns a copy of the hash; a missing key yields an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyHash(s.hashes[key]), nil
}

// HGetAllMulti returns copies of several hashes in key order.
func (s *Store) HGetAllMulti(_ context.Context, keys []string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]map[string]string, len(keys))
	for i, k := range keys {
		out[i] = copyHash(s.hashes[k])
	}
	return out, nil
}

func copyHash(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Del removes keys of any type.
func (s *Store) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.hashes, k)
		delete(s.strings, k)
		delete(s.sets, k)
		delete(s.zsets, k)
	}
	return nil
}

// ExistsMulti reports for each key whether a key of any type exists.
func (s *Store) ExistsMulti(_ context.Context, keys []string) ([]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bool, len(keys))
	for i, k := range keys {
		out[i] = s.existsLocked(k)
	}
	return out, nil
}

func (s *Store) existsLocked(key string) bool {
	if _, ok := s.hashes[key]; ok {
		return true
	}
	if _, ok := s.strings[key]; ok {
		return true
	}
	if _, ok := s.sets[key]; ok {
		return true
	}
	_, ok := s.zsets[key]
	return ok
}

// --- strings ---

// Get returns db.ErrKeyNotFound for a missing key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.strings[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a value.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strings[key] = append([]byte(nil), value...)
	return nil
}

// SetNX stores value only if key holds no string yet.
func (s *Store) SetNX(_ context.Context, key string, value []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.strings[key]; taken {
		return false, nil
	}
	s.strings[key] = append([]byte(nil), value...)
	return true, nil
}

// Incr increments an integer counter, starting from zero.
func (s *Store) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if raw, ok := s.strings[key]; ok {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, &db.Error{Op: db.OpIncr, Err: err}
		}
		n = parsed
	}
	n++
	s.strings[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// --- sets ---

// SAdd adds members to a set.
func (s *Store) SAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{}, len(members))
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SRem removes members; an emptied set disappears like in Redis.
func (s *Store) SRem(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return nil
}

// SMembers returns the members sorted lexicographically.
func (s *Store) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedMembers(s.sets[key]), nil
}

// SUnion returns the union of the given sets, sorted.
func (s *Store) SUnion(_ context.Context, keys ...string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	union := make(map[string]struct{})
	for _, k := range keys {
		for m := range s.sets[k] {
			union[m] = struct{}{}
		}
	}
	return sortedMembers(union), nil
}

// SRandMember returns up to count distinct members in random order.
func (s *Store) SRandMember(_ context.Context, key string, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	members := sortedMembers(s.sets[key])
	s.mu.RUnlock()

	rand.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
	if len(members) > count {
		members = members[:count]
	}
	return members, nil
}

// SCard returns the set size.
func (s *Store) SCard(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sets[key])), nil
}

// SIsMember reports set membership.
func (s *Store) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func sortedMembers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
