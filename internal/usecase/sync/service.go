// Package sync exposes deterministic fingerprints of the engine's view of
// items, users, likes and follows so an upstream system can detect drift.
package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/domain"
)

// Type names a synchronized collection.
type Type string

// Synchronized collections.
const (
	TypeItems   Type = "items"
	TypeUsers   Type = "users"
	TypeLikes   Type = "likes"
	TypeFollows Type = "follows"
)

// ParseType validates a collection name.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeItems, TypeUsers, TypeLikes, TypeFollows:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidSyncType, s)
}

// Checksum fingerprints one collection. Checksum is nil when empty.
type Checksum struct {
	Checksum *string `json:"checksum"`
	Count    int     `json:"count"`
}

// Service computes checksums and id lists.
type Service struct {
	items   IDSource
	users   UserSource
	likes   LikeSource
	follows PairSource
	logger  *zap.Logger
}

// New creates a sync service.
func New(items IDSource, users UserSource, likes LikeSource, follows PairSource) *Service {
	return &Service{items: items, users: users, likes: likes, follows: follows, logger: zap.NewNop()}
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// Checksum returns sha256 over the comma-joined, sorted values of typ.
func (s *Service) Checksum(ctx context.Context, typ Type) (Checksum, error) {
	values, err := s.values(ctx, typ, true)
	if err != nil {
		return Checksum{}, err
	}
	out := Checksum{Count: len(values)}
	if len(values) > 0 {
		sum := sha256.Sum256([]byte(strings.Join(values, ",")))
		hexSum := hex.EncodeToString(sum[:])
		out.Checksum = &hexSum
	}
	return out, nil
}

// IDs returns the raw values of typ: decimal ids for items and users,
// "a-b" pairs for likes and follows.
func (s *Service) IDs(ctx context.Context, typ Type) ([]string, error) {
	return s.values(ctx, typ, false)
}

// values reads once and retries a single time on failure.
func (s *Service) values(ctx context.Context, typ Type, ordered bool) ([]string, error) {
	values, err := s.read(ctx, typ, ordered)
	if err == nil {
		return values, nil
	}
	if _, perr := ParseType(string(typ)); perr != nil {
		return nil, perr
	}
	s.logger.Warn("sync read failed, retrying", zap.String("type", string(typ)), zap.Error(err))
	values, err = s.read(ctx, typ, ordered)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", typ, err)
	}
	return values, nil
}

func (s *Service) read(ctx context.Context, typ Type, ordered bool) ([]string, error) {
	switch typ {
	case TypeItems:
		ids, err := s.items.AllIDs(ctx)
		if err != nil {
			return nil, err
		}
		return formatIDs(ids, ordered), nil
	case TypeUsers:
		ids, err := s.users.All(ctx)
		if err != nil {
			return nil, err
		}
		return formatIDs(ids, ordered), nil
	case TypeLikes:
		pairs, err := s.likes.LikePairs(ctx)
		if err != nil {
			return nil, err
		}
		return sortPairs(pairs, ordered), nil
	case TypeFollows:
		pairs, err := s.follows.Pairs(ctx)
		if err != nil {
			return nil, err
		}
		return sortPairs(pairs, ordered), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSyncType, typ)
}

func formatIDs(ids []int64, ordered bool) []string {
	if ordered {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}

// sortPairs orders "a-b" numerically by a, then b.
func sortPairs(pairs []string, ordered bool) []string {
	if !ordered {
		return pairs
	}
	type key struct{ a, b int64 }
	keys := make(map[string]key, len(pairs))
	for _, p := range pairs {
		left, right, _ := strings.Cut(p, "-")
		a, _ := strconv.ParseInt(left, 10, 64)
		b, _ := strconv.ParseInt(right, 10, 64)
		keys[p] = key{a, b}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ki, kj := keys[pairs[i]], keys[pairs[j]]
		if ki.a != kj.a {
			return ki.a < kj.a
		}
		return ki.b < kj.b
	})
	return pairs
}
