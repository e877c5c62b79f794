package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/kailas-cloud/feedex/internal/domain"
)

type mockIDs struct {
	ids   []int64
	fails int
	calls int
}

func (m *mockIDs) AllIDs(context.Context) ([]int64, error) { return m.next() }
func (m *mockIDs) All(context.Context) ([]int64, error)    { return m.next() }

func (m *mockIDs) next() ([]int64, error) {
	m.calls++
	if m.calls <= m.fails {
		return nil, errors.New("connection reset")
	}
	return append([]int64(nil), m.ids...), nil
}

type mockPairs struct{ pairs []string }

func (m *mockPairs) Pairs(context.Context) ([]string, error) {
	return append([]string(nil), m.pairs...), nil
}

func (m *mockPairs) LikePairs(context.Context) ([]string, error) {
	return append([]string(nil), m.pairs...), nil
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func TestChecksum_SortedIDs(t *testing.T) {
	items := &mockIDs{ids: []int64{10, 2, 33}}
	svc := New(items, &mockIDs{}, &mockPairs{}, &mockPairs{})

	got, err := svc.Checksum(context.Background(), TypeItems)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 3 || got.Checksum == nil || *got.Checksum != sum("2,10,33") {
		t.Errorf("checksum = %+v", got)
	}
}

func TestChecksum_Empty(t *testing.T) {
	svc := New(&mockIDs{}, &mockIDs{}, &mockPairs{}, &mockPairs{})
	got, err := svc.Checksum(context.Background(), TypeUsers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 0 || got.Checksum != nil {
		t.Errorf("checksum = %+v, want nil checksum", got)
	}
}

func TestChecksum_PairsOrderedNumerically(t *testing.T) {
	likes := &mockPairs{pairs: []string{"10-1", "2-30", "2-4"}}
	svc := New(&mockIDs{}, &mockIDs{}, likes, &mockPairs{})

	got, err := svc.Checksum(context.Background(), TypeLikes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *got.Checksum != sum("2-4,2-30,10-1") {
		t.Errorf("checksum over wrong order")
	}
}

func TestChecksum_RetriesOnce(t *testing.T) {
	items := &mockIDs{ids: []int64{1}, fails: 1}
	svc := New(items, &mockIDs{}, &mockPairs{}, &mockPairs{})
	if _, err := svc.Checksum(context.Background(), TypeItems); err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if items.calls != 2 {
		t.Errorf("calls = %d, want 2", items.calls)
	}

	items = &mockIDs{ids: []int64{1}, fails: 2}
	svc = New(items, &mockIDs{}, &mockPairs{}, &mockPairs{})
	if _, err := svc.Checksum(context.Background(), TypeItems); err == nil {
		t.Error("expected error after second failure")
	}
}

func TestIDs_Follows(t *testing.T) {
	follows := &mockPairs{pairs: []string{"1-2", "3-1"}}
	svc := New(&mockIDs{}, &mockIDs{}, &mockPairs{}, follows)
	got, err := svc.IDs(context.Background(), TypeFollows)
	if err != nil || len(got) != 2 {
		t.Errorf("IDs = %v, %v", got, err)
	}
}

func TestParseType(t *testing.T) {
	for _, s := range []string{"items", "users", "likes", "follows"} {
		if _, err := ParseType(s); err != nil {
			t.Errorf("ParseType(%q): %v", s, err)
		}
	}
	if _, err := ParseType("samples"); !errors.Is(err, domain.ErrInvalidSyncType) {
		t.Errorf("err = %v, want ErrInvalidSyncType", err)
	}
}

func TestChecksum_UnknownType(t *testing.T) {
	svc := New(&mockIDs{}, &mockIDs{}, &mockPairs{}, &mockPairs{})
	_, err := svc.Checksum(context.Background(), Type("samples"))
	if !errors.Is(err, domain.ErrInvalidSyncType) {
		t.Errorf("err = %v", err)
	}
}
