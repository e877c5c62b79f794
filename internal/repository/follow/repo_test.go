package follow

import (
	"context"
	"testing"

	"github.com/kailas-cloud/feedex/internal/db/memory"
	domfollow "github.com/kailas-cloud/feedex/internal/domain/follow"
)

func mustFollow(t *testing.T, a, b int64) domfollow.Follow {
	t.Helper()
	f, err := domfollow.New(a, b)
	if err != nil {
		t.Fatalf("domfollow.New: %v", err)
	}
	return f
}

func TestAddRemove(t *testing.T) {
	repo := New(memory.New(), "feedex:")
	ctx := context.Background()

	created, err := repo.Add(ctx, mustFollow(t, 1, 2))
	if err != nil || !created {
		t.Fatalf("Add = %v, %v", created, err)
	}
	created, _ = repo.Add(ctx, mustFollow(t, 1, 2))
	if created {
		t.Error("second add must report existing")
	}

	following, _ := repo.Following(ctx, 1)
	if _, ok := following[2]; !ok {
		t.Errorf("Following = %v", following)
	}
	followers, _ := repo.Followers(ctx, 2)
	if _, ok := followers[1]; !ok {
		t.Errorf("Followers = %v", followers)
	}
	pairs, _ := repo.Pairs(ctx)
	if len(pairs) != 1 || pairs[0] != "1-2" {
		t.Errorf("Pairs = %v", pairs)
	}

	removed, _ := repo.Remove(ctx, 1, 2)
	if !removed {
		t.Error("expected removed=true")
	}
	if ok, _ := repo.IsFollowing(ctx, 1, 2); ok {
		t.Error("follow still present")
	}
}

func TestDeleteUser_BothDirections(t *testing.T) {
	repo := New(memory.New(), "feedex:")
	ctx := context.Background()
	_, _ = repo.Add(ctx, mustFollow(t, 1, 2))
	_, _ = repo.Add(ctx, mustFollow(t, 3, 1))
	_, _ = repo.Add(ctx, mustFollow(t, 3, 2))

	if err := repo.DeleteUser(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pairs, _ := repo.Pairs(ctx)
	if len(pairs) != 1 || pairs[0] != "3-2" {
		t.Errorf("Pairs = %v, want [3-2]", pairs)
	}
	following, _ := repo.Following(ctx, 3)
	if _, ok := following[1]; ok {
		t.Error("user 3 still follows deleted user")
	}
}
