package feedex

import (
	"context"
	"errors"
	"testing"

	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	"github.com/kailas-cloud/feedex/internal/usecase/quickupdate"
)

type mockQuickUC struct {
	likeFn   func(ctx context.Context, userID, itemID int64) (quickupdate.Result, error)
	recorded []dominter.Type
}

func (m *mockQuickUC) Like(ctx context.Context, userID, itemID int64) (quickupdate.Result, error) {
	return m.likeFn(ctx, userID, itemID)
}

func (m *mockQuickUC) Comment(context.Context, int64, int64) (quickupdate.Result, error) {
	return quickupdate.Result{}, nil
}

func (m *mockQuickUC) Unlike(context.Context, int64, int64) (quickupdate.Result, error) {
	return quickupdate.Result{Removed: 1}, nil
}

func (m *mockQuickUC) Follow(context.Context, int64, int64) (quickupdate.Result, error) {
	return quickupdate.Result{Injected: 15}, nil
}

func (m *mockQuickUC) Unfollow(context.Context, int64, int64) (quickupdate.Result, error) {
	return quickupdate.Result{Removed: 4}, nil
}

func (m *mockQuickUC) Record(_ context.Context, _, _ int64, typ dominter.Type) error {
	m.recorded = append(m.recorded, typ)
	return nil
}

func TestClient_Like_MapsResult(t *testing.T) {
	mock := &mockQuickUC{
		likeFn: func(_ context.Context, userID, itemID int64) (quickupdate.Result, error) {
			if userID != 1 || itemID != 2 {
				t.Errorf("Like(%d, %d)", userID, itemID)
			}
			return quickupdate.Result{Injected: 10, Nudged: true}, nil
		},
	}
	c := &Client{quickSvc: mock}

	res, err := c.Like(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Like: %v", err)
	}
	if res.Injected != 10 || !res.Nudged || res.Fallback {
		t.Errorf("result = %+v", res)
	}
}

func TestClient_Like_Error(t *testing.T) {
	boom := errors.New("store down")
	mock := &mockQuickUC{
		likeFn: func(context.Context, int64, int64) (quickupdate.Result, error) {
			return quickupdate.Result{Injected: 3}, boom
		},
	}
	c := &Client{quickSvc: mock}

	res, err := c.Like(context.Background(), 1, 2)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if res != (UpdateResult{}) {
		t.Errorf("result on error = %+v, want zero", res)
	}
}

func TestClient_FollowUnfollow(t *testing.T) {
	c := &Client{quickSvc: &mockQuickUC{}}
	ctx := context.Background()

	if res, _ := c.Follow(ctx, 1, 9); res.Injected != 15 {
		t.Errorf("Follow injected = %d", res.Injected)
	}
	if res, _ := c.Unfollow(ctx, 1, 9); res.Removed != 4 {
		t.Errorf("Unfollow removed = %d", res.Removed)
	}
	if res, _ := c.Unlike(ctx, 1, 2); res.Removed != 1 {
		t.Errorf("Unlike removed = %d", res.Removed)
	}
}

func TestClient_Record_ParsesType(t *testing.T) {
	mock := &mockQuickUC{}
	c := &Client{quickSvc: mock}

	if err := c.Record(context.Background(), 1, 2, "skip"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(mock.recorded) != 1 || mock.recorded[0] != dominter.Skip {
		t.Errorf("recorded = %v", mock.recorded)
	}
}
