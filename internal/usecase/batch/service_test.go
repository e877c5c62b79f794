package batch

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	"github.com/kailas-cloud/feedex/internal/domain/vector"
)

func TestRunCycle_FoldRecomputeMark(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	created := time.Now().Add(-time.Hour)
	h.addItem(t, 1, 10, []float64{1, 0, 0}, created)
	h.addItem(t, 2, 11, []float64{0, 1, 0}, created)
	h.addItem(t, 3, 12, []float64{0.9, 0.1, 0}, created)
	h.record(t, 5, 1, dominter.Like, 1)

	rep, err := h.svc.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.CycleID == "" {
		t.Error("CycleID is empty")
	}
	if rep.Fetched != 1 || rep.Folded != 1 || rep.Users != 1 || rep.FeedsRecomputed != 1 {
		t.Errorf("report = %+v", rep)
	}

	p, err := h.profiles.Get(ctx, 5)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if math.Abs(vector.Magnitude(p.Vector())-1) > 1e-9 || math.Abs(p.Vector()[0]-1) > 1e-9 {
		t.Errorf("taste = %v, want normalized [1 0 0]", p.Vector())
	}

	page, _ := h.feeds.Get(ctx, 5, 1, 10)
	if page.Source != "materialized" || len(page.ItemIDs) != 3 {
		t.Fatalf("feed = %+v", page)
	}
	if page.ItemIDs[0] != 1 || page.ItemIDs[1] != 3 || page.ItemIDs[2] != 2 {
		t.Errorf("order = %v, want [1 3 2]", page.ItemIDs)
	}

	if n, _ := h.interactions.PendingCount(ctx); n != 0 {
		t.Errorf("pending = %d after cycle, want 0", n)
	}
	if known, _ := h.users.Exists(ctx, 5); !known {
		t.Error("user not registered by the cycle")
	}
}

func TestRunCycle_IdleRecomputesAllUsers(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addItem(t, 1, 10, []float64{1, 0}, time.Time{})
	_ = h.users.Register(ctx, 7, 8)

	rep, err := h.svc.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Idle || rep.FeedsRecomputed != 2 {
		t.Errorf("report = %+v, want idle with 2 feeds", rep)
	}
	page, _ := h.feeds.Get(ctx, 8, 1, 10)
	if page.Source != "materialized" {
		t.Errorf("user 8 feed source = %q", page.Source)
	}
}

func TestRunCycle_IdleWithoutRecompute(t *testing.T) {
	h := newHarness(t, 2)
	h.svc.cfg.RecomputeAllWhenIdle = false
	_ = h.users.Register(context.Background(), 7)

	rep, err := h.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rep.Idle || rep.FeedsRecomputed != 0 {
		t.Errorf("report = %+v", rep)
	}
}

func TestRunCycle_MissingItemSkippedButMarked(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.record(t, 5, 99, dominter.Play, 0.2)

	rep, err := h.svc.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Folded != 0 || rep.Skipped != 1 || rep.FeedsRecomputed != 0 {
		t.Errorf("report = %+v", rep)
	}
	if n, _ := h.interactions.PendingCount(ctx); n != 0 {
		t.Errorf("pending = %d, skipped rows must still be marked", n)
	}
}

func TestRunCycle_FetchErrorAbortsCycle(t *testing.T) {
	h := newHarness(t, 2)
	marked := false
	h.svc.log = &mockLog{
		unprocessedFn: func(context.Context, int) ([]dominter.Interaction, error) { return nil, errBoom },
		markFn: func(context.Context, []int64, time.Time) error {
			marked = true
			return nil
		},
	}

	_, err := h.svc.RunCycle(context.Background())
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepFetch {
		t.Fatalf("err = %v, want fetch StepError", err)
	}
	if !errors.Is(err, errBoom) {
		t.Error("cause lost")
	}
	if marked {
		t.Error("mark step ran after a failed fetch")
	}
}

func TestRunCycle_RecomputeErrorLeavesBatchPending(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addItem(t, 1, 10, []float64{1, 0}, time.Time{})
	h.record(t, 5, 1, dominter.Like, 1)
	h.svc.feeds = failingFeeds{err: errBoom}

	_, err := h.svc.RunCycle(ctx)
	var se *StepError
	if !errors.As(err, &se) || se.Step != StepRecompute {
		t.Fatalf("err = %v, want recompute StepError", err)
	}
	if n, _ := h.interactions.PendingCount(ctx); n != 1 {
		t.Errorf("pending = %d, want 1 (batch retried next cycle)", n)
	}
	// the fold step committed independently
	if _, err := h.profiles.Get(ctx, 5); err != nil {
		t.Errorf("profile not persisted: %v", err)
	}
}

func TestRunCycle_BatchSizeCapsFetch(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.svc.cfg.BatchSize = 2
	h.addItem(t, 1, 10, []float64{1, 0}, time.Time{})
	for u := int64(1); u <= 3; u++ {
		h.record(t, u, 1, dominter.Like, 1)
	}

	rep, err := h.svc.RunCycle(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Fetched != 2 {
		t.Errorf("Fetched = %d, want 2", rep.Fetched)
	}
	pending, _ := h.interactions.Unprocessed(ctx, 10)
	if len(pending) != 1 || pending[0].UserID != 3 {
		t.Errorf("pending = %+v, want the newest row only", pending)
	}
}

func TestRecalculateUser_ForceReplaysHistory(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addItem(t, 1, 10, []float64{1, 0}, time.Time{})
	h.addItem(t, 2, 10, []float64{0, 1}, time.Time{})
	h.record(t, 5, 1, dominter.Like, 1)
	h.record(t, 5, 2, dominter.Dislike, -1)
	if _, err := h.svc.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	before, _ := h.profiles.Get(ctx, 5)

	rep, err := h.svc.RecalculateUser(ctx, 5, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Reset != 2 || rep.Folded != 2 || !rep.Forced {
		t.Errorf("report = %+v", rep)
	}
	after, _ := h.profiles.Get(ctx, 5)
	for i := range before.Vector() {
		if math.Abs(before.Vector()[i]-after.Vector()[i]) > 1e-9 {
			t.Fatalf("replay from neutral = %v, first fold = %v", after.Vector(), before.Vector())
		}
	}
	if n, _ := h.interactions.PendingCount(ctx); n != 0 {
		t.Errorf("pending = %d after recalculation", n)
	}
}

func TestRecalculateUser_WithoutForceFoldsPendingOnly(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addItem(t, 1, 10, []float64{1, 0}, time.Time{})
	h.record(t, 5, 1, dominter.Like, 1)
	h.record(t, 6, 1, dominter.Like, 1)

	rep, err := h.svc.RecalculateUser(ctx, 5, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Reset != 0 || rep.Folded != 1 {
		t.Errorf("report = %+v", rep)
	}
	pending, _ := h.interactions.Unprocessed(ctx, 10)
	if len(pending) != 1 || pending[0].UserID != 6 {
		t.Errorf("other users' rows must stay pending, got %+v", pending)
	}
}

func TestRecalculateUser_InvalidID(t *testing.T) {
	h := newHarness(t, 2)
	if _, err := h.svc.RecalculateUser(context.Background(), 0, false); err == nil {
		t.Fatal("expected error")
	}
}

// gatedLog holds Unprocessed open until release is closed.
type gatedLog struct {
	InteractionLog
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLog) Unprocessed(ctx context.Context, limit int) ([]dominter.Interaction, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	return g.InteractionLog.Unprocessed(ctx, limit)
}

func (h *harness) gate() *gatedLog {
	g := &gatedLog{InteractionLog: h.interactions, entered: make(chan struct{}), release: make(chan struct{})}
	svc := h.svc
	h.svc = New(g, h.profiles, h.items, h.users, svc.follows, svc.candidates, svc.feeds, svc.locks, svc.scorer, svc.cfg)
	return g
}

func TestRecalculateUser_WaitsForRunningCycle(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()
	h.addItem(t, 1, 10, []float64{1, 0}, time.Time{})
	h.addItem(t, 2, 10, []float64{0, 1}, time.Time{})
	h.record(t, 5, 1, dominter.Like, 1)
	h.record(t, 5, 2, dominter.Like, 1)
	g := h.gate()

	cycleDone := make(chan CycleReport, 1)
	go func() {
		rep, err := h.svc.RunCycle(ctx)
		if err != nil {
			t.Errorf("RunCycle: %v", err)
		}
		cycleDone <- rep
	}()
	<-g.entered

	recalcDone := make(chan UserReport, 1)
	go func() {
		rep, err := h.svc.RecalculateUser(ctx, 5, false)
		if err != nil {
			t.Errorf("RecalculateUser: %v", err)
		}
		recalcDone <- rep
	}()

	select {
	case <-recalcDone:
		t.Fatal("recalculation ran while a cycle was folding")
	case <-time.After(20 * time.Millisecond):
	}
	close(g.release)

	cycle := <-cycleDone
	recalc := <-recalcDone
	if cycle.Folded != 2 || recalc.Folded != 0 {
		t.Errorf("folded cycle=%d recalc=%d, want 2 and 0", cycle.Folded, recalc.Folded)
	}
}

func TestRecalculateUser_WaitHonorsContext(t *testing.T) {
	h := newHarness(t, 2)
	h.addItem(t, 1, 10, []float64{1, 0}, time.Time{})
	h.record(t, 5, 1, dominter.Like, 1)
	g := h.gate()

	cycleDone := make(chan struct{})
	go func() {
		defer close(cycleDone)
		_, _ = h.svc.RunCycle(context.Background())
	}()
	<-g.entered

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := h.svc.RecalculateUser(ctx, 5, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	close(g.release)
	<-cycleDone

	// the forced reset never ran
	if n, _ := h.interactions.PendingCount(context.Background()); n != 0 {
		t.Errorf("pending = %d, cycle must have drained the queue", n)
	}
}

func TestRecomputeUser_Converges(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	h.addItem(t, 1, 10, []float64{1, 0, 0}, time.Time{})
	h.addItem(t, 2, 11, []float64{0.9, 0.3, 0}, time.Time{})
	h.addItem(t, 3, 12, []float64{0.6, 0.6, 0.2}, time.Time{})
	h.addItem(t, 4, 13, []float64{0.2, 0.1, 0.9}, time.Time{})
	h.record(t, 5, 1, dominter.Like, 1)
	h.record(t, 5, 4, dominter.Play, 0.2)
	if _, err := h.svc.RunCycle(ctx); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	feed := func() []int64 {
		t.Helper()
		if err := h.svc.RecomputeUser(ctx, 5); err != nil {
			t.Fatalf("RecomputeUser: %v", err)
		}
		page, err := h.feeds.Get(ctx, 5, 1, 100)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		return page.ItemIDs
	}
	first, second := feed(), feed()
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("first = %v, second = %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("recompute not stable: first = %v, second = %v", first, second)
		}
	}
}
