package feedex

import (
	"context"
	"time"
)

// RunBatch runs one batch cycle: pending interactions are folded into
// taste profiles and the affected feeds are rebuilt.
func (c *Client) RunBatch(ctx context.Context) (_ CycleReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("run_batch", start, err) }()

	rep, err := c.batchSvc.RunCycle(ctx)
	if err != nil {
		return CycleReport{}, err
	}
	return CycleReport{
		CycleID:         rep.CycleID,
		Idle:            rep.Idle,
		Folded:          rep.Folded,
		Skipped:         rep.Skipped,
		Users:           rep.Users,
		FeedsRecomputed: rep.FeedsRecomputed,
		Duration:        rep.Duration,
	}, nil
}

// Recalculate rebuilds one user. With force the profile restarts neutral
// and the full interaction history is replayed.
func (c *Client) Recalculate(ctx context.Context, userID int64, force bool) (_ RecalcReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("recalculate", start, err) }()

	rep, err := c.batchSvc.RecalculateUser(ctx, userID, force)
	if err != nil {
		return RecalcReport{}, err
	}
	return RecalcReport{UserID: rep.UserID, Forced: rep.Forced, Reset: rep.Reset, Folded: rep.Folded}, nil
}
