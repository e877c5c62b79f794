package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	batchuc "github.com/kailas-cloud/feedex/internal/usecase/batch"
)

// ErrCycleInProgress is returned by RunOnce while another cycle runs.
var ErrCycleInProgress = errors.New("batch cycle already in progress")

// CycleRunner runs one batch cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (batchuc.CycleReport, error)
}

// BatchScheduler runs the batch engine after an initial delay and then on
// a fixed interval. At most one cycle runs at a time.
type BatchScheduler struct {
	runner       CycleRunner
	interval     time.Duration
	initialDelay time.Duration
	logger       *zap.Logger
	running      atomic.Bool
	cycles       atomic.Int64
}

// NewBatchScheduler creates a scheduler. A non-positive interval defaults to 5m.
func NewBatchScheduler(runner CycleRunner, interval, initialDelay time.Duration, logger *zap.Logger) *BatchScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if initialDelay < 0 {
		initialDelay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchScheduler{
		runner:       runner,
		interval:     interval,
		initialDelay: initialDelay,
		logger:       logger.With(zap.String("service", "batch-scheduler")),
	}
}

// Serve implements suture.Service. A failed cycle is logged and retried
// on the next tick; it never stops the scheduler.
func (s *BatchScheduler) Serve(ctx context.Context) error {
	s.logger.Info("batch scheduler starting",
		zap.Duration("initial_delay", s.initialDelay),
		zap.Duration("interval", s.interval),
	)

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("batch scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *BatchScheduler) tick(ctx context.Context) {
	_, err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Debug("skipping tick, cycle still running")
	case ctx.Err() != nil:
	default:
		// the cycle already logged its step and counts
		s.logger.Warn("batch cycle failed, retrying next tick", zap.Error(err))
	}
}

// RunOnce runs a single cycle unless one is already running.
func (s *BatchScheduler) RunOnce(ctx context.Context) (batchuc.CycleReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return batchuc.CycleReport{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	rep, err := s.runner.RunCycle(ctx)
	s.cycles.Add(1)
	return rep, err
}

// Cycles returns the number of cycles attempted.
func (s *BatchScheduler) Cycles() int64 {
	return s.cycles.Load()
}

func (s *BatchScheduler) String() string {
	return "batch-scheduler"
}
