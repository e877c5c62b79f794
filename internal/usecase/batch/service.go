package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/feedex/internal/domain"
	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	"github.com/kailas-cloud/feedex/internal/domain/scoring"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
	"github.com/kailas-cloud/feedex/internal/domain/vector"
	"github.com/kailas-cloud/feedex/internal/metrics"
	"github.com/kailas-cloud/feedex/internal/usecase/candidate"
)

// Cycle steps, used in logs and wrapped errors.
const (
	StepFetch     = "fetch"
	StepFold      = "fold"
	StepRecompute = "recompute"
	StepMark      = "mark_processed"
)

// Config tunes the batch recompute engine.
type Config struct {
	BatchSize            int
	LearningRate         float64
	HotThreshold         float64
	CandidateLimit       int
	FeedSize             int
	Parallelism          int
	RecomputeAllWhenIdle bool
	Dimension            int
}

// DefaultConfig returns the engine defaults for dimension d.
func DefaultConfig(d int) Config {
	return Config{
		BatchSize:            1000,
		LearningRate:         0.05,
		HotThreshold:         0.1,
		CandidateLimit:       1000,
		FeedSize:             200,
		Parallelism:          4,
		RecomputeAllWhenIdle: true,
		Dimension:            d,
	}
}

// CycleReport summarizes one batch cycle.
type CycleReport struct {
	CycleID         string
	Idle            bool
	Fetched         int
	Folded          int
	Skipped         int
	Users           int
	FeedsRecomputed int
	Duration        time.Duration
}

// StepError tags a cycle failure with the step it happened in.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// Service drains unprocessed interactions into taste profiles and
// recomputes the affected feeds.
type Service struct {
	log        InteractionLog
	profiles   ProfileStore
	items      ItemReader
	users      UserDirectory
	follows    FollowGraph
	candidates CandidateSelector
	feeds      FeedWriter
	locks      Locker
	scorer     *scoring.Scorer
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
	// cycle admits one fold pass at a time: RunCycle or RecalculateUser.
	cycle chan struct{}
}

// New creates a batch recompute service.
func New(
	log InteractionLog, profiles ProfileStore, items ItemReader, users UserDirectory,
	follows FollowGraph, candidates CandidateSelector, feeds FeedWriter,
	locks Locker, scorer *scoring.Scorer, cfg Config,
) *Service {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Service{
		log: log, profiles: profiles, items: items, users: users,
		follows: follows, candidates: candidates, feeds: feeds,
		locks: locks, scorer: scorer, cfg: cfg,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		cycle:  make(chan struct{}, 1),
	}
}

// acquire waits for the fold pass slot.
func (s *Service) acquire(ctx context.Context) (func(), error) {
	select {
	case s.cycle <- struct{}{}:
		return func() { <-s.cycle }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RunCycle executes fetch, fold, recompute and mark-processed once.
// A failing step aborts the rest of the cycle; the fetched batch stays
// pending unless the mark step already committed.
func (s *Service) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	rep := CycleReport{CycleID: uuid.NewString()}
	log := s.logger.With(zap.String("cycle_id", rep.CycleID))

	release, err := s.acquire(ctx)
	if err != nil {
		return rep, &StepError{Step: StepFetch, Err: err}
	}
	rep, err = s.runCycle(ctx, log, rep)
	release()
	rep.Duration = time.Since(start)
	metrics.BatchCycleDuration.Observe(rep.Duration.Seconds())

	if err != nil {
		metrics.BatchCyclesTotal.WithLabelValues("error").Inc()
		var se *StepError
		step := "unknown"
		if errors.As(err, &se) {
			step = se.Step
		}
		log.Error("batch cycle failed",
			zap.String("step", step),
			zap.Int("fetched", rep.Fetched),
			zap.Int("users", rep.Users),
			zap.Int("feeds_recomputed", rep.FeedsRecomputed),
			zap.Error(err),
		)
		return rep, err
	}

	outcome := "ok"
	if rep.Idle {
		outcome = "idle"
	}
	metrics.BatchCyclesTotal.WithLabelValues(outcome).Inc()
	log.Info("batch cycle completed",
		zap.Bool("idle", rep.Idle),
		zap.Int("fetched", rep.Fetched),
		zap.Int("folded", rep.Folded),
		zap.Int("skipped", rep.Skipped),
		zap.Int("users", rep.Users),
		zap.Int("feeds_recomputed", rep.FeedsRecomputed),
		zap.Duration("duration", time.Since(start)),
	)
	return rep, nil
}

func (s *Service) runCycle(ctx context.Context, log *zap.Logger, rep CycleReport) (CycleReport, error) {
	pending, err := s.log.Unprocessed(ctx, s.cfg.BatchSize)
	if err != nil {
		return rep, &StepError{Step: StepFetch, Err: err}
	}
	rep.Fetched = len(pending)

	if len(pending) == 0 {
		rep.Idle = true
		if !s.cfg.RecomputeAllWhenIdle {
			return rep, nil
		}
		users, err := s.users.All(ctx)
		if err != nil {
			return rep, &StepError{Step: StepFetch, Err: fmt.Errorf("list users: %w", err)}
		}
		rep.Users = len(users)
		n, err := s.recomputeAll(ctx, users)
		rep.FeedsRecomputed = n
		if err != nil {
			return rep, &StepError{Step: StepRecompute, Err: err}
		}
		return rep, nil
	}

	order, byUser := groupByUser(pending)
	rep.Users = len(order)
	log.Debug("batch fetched", zap.Int("interactions", len(pending)), zap.Int("users", len(order)))

	if err := s.users.Register(ctx, order...); err != nil {
		return rep, &StepError{Step: StepFold, Err: fmt.Errorf("register users: %w", err)}
	}
	vectors, err := s.itemVectors(ctx, pending)
	if err != nil {
		return rep, &StepError{Step: StepFold, Err: err}
	}

	changed := make([]int64, 0, len(order))
	for _, userID := range order {
		unlock := s.locks.Lock(userID)
		folded, err := s.fold(ctx, userID, byUser[userID], vectors)
		unlock()
		if err != nil {
			return rep, &StepError{Step: StepFold, Err: fmt.Errorf("user %d: %w", userID, err)}
		}
		rep.Folded += folded
		rep.Skipped += len(byUser[userID]) - folded
		if folded > 0 {
			changed = append(changed, userID)
		}
	}
	metrics.InteractionsFoldedTotal.Add(float64(rep.Folded))

	n, err := s.recomputeAll(ctx, changed)
	rep.FeedsRecomputed = n
	if err != nil {
		return rep, &StepError{Step: StepRecompute, Err: err}
	}

	ids := make([]int64, len(pending))
	for i := range pending {
		ids[i] = pending[i].ID
	}
	if err := s.log.MarkProcessed(ctx, ids, s.now()); err != nil {
		return rep, &StepError{Step: StepMark, Err: err}
	}
	return rep, nil
}

// groupByUser keeps first-appearance user order and per-user id order.
func groupByUser(rows []dominter.Interaction) ([]int64, map[int64][]dominter.Interaction) {
	var order []int64
	byUser := make(map[int64][]dominter.Interaction)
	for _, in := range rows {
		if _, seen := byUser[in.UserID]; !seen {
			order = append(order, in.UserID)
		}
		byUser[in.UserID] = append(byUser[in.UserID], in)
	}
	return order, byUser
}

func (s *Service) itemVectors(ctx context.Context, rows []dominter.Interaction) (map[int64][]float64, error) {
	seen := make(map[int64]struct{}, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, in := range rows {
		if _, ok := seen[in.ItemID]; ok {
			continue
		}
		seen[in.ItemID] = struct{}{}
		ids = append(ids, in.ItemID)
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load item vectors: %w", err)
	}
	out := make(map[int64][]float64, len(items))
	for i := range items {
		out[items[i].ID()] = items[i].Vector()
	}
	return out, nil
}

// fold applies the EMA for every interaction whose item has a vector,
// normalizes and persists. Returns how many interactions were folded.
// The caller holds the user lock.
func (s *Service) fold(
	ctx context.Context, userID int64, rows []dominter.Interaction, vectors map[int64][]float64,
) (int, error) {
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return 0, err
	}

	taste := profile.Vector()
	folded := 0
	for _, in := range rows {
		itemVec, ok := vectors[in.ItemID]
		if !ok || len(itemVec) != len(taste) {
			continue
		}
		taste = vector.Fold(taste, itemVec, s.cfg.LearningRate, in.Weight)
		folded++
	}
	if folded == 0 {
		return 0, nil
	}

	next := profile.WithVector(vector.Normalize(taste))
	if err := s.profiles.Save(ctx, &next); err != nil {
		return 0, fmt.Errorf("save profile: %w", err)
	}
	return folded, nil
}

func (s *Service) loadProfile(ctx context.Context, userID int64) (domtaste.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return domtaste.Neutral(userID, s.cfg.Dimension), nil
	case err != nil:
		return domtaste.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if len(p.Vector()) != s.cfg.Dimension {
		s.logger.Warn("taste profile dimension changed, starting neutral",
			zap.Int64("user_id", userID),
			zap.Int("stored", len(p.Vector())),
			zap.Int("configured", s.cfg.Dimension),
		)
		return domtaste.Neutral(userID, s.cfg.Dimension), nil
	}
	return p, nil
}

// recomputeAll rebuilds feeds for users with bounded parallelism.
// The first failure cancels the remaining work.
func (s *Service) recomputeAll(ctx context.Context, users []int64) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)

	done := make(chan struct{}, len(users))
	for _, userID := range users {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.RecomputeUser(gctx, userID); err != nil {
				return fmt.Errorf("user %d: %w", userID, err)
			}
			done <- struct{}{}
			return nil
		})
	}
	err := g.Wait()
	close(done)
	return len(done), err
}

// RecomputeUser rebuilds one user's feed from scratch: select candidates
// for the taste vector, score them all, keep the best K.
func (s *Service) RecomputeUser(ctx context.Context, userID int64) error {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.recompute(ctx, userID)
}

func (s *Service) recompute(ctx context.Context, userID int64) error {
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return err
	}
	definitive, err := s.log.DefinitiveItems(ctx, userID)
	if err != nil {
		return fmt.Errorf("definitive interactions: %w", err)
	}
	following, err := s.follows.Following(ctx, userID)
	if err != nil {
		return fmt.Errorf("followed creators: %w", err)
	}

	candidates, err := s.candidates.Select(ctx, candidate.Request{
		Reference: profile.Vector(),
		Threshold: s.cfg.HotThreshold,
		Limit:     s.cfg.CandidateLimit,
	})
	if err != nil {
		return fmt.Errorf("select candidates: %w", err)
	}

	entries := s.rank(profile.Vector(), candidates, scoring.Context{
		Definitive:       definitive,
		FollowedCreators: following,
		Now:              s.now(),
	})
	if err := s.feeds.Replace(ctx, userID, entries); err != nil {
		return err
	}
	metrics.FeedsRecomputedTotal.Inc()
	return nil
}

func (s *Service) rank(taste []float64, items []domitem.Item, sc scoring.Context) []domfeed.Entry {
	top := domfeed.NewTopK(s.cfg.FeedSize)
	for i := range items {
		score := s.scorer.ScoreIn(taste, &items[i], sc)
		if !s.scorer.AboveFloor(score) {
			continue
		}
		top.Push(domfeed.Entry{ItemID: items[i].ID(), Score: score})
	}
	return top.Result()
}

// UserReport summarizes a single-user recalculation.
type UserReport struct {
	UserID int64
	Reset  int
	Folded int
	Forced bool
}

// RecalculateUser folds the user's pending interactions and rebuilds the
// feed. With force the profile restarts neutral and the whole history is
// replayed. It waits for a running cycle so no interaction folds twice.
func (s *Service) RecalculateUser(ctx context.Context, userID int64, force bool) (UserReport, error) {
	if userID <= 0 {
		return UserReport{}, domain.NewInvalidInput("user_id", "must be positive")
	}
	rep := UserReport{UserID: userID, Forced: force}
	log := s.logger.With(zap.Int64("user_id", userID), zap.Bool("force", force))

	if err := s.users.Register(ctx, userID); err != nil {
		return rep, fmt.Errorf("register user: %w", err)
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return rep, err
	}
	defer release()
	unlock := s.locks.Lock(userID)
	defer unlock()

	if force {
		if err := s.resetProfile(ctx, userID); err != nil {
			return rep, err
		}
		n, err := s.log.ResetUser(ctx, userID)
		if err != nil {
			return rep, fmt.Errorf("reset interactions: %w", err)
		}
		rep.Reset = n
	}

	history, err := s.log.ForUser(ctx, userID)
	if err != nil {
		return rep, fmt.Errorf("load interactions: %w", err)
	}
	pending := make([]dominter.Interaction, 0, len(history))
	for _, in := range history {
		if !in.Processed() {
			pending = append(pending, in)
		}
	}

	vectors, err := s.itemVectors(ctx, pending)
	if err != nil {
		return rep, err
	}
	rep.Folded, err = s.fold(ctx, userID, pending, vectors)
	if err != nil {
		return rep, err
	}
	metrics.InteractionsFoldedTotal.Add(float64(rep.Folded))

	if err := s.recompute(ctx, userID); err != nil {
		return rep, fmt.Errorf("recompute feed: %w", err)
	}

	ids := make([]int64, len(pending))
	for i := range pending {
		ids[i] = pending[i].ID
	}
	if err := s.log.MarkProcessed(ctx, ids, s.now()); err != nil {
		return rep, fmt.Errorf("mark processed: %w", err)
	}

	log.Info("user recalculated", zap.Int("reset", rep.Reset), zap.Int("folded", rep.Folded))
	return rep, nil
}

// resetProfile restarts the taste neutral. The caller holds the user lock.
func (s *Service) resetProfile(ctx context.Context, userID int64) error {
	if err := s.profiles.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	neutral := domtaste.Neutral(userID, s.cfg.Dimension)
	if err := s.profiles.Save(ctx, &neutral); err != nil {
		return fmt.Errorf("save neutral profile: %w", err)
	}
	return nil
}
