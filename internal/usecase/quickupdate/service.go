package quickupdate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/domain"
	domfeed "github.com/kailas-cloud/feedex/internal/domain/feed"
	domfollow "github.com/kailas-cloud/feedex/internal/domain/follow"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	"github.com/kailas-cloud/feedex/internal/domain/scoring"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
	"github.com/kailas-cloud/feedex/internal/domain/vector"
	"github.com/kailas-cloud/feedex/internal/metrics"
	"github.com/kailas-cloud/feedex/internal/usecase/candidate"
)

// Event labels for logs and metrics.
const (
	EventLike     = "like"
	EventComment  = "comment"
	EventUnlike   = "unlike"
	EventFollow   = "follow"
	EventUnfollow = "unfollow"
	EventRecord   = "record"
)

// Config tunes the quick-update engine.
type Config struct {
	LearningRate        float64
	SimilarHotThreshold float64
	SimilarInject       int
	FollowedInject      int
	DefaultScore        float64
	RevertEpsilon       float64
	Dimension           int
	Weights             map[dominter.Type]float64
}

// DefaultConfig returns the engine defaults for dimension d.
func DefaultConfig(d int) Config {
	return Config{
		LearningRate:        0.1,
		SimilarHotThreshold: 0.9,
		SimilarInject:       10,
		FollowedInject:      15,
		DefaultScore:        1.0,
		RevertEpsilon:       1e-9,
		Dimension:           d,
		Weights:             dominter.DefaultWeights(),
	}
}

// Result describes what a quick update changed.
type Result struct {
	// Injected counts entries merged into the feed.
	Injected int
	// Removed counts entries deleted from the feed.
	Removed int
	// Nudged reports whether the taste vector moved.
	Nudged bool
	// Fallback reports that a single bare entry was merged instead of scored candidates.
	Fallback bool
}

// Service applies bounded feed deltas in the event path. It never
// rebuilds a whole feed; the batch engine converges feeds later.
type Service struct {
	interactions InteractionWriter
	profiles     ProfileStore
	items        ItemReader
	follows      FollowGraph
	users        UserDirectory
	candidates   CandidateSelector
	feeds        FeedEditor
	locks        Locker
	scorer       *scoring.Scorer
	cfg          Config
	logger       *zap.Logger
	now          func() time.Time
}

// New creates a quick-update service.
func New(
	interactions InteractionWriter, profiles ProfileStore, items ItemReader,
	follows FollowGraph, users UserDirectory, candidates CandidateSelector,
	feeds FeedEditor, locks Locker, scorer *scoring.Scorer, cfg Config,
) *Service {
	if cfg.Weights == nil {
		cfg.Weights = dominter.DefaultWeights()
	}
	return &Service{
		interactions: interactions, profiles: profiles, items: items,
		follows: follows, users: users, candidates: candidates,
		feeds: feeds, locks: locks, scorer: scorer, cfg: cfg,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
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

// Like applies a positive "like" signal.
func (s *Service) Like(ctx context.Context, userID, itemID int64) (Result, error) {
	res, err := s.positive(ctx, EventLike, dominter.Like, userID, itemID)
	s.observe(EventLike, res, err)
	return res, err
}

// Comment applies a positive "comment" signal.
func (s *Service) Comment(ctx context.Context, userID, itemID int64) (Result, error) {
	res, err := s.positive(ctx, EventComment, dominter.Comment, userID, itemID)
	s.observe(EventComment, res, err)
	return res, err
}

func (s *Service) positive(ctx context.Context, event string, typ dominter.Type, userID, itemID int64) (Result, error) {
	if err := validateIDs(userID, itemID); err != nil {
		return Result{}, err
	}
	log := s.logger.With(zap.String("event", event), zap.Int64("user_id", userID), zap.Int64("item_id", itemID))

	if err := s.users.Register(ctx, userID); err != nil {
		return Result{}, fmt.Errorf("register user: %w", err)
	}

	// the row write and the nudge it gates form one critical section
	unlock := s.locks.Lock(userID)
	defer unlock()

	_, created, err := s.interactions.Upsert(ctx, dominter.Interaction{
		UserID: userID, ItemID: itemID, Type: typ, Weight: s.cfg.Weights[typ], CreatedAt: s.now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("record %s: %w", typ, err)
	}

	it, taste, nudged, err := s.nudge(ctx, userID, itemID, created)
	if err != nil {
		if created {
			s.retract(ctx, log, userID, itemID, typ)
		}
		return Result{}, err
	}
	if it == nil {
		log.Info("item not vectorized yet, injecting bare entry")
		return s.mergeFallback(ctx, userID, itemID)
	}
	res := Result{Nudged: nudged}

	candidates, err := s.candidates.Select(ctx, candidate.Request{
		Reference: it.Vector(),
		Threshold: s.cfg.SimilarHotThreshold,
		Limit:     s.cfg.SimilarInject * 2,
		Exclude:   map[int64]struct{}{itemID: {}},
	})
	if err != nil {
		return Result{}, fmt.Errorf("select similar: %w", err)
	}
	sc, err := s.scoringContext(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	top := domfeed.NewTopK(s.cfg.SimilarInject)
	for i := range candidates {
		c := &candidates[i]
		if _, skip := sc.Definitive[c.ID()]; skip {
			continue
		}
		if score := s.scorer.ScoreIn(taste, c, sc); score >= 0 {
			top.Push(domfeed.Entry{ItemID: c.ID(), Score: score})
		}
	}
	entries := top.Result()
	if len(entries) == 0 {
		log.Info("no similar candidate qualified, injecting liked item")
		fb, err := s.mergeFallback(ctx, userID, itemID)
		fb.Nudged = res.Nudged
		return fb, err
	}

	if err := s.feeds.Merge(ctx, userID, entries); err != nil {
		return Result{}, err
	}
	res.Injected = len(entries)
	log.Debug("quick update applied", zap.Int("injected", res.Injected), zap.Bool("nudged", res.Nudged))
	return res, nil
}

// nudge moves the taste toward the item when the signal is new and returns
// the resulting vector. A nil item means it is not vectorized yet.
func (s *Service) nudge(ctx context.Context, userID, itemID int64, created bool) (*domitem.Item, []float64, bool, error) {
	profile, err := s.loadProfile(ctx, userID)
	if err != nil {
		return nil, nil, false, err
	}
	it, err := s.items.Get(ctx, itemID)
	if errors.Is(err, domain.ErrItemNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("load item: %w", err)
	}

	taste := profile.Vector()
	// a repeated signal must not nudge twice, or unlike could not undo it
	if !created || len(it.Vector()) != len(taste) {
		return &it, taste, false, nil
	}
	taste = vector.Nudge(taste, it.Vector(), s.cfg.LearningRate)
	next := profile.WithVector(taste)
	if err := s.profiles.Save(ctx, &next); err != nil {
		return nil, nil, false, fmt.Errorf("save profile: %w", err)
	}
	return &it, taste, true, nil
}

// retract drops a freshly created row whose nudge never landed, so a
// redelivered event is treated as new again.
func (s *Service) retract(ctx context.Context, log *zap.Logger, userID, itemID int64, typ dominter.Type) {
	if _, err := s.interactions.DeleteOne(context.WithoutCancel(ctx), userID, itemID, typ); err != nil {
		log.Warn("failed to retract interaction", zap.Error(err))
	}
}

func (s *Service) mergeFallback(ctx context.Context, userID, itemID int64) (Result, error) {
	if err := s.feeds.Merge(ctx, userID, []domfeed.Entry{{ItemID: itemID, Score: s.cfg.DefaultScore}}); err != nil {
		return Result{}, err
	}
	return Result{Injected: 1, Fallback: true}, nil
}

// Unlike retracts a like: the row goes, the nudge is inverted and the
// item leaves the feed.
func (s *Service) Unlike(ctx context.Context, userID, itemID int64) (Result, error) {
	res, err := s.unlike(ctx, userID, itemID)
	s.observe(EventUnlike, res, err)
	return res, err
}

func (s *Service) unlike(ctx context.Context, userID, itemID int64) (Result, error) {
	if err := validateIDs(userID, itemID); err != nil {
		return Result{}, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	deleted, err := s.interactions.DeleteOne(ctx, userID, itemID, dominter.Like)
	if err != nil {
		return Result{}, fmt.Errorf("delete like: %w", err)
	}

	var res Result
	if deleted {
		nudged, err := s.revert(ctx, userID, itemID)
		if err != nil {
			return Result{}, err
		}
		res.Nudged = nudged
	}
	removed, err := s.feeds.Remove(ctx, userID, itemID)
	if err != nil {
		return Result{}, err
	}
	res.Removed = removed
	return res, nil
}

func (s *Service) revert(ctx context.Context, userID, itemID int64) (bool, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	it, err := s.items.Get(ctx, itemID)
	if errors.Is(err, domain.ErrItemNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load item: %w", err)
	}
	if len(it.Vector()) != len(profile.Vector()) {
		return false, nil
	}
	next := profile.WithVector(vector.Revert(profile.Vector(), it.Vector(), s.cfg.LearningRate, s.cfg.RevertEpsilon))
	if err := s.profiles.Save(ctx, &next); err != nil {
		return false, fmt.Errorf("save profile: %w", err)
	}
	return true, nil
}

// Follow records the edge and injects the creator's best recent items.
func (s *Service) Follow(ctx context.Context, followerID, followedID int64) (Result, error) {
	res, err := s.follow(ctx, followerID, followedID)
	s.observe(EventFollow, res, err)
	return res, err
}

func (s *Service) follow(ctx context.Context, followerID, followedID int64) (Result, error) {
	edge, err := domfollow.New(followerID, followedID)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.follows.Add(ctx, edge); err != nil {
		return Result{}, fmt.Errorf("add follow: %w", err)
	}
	if err := s.users.Register(ctx, followerID, followedID); err != nil {
		return Result{}, fmt.Errorf("register users: %w", err)
	}

	unlock := s.locks.Lock(followerID)
	defer unlock()

	ids, err := s.items.NewestByCreator(ctx, followedID, s.cfg.FollowedInject*2)
	if err != nil {
		return Result{}, fmt.Errorf("creator items: %w", err)
	}
	if len(ids) == 0 {
		return Result{}, nil
	}
	items, err := s.items.GetMany(ctx, ids)
	if err != nil {
		return Result{}, fmt.Errorf("load creator items: %w", err)
	}
	profile, err := s.loadProfile(ctx, followerID)
	if err != nil {
		return Result{}, err
	}
	definitive, err := s.interactions.DefinitiveItems(ctx, followerID)
	if err != nil {
		return Result{}, fmt.Errorf("definitive interactions: %w", err)
	}

	now := s.now()
	top := domfeed.NewTopK(s.cfg.FollowedInject)
	for i := range items {
		it := &items[i]
		if _, skip := definitive[it.ID()]; skip {
			continue
		}
		if score := s.scorer.Score(profile.Vector(), it, definitive, true, now); score > 0 {
			top.Push(domfeed.Entry{ItemID: it.ID(), Score: score})
		}
	}
	entries := top.Result()
	res := Result{}
	if len(entries) == 0 {
		// ids are newest first
		entries = []domfeed.Entry{{ItemID: ids[0], Score: s.cfg.DefaultScore}}
		res.Fallback = true
	}
	if err := s.feeds.Merge(ctx, followerID, entries); err != nil {
		return Result{}, err
	}
	res.Injected = len(entries)
	return res, nil
}

// Unfollow drops the edge and every feed entry of that creator.
func (s *Service) Unfollow(ctx context.Context, followerID, followedID int64) (Result, error) {
	res, err := s.unfollow(ctx, followerID, followedID)
	s.observe(EventUnfollow, res, err)
	return res, err
}

func (s *Service) unfollow(ctx context.Context, followerID, followedID int64) (Result, error) {
	if err := validateIDs(followerID, followedID); err != nil {
		return Result{}, err
	}
	if _, err := s.follows.Remove(ctx, followerID, followedID); err != nil {
		return Result{}, fmt.Errorf("remove follow: %w", err)
	}
	ids, err := s.items.ByCreator(ctx, followedID)
	if err != nil {
		return Result{}, fmt.Errorf("creator items: %w", err)
	}

	unlock := s.locks.Lock(followerID)
	defer unlock()

	removed, err := s.feeds.Remove(ctx, followerID, ids...)
	if err != nil {
		return Result{}, err
	}
	return Result{Removed: removed}, nil
}

// Record appends a low-signal interaction for the batch path only.
// Dislikes are unique per item so the definitive set stays exact.
func (s *Service) Record(ctx context.Context, userID, itemID int64, typ dominter.Type) error {
	err := s.record(ctx, userID, itemID, typ)
	s.observe(EventRecord, Result{}, err)
	return err
}

func (s *Service) record(ctx context.Context, userID, itemID int64, typ dominter.Type) error {
	if err := validateIDs(userID, itemID); err != nil {
		return err
	}
	weight, ok := s.cfg.Weights[typ]
	if !ok {
		return domain.NewInvalidInput("type", fmt.Sprintf("unknown interaction type %q", typ))
	}
	in := dominter.Interaction{UserID: userID, ItemID: itemID, Type: typ, Weight: weight, CreatedAt: s.now()}
	var err error
	if dominter.IsDefinitive(typ) {
		_, _, err = s.interactions.Upsert(ctx, in)
	} else {
		_, err = s.interactions.Append(ctx, in)
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", typ, err)
	}
	if err := s.users.Register(ctx, userID); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

func (s *Service) loadProfile(ctx context.Context, userID int64) (domtaste.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		neutral := domtaste.Neutral(userID, s.cfg.Dimension)
		if err := s.profiles.Save(ctx, &neutral); err != nil {
			return domtaste.Profile{}, fmt.Errorf("create neutral profile: %w", err)
		}
		return neutral, nil
	case err != nil:
		return domtaste.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (s *Service) scoringContext(ctx context.Context, userID int64) (scoring.Context, error) {
	definitive, err := s.interactions.DefinitiveItems(ctx, userID)
	if err != nil {
		return scoring.Context{}, fmt.Errorf("definitive interactions: %w", err)
	}
	following, err := s.follows.Following(ctx, userID)
	if err != nil {
		return scoring.Context{}, fmt.Errorf("followed creators: %w", err)
	}
	return scoring.Context{Definitive: definitive, FollowedCreators: following, Now: s.now()}, nil
}

func (s *Service) observe(event string, res Result, err error) {
	metrics.QuickUpdatesTotal.WithLabelValues(event, metrics.Outcome(err)).Inc()
	if err == nil && res.Injected > 0 {
		metrics.FeedEntriesInjectedTotal.WithLabelValues(event).Add(float64(res.Injected))
	}
}

func validateIDs(userID, otherID int64) error {
	if userID <= 0 {
		return domain.NewInvalidInput("user_id", "must be positive")
	}
	if otherID <= 0 {
		return domain.NewInvalidInput("target_id", "must be positive")
	}
	return nil
}

