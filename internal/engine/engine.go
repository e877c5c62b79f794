// Package engine is the composition root shared by the server and the CLI:
// it turns a loaded config.Config and a db.Store into wired services.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/config"
	"github.com/kailas-cloud/feedex/internal/db"
	"github.com/kailas-cloud/feedex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/feedex/internal/db/redis"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	"github.com/kailas-cloud/feedex/internal/domain/scoring"
	"github.com/kailas-cloud/feedex/internal/domain/vectorize"
	"github.com/kailas-cloud/feedex/internal/keylock"
	feedrepo "github.com/kailas-cloud/feedex/internal/repository/feed"
	followrepo "github.com/kailas-cloud/feedex/internal/repository/follow"
	interrepo "github.com/kailas-cloud/feedex/internal/repository/interaction"
	itemrepo "github.com/kailas-cloud/feedex/internal/repository/item"
	tasterepo "github.com/kailas-cloud/feedex/internal/repository/taste"
	userrepo "github.com/kailas-cloud/feedex/internal/repository/user"
	batchuc "github.com/kailas-cloud/feedex/internal/usecase/batch"
	"github.com/kailas-cloud/feedex/internal/usecase/candidate"
	"github.com/kailas-cloud/feedex/internal/usecase/catalog"
	"github.com/kailas-cloud/feedex/internal/usecase/events"
	feeduc "github.com/kailas-cloud/feedex/internal/usecase/feed"
	healthuc "github.com/kailas-cloud/feedex/internal/usecase/health"
	"github.com/kailas-cloud/feedex/internal/usecase/quickupdate"
	searchuc "github.com/kailas-cloud/feedex/internal/usecase/search"
	syncuc "github.com/kailas-cloud/feedex/internal/usecase/sync"
	tasteuc "github.com/kailas-cloud/feedex/internal/usecase/taste"
)

// Engine holds the wired services.
type Engine struct {
	Store      db.Store
	Vectorizer *vectorize.Vectorizer
	Scorer     *scoring.Scorer

	Feed    *feeduc.Service
	Batch   *batchuc.Service
	Quick   *quickupdate.Service
	Catalog *catalog.Service
	Taste   *tasteuc.Service
	Search  *searchuc.Service
	Sync    *syncuc.Service
	Health  *healthuc.Service
	Events  *events.Router
}

// OpenStore connects the configured database driver and waits for it.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	var (
		store db.Store
		err   error
	)
	switch cfg.Driver {
	case "redis":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	case "memory":
		store = memory.New()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	return store, nil
}

// New wires every service over store. It creates the item text index if
// it does not exist yet.
func New(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	vz, err := vectorize.New(VectorizeConfig(cfg.Vectorization))
	if err != nil {
		return nil, err
	}
	dim := vz.Dimension()
	scorer := scoring.New(ScoringConfig(cfg.Scoring))
	weights, err := Weights(cfg.Interactions)
	if err != nil {
		return nil, err
	}

	prefix := cfg.Storage.KeyPrefix
	items := itemrepo.New(store, prefix, cfg.Storage.PostingThreshold)
	if err := items.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("ensure item index: %w", err)
	}
	profiles := tasterepo.New(store, prefix)
	users := userrepo.New(store, prefix)
	interactions := interrepo.New(store, prefix)
	feeds := feedrepo.New(store, prefix)
	follows := followrepo.New(store, prefix)

	locks := keylock.New()
	candidates := candidate.New(items)

	feedSvc := feeduc.New(feeds, items, cfg.Feed.Size).
		WithPaging(cfg.Feed.DefaultPageSize, cfg.Feed.MaxPageSize)

	batchCfg := batchuc.Config{
		BatchSize:            cfg.Batch.BatchSize,
		LearningRate:         cfg.Batch.LearningRate,
		HotThreshold:         cfg.Batch.HotThreshold,
		CandidateLimit:       cfg.Batch.CandidateLimit,
		FeedSize:             cfg.Feed.Size,
		Parallelism:          cfg.Batch.Parallelism,
		RecomputeAllWhenIdle: cfg.Batch.RecomputeAllWhenIdle == nil || *cfg.Batch.RecomputeAllWhenIdle,
		Dimension:            dim,
	}
	batchSvc := batchuc.New(interactions, profiles, items, users, follows, candidates, feedSvc, locks, scorer, batchCfg).
		WithLogger(logger.Named("batch"))

	quickCfg := quickupdate.Config{
		LearningRate:        cfg.QuickUpdate.LearningRate,
		SimilarHotThreshold: cfg.QuickUpdate.SimilarHotThreshold,
		SimilarInject:       cfg.QuickUpdate.SimilarInject,
		FollowedInject:      cfg.QuickUpdate.FollowedInject,
		DefaultScore:        cfg.QuickUpdate.DefaultScore,
		RevertEpsilon:       cfg.QuickUpdate.RevertEpsilon,
		Dimension:           dim,
		Weights:             weights,
	}
	quickSvc := quickupdate.New(interactions, profiles, items, follows, users, candidates, feedSvc, locks, scorer, quickCfg).
		WithLogger(logger.Named("quickupdate"))

	catalogSvc := catalog.New(vz, items, feeds, interactions, profiles, users, follows, locks).
		WithLogger(logger.Named("catalog"))

	searchSvc := searchuc.New(items, profiles, interactions, follows, scorer, searchuc.Config{
		CandidateLimit: cfg.Search.CandidateLimit,
		TextWeight:     cfg.Search.TextWeight,
		PersonalWeight: cfg.Search.PersonalWeight,
		Dimension:      dim,
	})

	return &Engine{
		Store:      store,
		Vectorizer: vz,
		Scorer:     scorer,
		Feed:       feedSvc,
		Batch:      batchSvc,
		Quick:      quickSvc,
		Catalog:    catalogSvc,
		Taste:      tasteuc.New(profiles, vz),
		Search:     searchSvc,
		Sync:       syncuc.New(items, users, interactions, follows).WithLogger(logger.Named("sync")),
		Health:     healthuc.New(store, interactions).WithMaxBacklog(cfg.Health.MaxPending),
		Events:     events.New(quickSvc, catalogSvc).WithLogger(logger.Named("events")),
	}, nil
}

// VectorizeConfig maps the vectorization section.
func VectorizeConfig(c config.VectorizationConfig) vectorize.Config {
	return vectorize.Config{
		BPMMin:      c.BPMMin,
		BPMMax:      c.BPMMax,
		Genres:      c.Genres,
		Emotions:    c.Emotions,
		Instruments: c.Instruments,
		Kinds:       c.Kinds,
		HashBuckets: c.HashBuckets,
	}
}

// ScoringConfig maps the scoring section.
func ScoringConfig(c config.ScoringConfig) scoring.Config {
	return scoring.Config{
		SimilarityWeight: c.SimilarityWeight,
		FollowingWeight:  c.FollowingWeight,
		NoveltyWeight:    c.NoveltyWeight,
		HalfLifeHours:    c.HalfLifeHours,
		MaxNoveltyBonus:  c.MaxNoveltyBonus,
		VisibilityFactor: c.VisibilityFactor,
		PenaltyFloor:     c.PenaltyFloor,
	}
}

// Weights overlays the configured interaction weights on the defaults.
func Weights(overrides map[string]float64) (map[dominter.Type]float64, error) {
	w := dominter.DefaultWeights()
	for name, v := range overrides {
		t, err := dominter.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("interactions: %w", err)
		}
		w[t] = v
	}
	return w, nil
}
