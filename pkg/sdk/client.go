package feedex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/feedex/internal/config"
	"github.com/kailas-cloud/feedex/internal/db"
	"github.com/kailas-cloud/feedex/internal/db/memory"
	dbRedis "github.com/kailas-cloud/feedex/internal/db/redis"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	"github.com/kailas-cloud/feedex/internal/domain/vectorize"
	"github.com/kailas-cloud/feedex/internal/engine"
	batchuc "github.com/kailas-cloud/feedex/internal/usecase/batch"
	"github.com/kailas-cloud/feedex/internal/usecase/catalog"
	feeduc "github.com/kailas-cloud/feedex/internal/usecase/feed"
	"github.com/kailas-cloud/feedex/internal/usecase/quickupdate"
	searchuc "github.com/kailas-cloud/feedex/internal/usecase/search"
	syncuc "github.com/kailas-cloud/feedex/internal/usecase/sync"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, swapped for fakes in tests.
type quickUseCase interface {
	Like(ctx context.Context, userID, itemID int64) (quickupdate.Result, error)
	Comment(ctx context.Context, userID, itemID int64) (quickupdate.Result, error)
	Unlike(ctx context.Context, userID, itemID int64) (quickupdate.Result, error)
	Follow(ctx context.Context, followerID, followedID int64) (quickupdate.Result, error)
	Unfollow(ctx context.Context, followerID, followedID int64) (quickupdate.Result, error)
	Record(ctx context.Context, userID, itemID int64, typ dominter.Type) error
}

type catalogUseCase interface {
	UpsertItem(ctx context.Context, in catalog.ItemInput) (bool, error)
	DeleteItem(ctx context.Context, itemID int64) error
	CreateUser(ctx context.Context, userID int64) error
	DeleteUser(ctx context.Context, userID int64) error
}

type eventUseCase interface {
	Route(ctx context.Context, name string, payload []byte) (bool, error)
}

type feedUseCase interface {
	Get(ctx context.Context, userID int64, page, perPage int) (feeduc.Page, error)
}

type tasteUseCase interface {
	Summary(ctx context.Context, userID int64) (vectorize.Summary, error)
}

type searchUseCase interface {
	Search(ctx context.Context, q searchuc.Query) (searchuc.Page, error)
}

type syncUseCase interface {
	Checksum(ctx context.Context, typ syncuc.Type) (syncuc.Checksum, error)
	IDs(ctx context.Context, typ syncuc.Type) ([]string, error)
}

type batchUseCase interface {
	RunCycle(ctx context.Context) (batchuc.CycleReport, error)
	RecalculateUser(ctx context.Context, userID int64, force bool) (batchuc.UserReport, error)
}

// Client is the feedex SDK entry point.
type Client struct {
	store     db.Store
	quickSvc  quickUseCase
	catSvc    catalogUseCase
	eventSvc  eventUseCase
	feedSvc   feedUseCase
	tasteSvc  tasteUseCase
	searchSvc searchUseCase
	syncSvc   syncUseCase
	batchSvc  batchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a feedex Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("feedex: storage required (use WithRedis or WithMemory)")
	}

	engCfg, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("feedex: database not ready: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	eng, err := engine.New(ctx, engCfg, store, cfg.logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("feedex: wire engine: %w", err)
	}
	return wireClient(eng, obs), nil
}

// engineConfig starts from the env file (or defaults) and applies options.
func engineConfig(cfg *clientConfig) (config.Config, error) {
	var engCfg config.Config
	if cfg.env != "" {
		loaded, err := config.Load(cfg.env)
		if err != nil {
			return config.Config{}, fmt.Errorf("feedex: load config: %w", err)
		}
		engCfg = loaded
	}
	engCfg.Database.Driver = cfg.driver
	engCfg.Database.Addrs = cfg.addrs
	engCfg.Database.Password = cfg.password
	if cfg.keyPrefix != "" {
		engCfg.Storage.KeyPrefix = cfg.keyPrefix
	}
	if cfg.feedSize > 0 {
		engCfg.Feed.Size = cfg.feedSize
	}
	if engCfg.HTTP.Port == 0 {
		// not served; keeps validation happy
		engCfg.HTTP.Port = 8080
	}
	engCfg.ApplyDefaults()
	if err := engCfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("feedex: invalid config: %w", err)
	}
	return engCfg, nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return memory.New(), nil
	case "redis":
		if len(cfg.addrs) == 0 {
			return nil, errors.New("feedex: redis address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("feedex: create redis store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("feedex: unknown driver %q", cfg.driver)
	}
}

func wireClient(eng *engine.Engine, obs *observer) *Client {
	return &Client{
		store:     eng.Store,
		quickSvc:  eng.Quick,
		catSvc:    eng.Catalog,
		eventSvc:  eng.Events,
		feedSvc:   eng.Feed,
		tasteSvc:  eng.Taste,
		searchSvc: eng.Search,
		syncSvc:   eng.Sync,
		batchSvc:  eng.Batch,
		healthSvc: eng.Health,
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}
