package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/config"
	"github.com/kailas-cloud/feedex/internal/engine"
	logpkg "github.com/kailas-cloud/feedex/internal/logger"
	"github.com/kailas-cloud/feedex/internal/metrics"
	"github.com/kailas-cloud/feedex/internal/supervisor"
	chiTransport "github.com/kailas-cloud/feedex/internal/transport/chi"
	"github.com/kailas-cloud/feedex/internal/transport/events"
	"github.com/kailas-cloud/feedex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, env, logger); err != nil {
		logger.Fatal("feedex stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, env string, logger *zap.Logger) error {
	logger.Info("Starting feedex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Int("vector_dimension", cfg.Vectorization.VectorDimension),
		zap.Bool("events_enabled", cfg.Events.Enabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := engine.OpenStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEngineMetrics()

	eng, err := engine.New(ctx, cfg, store, logger)
	if err != nil {
		return err
	}

	tree := supervisor.NewTree(logger, supervisor.TreeConfig{
		ShutdownTimeout: time.Duration(cfg.HTTP.ShutdownSec) * time.Second,
	})

	if cfg.Events.Enabled {
		consumer, err := newConsumer(ctx, cfg.Events, eng, logger)
		if err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()
		eng.Health.WithConsumer(consumer)
		tree.AddWorkerService(consumer)
	}

	tree.AddWorkerService(supervisor.NewBatchScheduler(
		eng.Batch, cfg.Batch.Interval, cfg.Batch.InitialDelay, logger,
	))

	handler := chiTransport.NewServer(
		eng.Feed, eng.Taste, eng.Search, eng.Sync, eng.Events, eng.Batch, eng.Health, logger,
	).WithAPIKeys(cfg.Auth.APIKeys).Handler()

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	tree.AddAPIService(supervisor.NewHTTPService(srv, time.Duration(cfg.HTTP.ShutdownSec)*time.Second))

	logger.Info("Starting HTTP server", zap.String("addr", addr))
	err = tree.Serve(ctx)
	logger.Info("Received shutdown signal")

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, u := range report {
			logger.Warn("service did not stop in time", zap.String("service", u.Name))
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

func newConsumer(ctx context.Context, cfg config.EventsConfig, eng *engine.Engine, logger *zap.Logger) (*events.Consumer, error) {
	if err := events.Provision(ctx, cfg.URL, events.StreamConfig{
		Name:     cfg.Topic,
		Subjects: cfg.Subjects,
	}); err != nil {
		return nil, fmt.Errorf("provision event stream: %w", err)
	}

	subCfg := events.DefaultSubscriberConfig(cfg.URL)
	subCfg.QueueGroup = cfg.QueueGroup
	subCfg.DurableName = cfg.Durable

	sub, err := events.NewNATSSubscriber(subCfg, logpkg.NewWatermillAdapter(logger))
	if err != nil {
		return nil, err
	}
	logger.Info("Event consumer configured",
		zap.String("url", cfg.URL),
		zap.String("topic", cfg.Topic),
		zap.String("durable", cfg.Durable),
	)
	return events.NewConsumer(sub, cfg.Topic, eng.Events, logger), nil
}
