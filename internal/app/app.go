// Package app assembles the retrieval service from configuration. Both
// binaries build the same object graph; they differ only in how they drive
// the engine.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/helixir/pubmed-retrieval-service/internal/cache"
	"github.com/helixir/pubmed-retrieval-service/internal/config"
	"github.com/helixir/pubmed-retrieval-service/internal/database"
	"github.com/helixir/pubmed-retrieval-service/internal/engine"
	"github.com/helixir/pubmed-retrieval-service/internal/events"
	"github.com/helixir/pubmed-retrieval-service/internal/observability"
	"github.com/helixir/pubmed-retrieval-service/internal/pdf"
	"github.com/helixir/pubmed-retrieval-service/internal/registry"
	"github.com/helixir/pubmed-retrieval-service/internal/repository"
	"github.com/helixir/pubmed-retrieval-service/internal/resolver"
	"github.com/helixir/pubmed-retrieval-service/internal/transport"
)

// App holds the wired components. Optional parts are nil when disabled.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
	Registry *registry.Client
	Fetcher  *pdf.Fetcher
	Engine   *engine.Engine

	DB          *database.DB
	RecordRepo  *repository.PgRecordRepository
	OutcomeRepo *repository.PgOutcomeRepository
	Publisher   *events.Publisher
	Cache       *cache.RedisCache

	closers []func() error
}

// Option customizes New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	sinks      []observability.EventSink
}

// WithRegisterer registers metrics with reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSinks adds event sinks after the log and metrics sinks.
func WithSinks(sinks ...observability.EventSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// New builds the object graph described by cfg. Resources opened before a
// failure are released before New returns.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (_ *App, err error) {
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Metrics = observability.NewMetricsWithRegistry(cfg.Metrics.Namespace, o.registerer)

	var registryOpts []registry.Option
	registryOpts = append(registryOpts, registry.WithMetrics(a.Metrics))
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
		registryOpts = append(registryOpts, registry.WithCache(rc))
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("registry cache enabled")
	}

	a.Registry = registry.New(registry.Config{
		BaseURL:    cfg.Registry.BaseURL,
		APIKey:     cfg.Registry.APIKey,
		Timeout:    cfg.Registry.Timeout,
		RateLimit:  cfg.Registry.RateLimit,
		MaxRetries: cfg.Registry.MaxRetries,
	}, logger, registryOpts...)

	policy := pdf.DefaultValidationPolicy()
	policy.AcceptEmpty = cfg.Fetch.AcceptEmpty
	a.Fetcher = pdf.NewFetcher(pdf.Config{
		Dir:        cfg.Fetch.Dir,
		Timeout:    cfg.Fetch.Timeout,
		MaxSize:    cfg.Fetch.MaxSize,
		Cookie:     cfg.Fetch.Cookie,
		MaxRetries: cfg.Fetch.MaxRetries,
		Limiter: transport.NewHostLimiter(transport.LimitConfig{
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Burst:             cfg.Fetch.Burst,
			MaxInFlight:       cfg.Fetch.MaxInFlight,
			HostRates:         cfg.Fetch.HostRates,
		}),
		AllowPrivateNetworks: cfg.Fetch.AllowPrivateNetworks,
		Policy:               policy,
	})

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithWorkers(cfg.Engine.Workers),
	}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, func() error { db.Close(); return nil })

		if cfg.Database.MigrationAutoRun {
			if err := migrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
				return nil, err
			}
		}

		a.RecordRepo = repository.NewPgRecordRepository(db)
		a.OutcomeRepo = repository.NewPgOutcomeRepository(db)
		engineOpts = append(engineOpts,
			engine.WithRecordStore(a.RecordRepo),
			engine.WithRecorders(a.OutcomeRepo),
		)
	}

	if cfg.Kafka.Enabled {
		a.Publisher = events.NewPublisher(events.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		a.closers = append(a.closers, a.Publisher.Close)
		engineOpts = append(engineOpts, engine.WithRecorders(a.Publisher))
	}

	sinks := observability.MultiSink{
		observability.NewLogSink(logger),
		observability.NewMetricsSink(a.Metrics),
	}
	sinks = append(sinks, o.sinks...)
	engineOpts = append(engineOpts, engine.WithSink(sinks))

	a.Engine = engine.New(
		a.Registry,
		resolver.New(resolver.Catalog(cfg.Catalog.Sources)),
		resolver.NewScraper(a.Fetcher.Client()),
		a.Fetcher,
		engineOpts...,
	)
	return a, nil
}

func migrateUp(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
