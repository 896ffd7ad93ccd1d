// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zombify Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/zombify/zombify/internal/access"
	"github.com/zombify/zombify/internal/access/policy"
	"github.com/zombify/zombify/internal/config"
	"github.com/zombify/zombify/internal/engine"
	"github.com/zombify/zombify/internal/engine/cache"
	"github.com/zombify/zombify/internal/engine/memory"
	"github.com/zombify/zombify/internal/engine/permit"
	"github.com/zombify/zombify/internal/logging"
	"github.com/zombify/zombify/internal/player"
	"github.com/zombify/zombify/internal/store"
	"github.com/zombify/zombify/internal/story"
	"github.com/zombify/zombify/internal/tool"
	"github.com/zombify/zombify/internal/tool/handlers"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// ConfigLoader loads configuration from the command flags.
	// Default: config.Load
	ConfigLoader func(flags *pflag.FlagSet) (*config.Config, error)

	// StoreOpener connects the persistent store.
	// Default: openPostgres
	StoreOpener func(ctx context.Context, databaseURL string) (*Stores, error)

	// EngineFactory builds the policy engine, before any cache decorator.
	// Default: newEngine
	EngineFactory func(cfg *config.Config) (engine.Engine, error)

	// RedisFactory creates the decision cache client.
	// Default: redis.NewClient
	RedisFactory func(addr string) redis.UniversalClient

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// Metrics receives the process metrics.
	// Default: prometheus.DefaultRegisterer and prometheus.DefaultGatherer
	Metrics *prometheus.Registry

	metricsOnce sync.Once
}

// Stores holds the repositories plus the probe and close hooks of their
// backing connection.
type Stores struct {
	Users  store.UserRepository
	States store.StoryStateRepository
	Ping   func(ctx context.Context) error
	Close  func()
}

// Migrator is the subset of store.Migrator the migrate command uses.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Version() (uint, bool, error)
	PendingMigrations() ([]uint, error)
	AppliedMigrations() ([]uint, error)
	Close() error
}

// Pinger is implemented by engines that can probe their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (d *Deps) loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	if d.ConfigLoader != nil {
		return d.ConfigLoader(flags)
	}
	return config.Load(flags)
}

func (d *Deps) openStores(ctx context.Context, databaseURL string) (*Stores, error) {
	if d.StoreOpener != nil {
		return d.StoreOpener(ctx, databaseURL)
	}
	return openPostgres(ctx, databaseURL)
}

func (d *Deps) newEngine(cfg *config.Config) (engine.Engine, error) {
	if d.EngineFactory != nil {
		return d.EngineFactory(cfg)
	}
	return newEngine(cfg)
}

func (d *Deps) newRedis(addr string) redis.UniversalClient {
	if d.RedisFactory != nil {
		return d.RedisFactory(addr)
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

func (d *Deps) newMigrator(databaseURL string) (Migrator, error) {
	if d.MigratorFactory != nil {
		return d.MigratorFactory(databaseURL)
	}
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

var defaultMetricsOnce sync.Once

func (d *Deps) registerMetrics() {
	register := func(reg prometheus.Registerer) {
		tool.RegisterMetrics(reg)
		permit.RegisterMetrics(reg)
		cache.RegisterMetrics(reg)
		policy.RegisterMetrics(reg)
	}
	if d.Metrics != nil {
		d.metricsOnce.Do(func() { register(d.Metrics) })
		return
	}
	defaultMetricsOnce.Do(func() { register(prometheus.DefaultRegisterer) })
}

func (d *Deps) gatherer() prometheus.Gatherer {
	if d.Metrics != nil {
		return d.Metrics
	}
	return prometheus.DefaultGatherer
}

func openPostgres(ctx context.Context, databaseURL string) (*Stores, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database url is required (--database-url or DATABASE_URL)")
	}
	pool, err := store.Open(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Users:  store.NewPostgresUserRepository(pool),
		States: store.NewPostgresStoryStateRepository(pool),
		Ping:   pool.Ping,
		Close:  pool.Close,
	}, nil
}

func newEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Kind {
	case config.EngineMemory:
		return memory.New(memory.WithDefaultTenant(cfg.Engine.DefaultTenant)), nil
	case config.EnginePermit:
		return permit.New(permit.Config{
			APIURL:        cfg.Engine.APIURL,
			PDPURL:        cfg.Engine.PDPURL,
			APIKey:        cfg.Engine.APIKey,
			DefaultTenant: cfg.Engine.DefaultTenant,
			Timeout:       cfg.Engine.Timeout,
		})
	default:
		return nil, oops.Code(config.CodeInvalid).With("engine", cfg.Engine.Kind).Errorf("unknown engine kind %q", cfg.Engine.Kind)
	}
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Service: "zombify",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  w,
	}), nil
}

// app is the wired object graph of one command invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	engine     engine.Engine
	redis      redis.UniversalClient
	stores     *Stores
	admin      *policy.Administrator
	dispatcher *tool.Dispatcher
}

func (a *app) Close() {
	if a.stores != nil && a.stores.Close != nil {
		a.stores.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// buildEngine wires the engine and, when configured, its decision cache.
func (d *Deps) buildEngine(cfg *config.Config, logger *slog.Logger) (engine.Engine, redis.UniversalClient, error) {
	e, err := d.newEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Cache.RedisAddr == "" {
		return e, nil, nil
	}
	client := d.newRedis(cfg.Cache.RedisAddr)
	return cache.New(e, client, cfg.Cache.TTL, logger), client, nil
}

// buildApp wires every component. withStore=false skips the database for
// commands that only talk to the engine.
func (d *Deps) buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withStore bool) (*app, error) {
	d.registerMetrics()
	if logger == nil {
		logger = slog.Default()
	}

	a := &app{cfg: cfg, logger: logger}
	var err error
	a.engine, a.redis, err = d.buildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.admin = policy.NewAdministrator(a.engine, logger)

	if !withStore {
		return a, nil
	}

	a.stores, err = d.openStores(ctx, cfg.Database.URL)
	if err != nil {
		a.Close()
		return nil, err
	}

	constraint, err := story.ParseConstraint(cfg.Story.SchemaConstraint)
	if err != nil {
		a.Close()
		return nil, err
	}
	storyOpts := []story.Option{story.WithLogger(logger)}
	if constraint != nil {
		storyOpts = append(storyOpts, story.WithSchemaConstraint(constraint))
	}

	accessSvc := access.NewService(a.engine)
	reg := tool.NewRegistry()
	err = handlers.Register(reg, handlers.Services{
		Policy:     a.admin,
		Access:     accessSvc,
		Story:      story.NewService(a.stores.States, storyOpts...),
		Players:    player.NewReconciler(a.engine, a.stores.Users, logger),
		AdminGrant: tool.Grant{Action: cfg.Admin.Action, Resource: cfg.Admin.Resource},
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.dispatcher, err = tool.NewDispatcher(reg, accessSvc, tool.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
