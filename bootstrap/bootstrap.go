// Package bootstrap assembles the cascade engine and its collaborators
// from configuration: logger, document store, digest store, registry,
// dispatcher and session.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/embedsync/cascade/cascade"
	"github.com/embedsync/cascade/config"
	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
	"github.com/embedsync/cascade/session"
	"github.com/embedsync/cascade/signal"
	"github.com/embedsync/cascade/store"
	"github.com/embedsync/cascade/store/postgres"
	"github.com/embedsync/cascade/tracker"
)

// Setup initializes all components. This is the main entry point for
// applications embedding the library.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing cascade engine",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Document store
	switch {
	case options.customStore != nil:
		components.Store = options.customStore
	case options.skipDB:
		components.Store = store.NewMemory()
	default:
		if err := components.connectPostgres(ctx, options); err != nil {
			components.Shutdown(ctx)
			return nil, err
		}
	}

	// 4. Watch-digest store
	switch {
	case options.customHashStore != nil:
		components.HashStore = options.customHashStore
	case options.skipRedis || !components.Config.Redis.Enabled:
		components.HashStore = tracker.NewMemoryStore()
	default:
		if err := components.connectRedis(ctx); err != nil {
			components.Shutdown(ctx)
			return nil, err
		}
	}

	// 5. Engine wiring
	components.Registry = entity.NewRegistry()
	components.Signals = signal.NewDispatcher()
	components.Tracker = tracker.New(components.HashStore, components.Logger)
	components.Engine = cascade.New(
		components.Registry,
		components.Store,
		components.Signals,
		components.Tracker,
		components.Logger,
	)
	components.Session = session.New(components.Store, components.Signals, components.Logger)

	return components, nil
}

func (c *Components) connectPostgres(ctx context.Context, options *options) error {
	poolConfig, err := pgxpool.ParseConfig(c.Config.DatabaseURL())
	if err != nil {
		return fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(c.Config.Database.MaxConns)
	poolConfig.MinConns = int32(c.Config.Database.MinConns)
	poolConfig.MaxConnLifetime = c.Config.Database.MaxLifetime
	poolConfig.MaxConnIdleTime = c.Config.Database.MaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	c.Logger.Info("database connected",
		"host", c.Config.Database.Host,
		"db", c.Config.Database.Database,
	)

	c.Pool = pool
	c.addCleanup(func() error {
		c.Logger.Info("closing database connection pool")
		pool.Close()
		return nil
	})

	pgStore, err := postgres.New(pool, c.Config.Cascade.DocumentTable, c.Logger)
	if err != nil {
		return err
	}
	if options.migrate {
		if err := pgStore.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate document store: %w", err)
		}
	}
	c.Store = pgStore
	return nil
}

func (c *Components) connectRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("ping redis: %w", err)
	}

	c.Logger.Info("redis connected", "addr", c.Config.Redis.Addr)

	c.Redis = client
	c.addCleanup(func() error {
		c.Logger.Info("closing redis client")
		return client.Close()
	})

	c.HashStore = tracker.NewRedisStore(client, c.Config.Cascade.DigestKey, c.Logger)
	return nil
}
