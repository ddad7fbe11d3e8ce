package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/embedsync/cascade/cascade"
	"github.com/embedsync/cascade/config"
	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
	"github.com/embedsync/cascade/session"
	"github.com/embedsync/cascade/signal"
	"github.com/embedsync/cascade/store"
	"github.com/embedsync/cascade/tracker"
)

// Components holds all initialized dependencies
type Components struct {
	Config    *config.Config
	Logger    *logger.Logger
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Store     store.Store
	HashStore tracker.HashStore
	Registry  *entity.Registry
	Signals   *signal.Dispatcher
	Tracker   *tracker.Tracker
	Engine    *cascade.Engine
	Session   *session.Session

	// Internal
	cleanupFuncs []func() error
}

// Shutdown performs graceful shutdown of all components
// Should be called with defer after Setup()
func (c *Components) Shutdown(ctx context.Context) error {
	c.Logger.Info("shutting down components")

	var errs []error

	// Run cleanup functions in reverse order (LIFO)
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			errs = append(errs, err)
			c.Logger.Error("cleanup error", "error", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	c.Logger.Info("shutdown complete")
	return nil
}

// Health checks health of all components
func (c *Components) Health(ctx context.Context) error {
	if c.Pool != nil {
		if err := c.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("database unhealthy: %w", err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unhealthy: %w", err)
		}
	}

	return nil
}

// addCleanup registers a cleanup function
func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
