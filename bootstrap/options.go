package bootstrap

import (
	"github.com/embedsync/cascade/config"
	"github.com/embedsync/cascade/logger"
	"github.com/embedsync/cascade/store"
	"github.com/embedsync/cascade/tracker"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipDB          bool
	skipRedis       bool
	migrate         bool
	customLogger    *logger.Logger
	customConfig    *config.Config
	customStore     store.Store
	customHashStore tracker.HashStore
}

// WithoutDB skips Postgres initialization and uses the in-memory
// document store
func WithoutDB() Option {
	return func(o *options) {
		o.skipDB = true
	}
}

// WithoutRedis skips redis initialization and keeps watch digests
// in-process
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
	}
}

// WithMigrate runs the document-store DDL after connecting
func WithMigrate() Option {
	return func(o *options) {
		o.migrate = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithStore uses a caller-provided document store
func WithStore(st store.Store) Option {
	return func(o *options) {
		o.customStore = st
	}
}

// WithHashStore uses a caller-provided watch-digest store
func WithHashStore(hs tracker.HashStore) Option {
	return func(o *options) {
		o.customHashStore = hs
	}
}

func defaultOptions() *options {
	return &options{}
}
