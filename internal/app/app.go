// Package app wires the janitor together from its configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jonboulle/clockwork"

	"github.com/nhle/circuit-janitor/internal/hooks"
	"github.com/nhle/circuit-janitor/internal/lifecycle"
	"github.com/nhle/circuit-janitor/internal/model"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/provider/catalog"
	"github.com/nhle/circuit-janitor/internal/reconcile"
	"github.com/nhle/circuit-janitor/internal/source"
	"github.com/nhle/circuit-janitor/internal/store"
	appsync "github.com/nhle/circuit-janitor/internal/sync"
)

// App holds the long-lived components shared by every command.
type App struct {
	Config     *model.AppConfig
	Store      *store.SQLiteStore
	Registry   *provider.Registry
	Hooks      *hooks.Dispatcher
	Reconciler *reconcile.Reconciler
	Sweeper    *lifecycle.Sweeper
	Clock      clockwork.Clock

	log *slog.Logger
}

type options struct {
	clock clockwork.Clock
	hooks []hooks.Hook
}

// Option customizes New.
type Option func(*options)

// WithClock replaces the wall clock.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithHooks makes extra hooks available to the hooks.started and
// hooks.ended lists, by name.
func WithHooks(hs ...hooks.Hook) Option {
	return func(o *options) { o.hooks = append(o.hooks, hs...) }
}

// New opens the store and builds the providers, hooks, reconciler and
// sweeper described by cfg. Every enabled provider gets its row.
func New(ctx context.Context, cfg *model.AppConfig, log *slog.Logger, opts ...Option) (*App, error) {
	o := options{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reg, err := catalog.Registry(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("building providers: %w", err)
	}

	dispatcher, err := NewDispatcher(cfg, log, o.hooks...)
	if err != nil {
		return nil, err
	}

	s, err := openStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	rec := reconcile.New(s, dispatcher, log,
		reconcile.WithClock(o.clock),
		reconcile.WithObserver(metricsObserver{}),
	)
	if err := rec.EnsureProviders(ctx, reg, cfg.Providers.Escalation); err != nil {
		_ = s.Close()
		return nil, err
	}

	return &App{
		Config:     cfg,
		Store:      s,
		Registry:   reg,
		Hooks:      dispatcher,
		Reconciler: rec,
		Sweeper:    lifecycle.New(s, dispatcher, o.clock, cfg.Lifecycle.Lookahead, log),
		Clock:      o.clock,
		log:        log,
	}, nil
}

func openStore(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return s, nil
}

// Poller returns a poller reading provider mail through opener.
func (a *App) Poller(opener source.Opener) *appsync.Poller {
	return appsync.New(opener, a.Registry, a.Reconciler, a.Sweeper, a.Clock, appsync.Config{
		Interval:   a.Config.Lifecycle.CheckInterval,
		Timeout:    a.Config.Mail.Timeout,
		Concurrent: a.Config.Mail.ConcurrentProviders,
	}, a.log)
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
