// Package app wires configuration, the store, the core components and
// the HTTP server into one lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"chatdb/internal/janitor"
	"chatdb/pkg/api"
	"chatdb/pkg/assets"
	"chatdb/pkg/auth"
	"chatdb/pkg/banner"
	"chatdb/pkg/config"
	"chatdb/pkg/convindex"
	"chatdb/pkg/directory"
	"chatdb/pkg/logger"
	"chatdb/pkg/shutdown"
	"chatdb/pkg/store"
	"chatdb/pkg/syncer"
	"chatdb/pkg/thread"
	"chatdb/pkg/validation"
)

// App owns the server components and their shutdown order.
type App struct {
	cfg     *config.Config
	version string

	pebble *store.Pebble
	srv    *http.Server
}

// New opens the store and builds the component graph. Call Run to
// start serving.
func New(cfg *config.Config, version string) (*App, error) {
	validation.SetRules(validation.Rules{
		MaxContentLen: cfg.Validation.MaxContentLen,
		MaxNameLen:    cfg.Validation.MaxNameLen,
	})

	p, err := store.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Storage.DBPath, err)
	}

	dir := directory.New(p)
	ix := convindex.New(p)
	th := thread.New(p)
	sy := syncer.New(p, dir, ix, th)
	as := assets.New(cfg.Assets.Dir, cfg.Assets.BaseURL)

	gate := auth.NewGate(cfg.Security.APIKeys, cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst)
	router := api.NewRouter(&api.Handler{
		Sync:    sy,
		Dir:     dir,
		Index:   ix,
		Threads: th,
		Assets:  as,
	}, gate)

	srv := &http.Server{Addr: cfg.Addr(), Handler: router}
	return &App{cfg: cfg, version: version, pebble: p, srv: srv}, nil
}

// Run starts the janitor and the HTTP server and blocks until ctx is
// canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Janitor.Enabled {
		if err := janitor.Start(ctx, a.pebble, a.cfg.Janitor.Cron); err != nil {
			return err
		}
	}

	banner.Print(a.cfg.Addr(), a.cfg.Storage.DBPath, a.version)

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("http_listening", zap.String("addr", a.cfg.Addr()))
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdown.Drain(a.srv, a.pebble.Close)
		return nil
	case err := <-errCh:
		_ = a.pebble.Close()
		return err
	}
}
