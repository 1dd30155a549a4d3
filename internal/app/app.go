// Package app provides the top-level application lifecycle management for the
// exchange engine. It wires together all dependencies (stores, caches, the
// refbase client, the filter and action services, and notifications) and
// starts the long-running goroutines.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/courtside/refexchange/internal/config"
	"github.com/courtside/refexchange/internal/domain"
	"github.com/courtside/refexchange/internal/notify"
	"github.com/courtside/refexchange/internal/server"
	"github.com/courtside/refexchange/internal/server/handler"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the engine
// goroutines, and blocks until the context is cancelled. On return it runs
// all registered cleanup functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting engine",
		slog.String("referee_id", a.cfg.Referee.ID),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	g, ctx := errgroup.WithContext(ctx)

	// Reachability of the system of record.
	g.Go(func() error {
		return deps.Monitor.Run(ctx)
	})

	// Outbox replay on reconnect.
	g.Go(func() error {
		return deps.Replayer.Run(ctx)
	})

	// Change push to connected clients.
	g.Go(func() error {
		return deps.Hub.Run(ctx)
	})

	// Periodic pool refresh.
	g.Go(func() error {
		return a.refreshLoop(ctx, deps)
	})

	// Outbox archival to object storage.
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// refreshLoop keeps the pool and the referee's own assignments warm. The
// first iteration runs immediately so clients connecting at startup see data;
// afterwards the pool is refetched on the configured interval. A fetch
// failure degrades to the last snapshot and is reported once per outage.
func (a *App) refreshLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(a.cfg.Engine.PoolRefreshInterval.Duration)
	defer ticker.Stop()

	degraded := false
	refresh := func() {
		_ = deps.Assignments.Refresh(ctx)

		var firstErr error
		for _, tab := range []domain.Tab{domain.TabOpen, domain.TabMine} {
			if _, err := deps.Pool.Pool(ctx, tab); err != nil && firstErr == nil {
				firstErr = err
			}
		}

		if firstErr != nil {
			a.logger.WarnContext(ctx, "pool refresh failed",
				slog.String("error", firstErr.Error()),
			)
			if !degraded {
				degraded = true
				deps.Notifier.Notify(ctx, notify.EventPoolDegraded,
					"Exchange pool degraded",
					fmt.Sprintf("The exchange pool could not be refreshed: %v. Showing the last known snapshot.", firstErr),
				)
			}
			return
		}
		degraded = false
	}

	refresh()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh()
		}
	}
}

// archiveLoop periodically exports delivered outbox entries older than the
// retention window to object storage and prunes them from Postgres, plus an
// audit snapshot of closed exchanges from the referee's own tab.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(a.cfg.S3.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()

			cutoff := now.AddDate(0, 0, -a.cfg.S3.RetentionDays)
			count, err := deps.Archiver.ArchiveOutbox(ctx, cutoff)
			if err != nil {
				a.logger.WarnContext(ctx, "outbox archival failed",
					slog.String("error", err.Error()),
				)
			} else if count > 0 {
				a.logger.InfoContext(ctx, "outbox entries archived",
					slog.Int64("count", count),
				)
			}

			mine, err := deps.Pool.Pool(ctx, domain.TabMine)
			if err != nil {
				continue
			}
			if _, err := deps.Archiver.ArchivePool(ctx, mine, now); err != nil {
				a.logger.WarnContext(ctx, "pool archival failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// startHTTPServer adds the API server to the errgroup: one goroutine serving
// requests, one waiting on the context to shut it down gracefully.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(deps.Monitor, a.logger),
		Exchanges: handler.NewExchangeHandler(deps.Browse, deps.Pool, deps.Executor, a.logger),
		Settings:  handler.NewSettingsHandler(deps.Settings, a.logger),
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  time.Minute,
	}, handlers, deps.Hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("server shutdown failed",
				slog.String("error", err.Error()),
			)
		}
		return ctx.Err()
	})
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
