// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/streamplay/internal/config"
	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/session"
)

// App owns the long-lived runtime lifecycle (config watcher, reload wiring,
// session sweeper) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.Holder
	sessions     *session.Manager
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. holder and sessions may be nil.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder, sessions *session.Manager) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    holder,
		sessions:     sessions,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned background subsystems and blocks until ctx is
// cancelled or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfgHolder != nil {
		// The watcher is best-effort: a failure leaves SIGHUP as the only
		// reload trigger.
		g.Go(func() error {
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).
					Str(xglog.FieldEvent, "config.watcher_start_failed").
					Msg("failed to start config watcher")
			}
			return nil
		})

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	if a.sessions != nil {
		g.Go(func() error {
			return a.sessions.Run(ctx)
		})
	}

	// Main server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}

// apply pushes the hot-reloadable parts of cfg into the running daemon.
func (a *App) apply(cfg config.AppConfig) {
	if a.sessions != nil {
		a.sessions.ApplySettings(PlayerSettings(cfg.Player))
	}
	if cfg.LogLevel != "" {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.GlobalLevel() {
			zerolog.SetGlobalLevel(lvl)
			a.logger.Info().
				Str(xglog.FieldEvent, "log.level_changed").
				Str("level", lvl.String()).
				Msg("log level changed")
		}
	}
	a.logger.Info().
		Str(xglog.FieldEvent, "config.applied").
		Int("max_sessions", cfg.Player.MaxSessions).
		Dur("idle_timeout", cfg.Player.IdleTimeout).
		Msg("applied reloaded player settings")
}
