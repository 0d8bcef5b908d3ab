// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon assembles the streamplay runtime from the configuration
// and owns its lifecycle: HTTP server, config watcher, session sweeper and
// graceful shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamplay/internal/api"
	"github.com/ManuGH/streamplay/internal/api/middleware"
	"github.com/ManuGH/streamplay/internal/bus"
	"github.com/ManuGH/streamplay/internal/cache"
	"github.com/ManuGH/streamplay/internal/catalog"
	"github.com/ManuGH/streamplay/internal/config"
	"github.com/ManuGH/streamplay/internal/health"
	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/media"
	"github.com/ManuGH/streamplay/internal/resilience"
	"github.com/ManuGH/streamplay/internal/resume"
	"github.com/ManuGH/streamplay/internal/session"
	"github.com/ManuGH/streamplay/internal/telemetry"
)

// ServiceName identifies the daemon in logs and traces.
const ServiceName = "streamplay"

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// Runtime is the assembled object graph of one daemon process.
type Runtime struct {
	Catalog  catalog.Repository
	Provider media.Provider
	Sessions *session.Manager
	Health   *health.Manager
	API      *api.Server

	logger  zerolog.Logger
	closers []closer
}

// PlayerSettings maps the player section onto session settings.
func PlayerSettings(p config.PlayerConfig) session.Settings {
	return session.Settings{
		MaxSessions:       p.MaxSessions,
		IdleTimeout:       p.IdleTimeout,
		ControlsHideDelay: p.ControlsHideDelay,
		Resume: resume.Policy{
			MinSeconds:  p.ResumeMinSeconds,
			TailSeconds: p.ResumeTailSeconds,
		},
	}
}

// Build wires every component selected by cfg. On error everything built
// so far is closed again.
func Build(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (rt *Runtime, err error) {
	rt = &Runtime{logger: logger, Health: health.NewManager(cfg.Version)}
	defer func() {
		if err != nil {
			_ = rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return rt, fmt.Errorf("telemetry: %w", err)
	}
	rt.onClose("telemetry", tp.Shutdown)

	var rdb *redis.Client
	if cfg.Cache.Backend == "redis" || cfg.Bus.Backend == "redis" {
		rdb, err = cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return rt, err
		}
		rt.onClose("redis", func(context.Context) error { return rdb.Close() })
		rt.Health.RegisterChecker(health.NewPingChecker("redis", true, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	if err := rt.buildCatalog(ctx, cfg.Catalog); err != nil {
		return rt, err
	}
	if err := rt.buildProvider(cfg, rdb); err != nil {
		return rt, err
	}

	var eventBus bus.Bus
	switch cfg.Bus.Backend {
	case "redis":
		eventBus = bus.NewRedisBus(rdb, cfg.Redis.Prefix+"bus:")
	default:
		eventBus = bus.NewMemoryBus()
	}

	store, err := resume.NewStore(cfg.Resume.Backend, cfg.DataDir, cfg.Resume.TTL)
	if err != nil {
		return rt, fmt.Errorf("resume store: %w", err)
	}
	rt.onClose("resume", func(context.Context) error { return store.Close() })
	if hc, ok := store.(healthChecker); ok {
		rt.Health.RegisterChecker(health.NewPingChecker("resume", false, hc.HealthCheck))
	}

	rt.Sessions, err = session.NewManager(session.Config{
		Provider: rt.Provider,
		Bus:      eventBus,
		Resume:   store,
		Settings: PlayerSettings(cfg.Player),
		Logger:   xglog.WithComponent("session"),
	})
	if err != nil {
		return rt, err
	}
	// Registered after the resume store so sessions persist before it closes.
	rt.onClose("sessions", func(context.Context) error {
		rt.Sessions.CloseAll()
		return nil
	})
	rt.Health.RegisterChecker(health.NewSessionCapacityChecker(rt.Sessions.Count, rt.Sessions.Limit))

	stack := middleware.StackConfig{
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		RateLimitPerMinute: cfg.Server.RateLimit,
	}
	if cfg.Telemetry.Enabled {
		stack.TracingService = ServiceName + "-api"
	}
	rt.API, err = api.New(api.Config{
		Catalog:  rt.Catalog,
		Provider: rt.Provider,
		Sessions: rt.Sessions,
		Health:   rt.Health,
		Stack:    stack,
		Logger:   xglog.WithComponent("api"),
	})
	if err != nil {
		return rt, err
	}
	rt.onClose("api-streams", func(context.Context) error {
		rt.API.Shutdown()
		return nil
	})
	return rt, nil
}

func (rt *Runtime) buildCatalog(ctx context.Context, cfg config.CatalogConfig) error {
	switch cfg.Backend {
	case "sqlite":
		repo, err := catalog.OpenSQLiteRepository(ctx, cfg.Path)
		if err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		rt.onClose("catalog", func(context.Context) error { return repo.Close() })
		rt.Health.RegisterChecker(health.NewPingChecker("catalog", true, repo.HealthCheck))
		rt.Catalog = repo
	default:
		rt.Catalog = catalog.NewMemoryRepository()
	}

	if cfg.SeedFile != "" {
		n, err := catalog.LoadSeed(ctx, rt.Catalog, cfg.SeedFile)
		if err != nil {
			return err
		}
		rt.logger.Info().
			Str(xglog.FieldEvent, "catalog.seeded").
			Str(xglog.FieldPath, cfg.SeedFile).
			Int("items", n).
			Msg("catalog seed imported")
	}
	return nil
}

func (rt *Runtime) buildProvider(cfg config.AppConfig, rdb *redis.Client) error {
	var provider media.Provider
	switch cfg.Provider.Kind {
	case "http":
		p, err := media.NewHTTPProvider(media.HTTPConfig{
			BaseURL:          cfg.Provider.BaseURL,
			Token:            cfg.Provider.Token,
			Timeout:          cfg.Provider.Timeout,
			RPS:              cfg.Provider.RPS,
			Burst:            cfg.Provider.Burst,
			BreakerThreshold: cfg.Provider.BreakerThreshold,
			BreakerReset:     cfg.Provider.BreakerReset,
		})
		if err != nil {
			return fmt.Errorf("media provider: %w", err)
		}
		rt.Health.RegisterChecker(health.NewPingChecker("media_http", false, func(context.Context) error {
			if p.BreakerState() == resilience.StateOpen {
				return errors.New("circuit breaker open")
			}
			return nil
		}))
		provider = p
	default:
		provider = media.NewCatalogProvider(rt.Catalog)
	}

	var c cache.Cache
	switch cfg.Cache.Backend {
	case "none":
		rt.Provider = provider
		return nil
	case "redis":
		c = cache.NewRedisCache(rdb, cfg.Redis.Prefix+"cache:", xglog.WithComponent("cache"))
	default:
		mc := cache.NewMemoryCache(time.Minute)
		rt.onClose("cache", func(context.Context) error { return mc.Close() })
		c = mc
	}
	cached := media.NewCachedProvider(provider, c, cfg.Cache.TTL, xglog.WithComponent("media"))
	if cfg.Provider.Kind != "http" {
		stop := cached.WatchCatalog(rt.Catalog)
		rt.onClose("cache-invalidation", func(context.Context) error {
			stop()
			return nil
		})
	}
	rt.Provider = cached
	return nil
}

func (rt *Runtime) onClose(name string, fn func(ctx context.Context) error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// Close releases every component in reverse construction order.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if err := c.fn(ctx); err != nil {
			rt.logger.Warn().Err(err).Str(xglog.FieldComponent, c.name).Msg("close failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
