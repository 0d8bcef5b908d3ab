// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/rs/zerolog"
)

// ErrInvalid wraps every validation problem.
var ErrInvalid = errors.New("invalid configuration")

func oneOf(field, value string, allowed ...string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	return fmt.Errorf("%w: %s must be one of %v, got %q", ErrInvalid, field, allowed, value)
}

// Validate reports all problems of cfg at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		invalid("logLevel %q", cfg.LogLevel)
	}
	if cfg.Server.ListenAddr == "" {
		invalid("server.listenAddr is required")
	}
	if cfg.Server.RateLimit < 0 {
		invalid("server.rateLimit must not be negative")
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		invalid("server.tlsCert and server.tlsKey must be set together")
	}

	p := cfg.Player
	if p.MaxSessions < 0 {
		invalid("player.maxSessions must not be negative")
	}
	if p.IdleTimeout < 0 {
		invalid("player.idleTimeout must not be negative")
	}
	if p.ControlsHideDelay <= 0 {
		invalid("player.controlsHideDelay must be positive")
	}
	if p.ResumeMinSeconds < 0 || p.ResumeTailSeconds < 0 {
		invalid("player resume thresholds must not be negative")
	}

	add(oneOf("catalog.backend", cfg.Catalog.Backend, "memory", "sqlite"))
	add(oneOf("provider.kind", cfg.Provider.Kind, "catalog", "http"))
	if cfg.Provider.Kind == "http" {
		u, err := url.Parse(cfg.Provider.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			invalid("provider.baseUrl must be an http(s) url when provider.kind is http")
		}
	}
	if cfg.Provider.RPS < 0 {
		invalid("provider.rps must not be negative")
	}
	add(oneOf("cache.backend", cfg.Cache.Backend, "memory", "redis", "none"))
	add(oneOf("bus.backend", cfg.Bus.Backend, "memory", "redis"))
	add(oneOf("resume.backend", cfg.Resume.Backend, "memory", "sqlite", "badger"))
	if (cfg.Cache.Backend == "redis" || cfg.Bus.Backend == "redis") && cfg.Redis.Addr == "" {
		invalid("redis.addr is required by the redis cache or bus")
	}

	if cfg.Telemetry.Enabled {
		add(oneOf("telemetry.exporter", cfg.Telemetry.Exporter, "grpc", "http"))
		if cfg.Telemetry.Endpoint == "" {
			invalid("telemetry.endpoint is required when tracing is enabled")
		}
	}
	if r := cfg.Telemetry.SamplingRate; r < 0 || r > 1 {
		invalid("telemetry.samplingRate must be within [0, 1]")
	}

	return errors.Join(errs...)
}
