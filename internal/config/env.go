// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamplay/internal/log"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STREAMPLAY_"

func envLogger() *zerolog.Logger {
	l := log.WithComponent("config")
	return &l
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	logger := envLogger()
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	ev := logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", value)
	}
	ev.Msg("using environment variable")
	return value
}

// ParseInt reads an integer from environment variable. Invalid values fall
// back to the default with a warning.
func ParseInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		envLogger().Warn().
			Str("key", key).
			Str("value", v).
			Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	envLogger().Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

// ParseDuration reads a Go duration ("5s") from environment variable.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		envLogger().Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", defaultValue).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	envLogger().Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		envLogger().Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", defaultValue).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
}

// ParseFloat reads a float64 from environment variable.
func ParseFloat(key string, defaultValue float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		envLogger().Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", defaultValue).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	return f
}

// ParseList reads a comma separated list; blank items are dropped.
func ParseList(key string, defaultValue []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// mergeEnv applies STREAMPLAY_* overrides on top of cfg.
func mergeEnv(cfg *AppConfig) {
	p := EnvPrefix
	cfg.DataDir = ParseString(p+"DATA_DIR", cfg.DataDir)
	cfg.LogLevel = ParseString(p+"LOG_LEVEL", cfg.LogLevel)

	s := &cfg.Server
	s.ListenAddr = ParseString(p+"LISTEN_ADDR", s.ListenAddr)
	s.ReadTimeout = ParseDuration(p+"READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = ParseDuration(p+"WRITE_TIMEOUT", s.WriteTimeout)
	s.ShutdownTimeout = ParseDuration(p+"SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.RateLimit = ParseInt(p+"RATE_LIMIT", s.RateLimit)
	s.AllowedOrigins = ParseList(p+"ALLOWED_ORIGINS", s.AllowedOrigins)
	s.TLSCert = ParseString(p+"TLS_CERT", s.TLSCert)
	s.TLSKey = ParseString(p+"TLS_KEY", s.TLSKey)
	s.TLSAuto = ParseBool(p+"TLS_AUTO", s.TLSAuto)

	pl := &cfg.Player
	pl.MaxSessions = ParseInt(p+"MAX_SESSIONS", pl.MaxSessions)
	pl.IdleTimeout = ParseDuration(p+"SESSION_IDLE_TIMEOUT", pl.IdleTimeout)
	pl.ControlsHideDelay = ParseDuration(p+"CONTROLS_HIDE_DELAY", pl.ControlsHideDelay)
	pl.ResumeMinSeconds = ParseFloat(p+"RESUME_MIN_SECONDS", pl.ResumeMinSeconds)
	pl.ResumeTailSeconds = ParseFloat(p+"RESUME_TAIL_SECONDS", pl.ResumeTailSeconds)

	cfg.Catalog.Backend = ParseString(p+"CATALOG_BACKEND", cfg.Catalog.Backend)
	cfg.Catalog.Path = ParseString(p+"CATALOG_PATH", cfg.Catalog.Path)
	cfg.Catalog.SeedFile = ParseString(p+"CATALOG_SEED", cfg.Catalog.SeedFile)

	pr := &cfg.Provider
	pr.Kind = ParseString(p+"PROVIDER", pr.Kind)
	pr.BaseURL = ParseString(p+"PROVIDER_URL", pr.BaseURL)
	pr.Token = ParseString(p+"PROVIDER_TOKEN", pr.Token)
	pr.Timeout = ParseDuration(p+"PROVIDER_TIMEOUT", pr.Timeout)
	pr.RPS = ParseFloat(p+"PROVIDER_RPS", pr.RPS)
	pr.Burst = ParseInt(p+"PROVIDER_BURST", pr.Burst)

	cfg.Cache.Backend = ParseString(p+"CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration(p+"CACHE_TTL", cfg.Cache.TTL)
	cfg.Redis.Addr = ParseString(p+"REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = ParseString(p+"REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = ParseInt(p+"REDIS_DB", cfg.Redis.DB)
	cfg.Bus.Backend = ParseString(p+"BUS_BACKEND", cfg.Bus.Backend)
	cfg.Resume.Backend = ParseString(p+"RESUME_BACKEND", cfg.Resume.Backend)
	cfg.Resume.TTL = ParseDuration(p+"RESUME_TTL", cfg.Resume.TTL)

	t := &cfg.Telemetry
	t.Enabled = ParseBool(p+"TRACING_ENABLED", t.Enabled)
	t.Exporter = ParseString(p+"TRACING_EXPORTER", t.Exporter)
	t.Endpoint = ParseString(p+"TRACING_ENDPOINT", t.Endpoint)
	t.SamplingRate = ParseFloat(p+"TRACING_SAMPLING_RATE", t.SamplingRate)
}
