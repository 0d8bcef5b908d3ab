// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package middleware holds the HTTP ingress stack shared by every route of
// the API server.
package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"

	xglog "github.com/ManuGH/streamplay/internal/log"
)

// StackConfig configures the ingress middleware stack.
type StackConfig struct {
	AllowedOrigins []string
	CSP            string

	// TracingService names the server span; empty disables tracing.
	TracingService string

	// RateLimitPerMinute is the per-client budget; zero disables limiting.
	RateLimitPerMinute int
	RateLimitWhitelist []string
}

// ApplyStack applies the middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// Outermost so panics in any later middleware are caught.
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(SecurityHeaders(cfg.CSP))
	r.Use(Metrics())
	if cfg.TracingService != "" {
		r.Use(OTelHTTP(cfg.TracingService))
	}
	r.Use(xglog.Middleware())
	if cfg.RateLimitPerMinute > 0 {
		r.Use(RateLimit(RateLimitConfig{
			RequestLimit: cfg.RateLimitPerMinute,
			WindowSize:   time.Minute,
			Whitelist:    cfg.RateLimitWhitelist,
		}))
	}
}
