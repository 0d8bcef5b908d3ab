// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	xglog "github.com/ManuGH/streamplay/internal/log"
)

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per WindowSize.
	RequestLimit int
	WindowSize   time.Duration
	// KeyFunc extracts the limiter key; nil keys by client IP.
	KeyFunc httprate.KeyFunc
	// Whitelist holds IPs or CIDRs that bypass the limiter.
	Whitelist []string
}

// RateLimit limits requests with httprate's sliding window counter and
// answers excess requests with a 429 problem body and Retry-After.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}
	nets := parseWhitelist(cfg.Whitelist)

	limiter := httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			xglog.FromContext(r.Context()).Warn().
				Str(xglog.FieldEvent, "http.rate_limited").
				Str("remote_addr", r.RemoteAddr).
				Msg("request rate limited")
			w.Header().Set("Content-Type", "application/problem+json")
			w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowSize.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"about:blank","title":"Too Many Requests","status":429,"detail":"Too many requests. Please try again later."}`))
		}),
	)

	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		if len(nets) == 0 {
			return limited
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if whitelisted(nets, r.RemoteAddr) {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}

func parseWhitelist(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			if ip := net.ParseIP(e); ip != nil && ip.To4() != nil {
				e += "/32"
			} else {
				e += "/128"
			}
		}
		if _, n, err := net.ParseCIDR(e); err == nil {
			nets = append(nets, n)
		}
	}
	return nets
}

func whitelisted(nets []*net.IPNet, remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
