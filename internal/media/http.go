// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ManuGH/streamplay/internal/metrics"
	"github.com/ManuGH/streamplay/internal/resilience"
)

const maxResponseBytes = 1 << 20

// HTTPConfig configures the remote data API client.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RPS and Burst throttle outgoing requests; RPS <= 0 disables throttling.
	RPS   float64
	Burst int
	// BreakerThreshold consecutive failures open the breaker for BreakerReset.
	BreakerThreshold int
	BreakerReset     time.Duration
	// Transport overrides the base transport (tests).
	Transport http.RoundTripper
}

// HTTPProvider fetches resources from the hosted data API:
// GET {base}/content/{id}/media returning a Resources document.
type HTTPProvider struct {
	base    *url.URL
	token   string
	client  *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("media: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &HTTPProvider{
		base:    base,
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout, Transport: otelhttp.NewTransport(transport)},
		limiter: limiter,
		breaker: resilience.NewCircuitBreaker("media_http", cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailurePredicate(func(err error) bool {
				return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
			})),
	}, nil
}

func (p *HTTPProvider) Resources(ctx context.Context, contentID string) (Resources, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Resources{}, fmt.Errorf("media: throttled: %w", err)
	}

	start := time.Now()
	var res Resources
	err := p.breaker.Execute(func() error {
		var ferr error
		res, ferr = p.fetch(ctx, contentID)
		return ferr
	})
	metrics.ObserveProviderFetch("http", err == nil, time.Since(start))
	if err != nil {
		return Resources{}, err
	}
	return res, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, contentID string) (Resources, error) {
	u := p.base.JoinPath("content", contentID, "media")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Resources{}, err
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Resources{}, fmt.Errorf("media: fetch %s: %w", contentID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Resources{}, fmt.Errorf("%w: %s", ErrNotFound, contentID)
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return Resources{}, fmt.Errorf("media: fetch %s: unexpected status %d", contentID, resp.StatusCode)
	}

	var res Resources
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&res); err != nil {
		return Resources{}, fmt.Errorf("media: decode %s: %w", contentID, err)
	}
	if res.ContentID == "" {
		res.ContentID = contentID
	}
	if len(res.QualityOptions) == 0 {
		return Resources{}, fmt.Errorf("media: %s has no quality options", contentID)
	}
	return res, nil
}

// BreakerState exposes the circuit breaker state for diagnostics.
func (p *HTTPProvider) BreakerState() resilience.State {
	return p.breaker.State()
}
