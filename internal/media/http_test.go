// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamplay/internal/playback"
	"github.com/ManuGH/streamplay/internal/resilience"
)

func newRemote(t *testing.T, handler http.HandlerFunc) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p, err := NewHTTPProvider(HTTPConfig{
		BaseURL:          srv.URL + "/api",
		Token:            "secret",
		BreakerThreshold: 2,
		BreakerReset:     time.Hour,
	})
	require.NoError(t, err)
	return p
}

func TestHTTPProvider_Resources(t *testing.T) {
	p := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/content/movie-1/media", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(Resources{
			QualityOptions: []playback.QualityOption{{Label: "720p", SourceURL: "B"}},
		})
	})

	res, err := p.Resources(context.Background(), "movie-1")
	require.NoError(t, err)
	assert.Equal(t, "movie-1", res.ContentID)
	assert.Equal(t, []playback.QualityOption{{Label: "720p", SourceURL: "B"}}, res.QualityOptions)
}

func TestHTTPProvider_NotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	p := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	})

	for i := 0; i < 3; i++ {
		_, err := p.Resources(context.Background(), "missing")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, resilience.StateClosed, p.BreakerState())
}

func TestHTTPProvider_ServerErrorsOpenBreaker(t *testing.T) {
	var calls atomic.Int32
	p := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		_, err := p.Resources(context.Background(), "movie-1")
		require.Error(t, err)
	}
	_, err := p.Resources(context.Background(), "movie-1")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, resilience.StateOpen, p.BreakerState())
}

func TestHTTPProvider_RejectsEmptyResources(t *testing.T) {
	p := newRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"qualityOptions":[]}`))
	})
	_, err := p.Resources(context.Background(), "movie-1")
	require.Error(t, err)
}

func TestNewHTTPProvider_InvalidURL(t *testing.T) {
	_, err := NewHTTPProvider(HTTPConfig{BaseURL: "not a url"})
	require.Error(t, err)
}
