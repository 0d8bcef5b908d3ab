// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamplay/internal/cache"
	"github.com/ManuGH/streamplay/internal/catalog"
)

func countingProvider(calls *atomic.Int32, gate <-chan struct{}) Provider {
	return ProviderFunc(func(_ context.Context, id string) (Resources, error) {
		calls.Add(1)
		if gate != nil {
			<-gate
		}
		if id == "missing" {
			return Resources{}, ErrNotFound
		}
		return FromContent(sampleContent()), nil
	})
}

func TestCachedProvider_HitAfterMiss(t *testing.T) {
	var calls atomic.Int32
	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })
	p := NewCachedProvider(countingProvider(&calls, nil), c, time.Minute, zerolog.Nop())

	first, err := p.Resources(context.Background(), "movie-1")
	require.NoError(t, err)
	second, err := p.Resources(context.Background(), "movie-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	p := NewCachedProvider(countingProvider(&calls, nil), cache.NewNoOpCache(), time.Minute, zerolog.Nop())

	for i := 0; i < 2; i++ {
		_, err := p.Resources(context.Background(), "missing")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedProvider_CoalescesConcurrentMisses(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })
	p := NewCachedProvider(countingProvider(&calls, gate), c, time.Minute, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Resources(context.Background(), "movie-1")
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestCachedProvider_WatchCatalogInvalidates(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewMemoryRepository()
	content := sampleContent()
	_, err := repo.Put(ctx, content)
	require.NoError(t, err)

	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })
	p := NewCachedProvider(NewCatalogProvider(repo), c, time.Hour, zerolog.Nop())
	stop := p.WatchCatalog(repo)
	defer stop()

	res, err := p.Resources(ctx, "movie-1")
	require.NoError(t, err)
	require.Len(t, res.QualityOptions, 5)

	content.Renditions = content.Renditions[:1]
	_, err = repo.Put(ctx, content)
	require.NoError(t, err)

	res, err = p.Resources(ctx, "movie-1")
	require.NoError(t, err)
	assert.Len(t, res.QualityOptions, 1)

	require.NoError(t, repo.Delete(ctx, "movie-1"))
	_, err = p.Resources(ctx, "movie-1")
	require.ErrorIs(t, err, ErrNotFound)
}
