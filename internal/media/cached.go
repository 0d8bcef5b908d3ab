// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/streamplay/internal/cache"
	"github.com/ManuGH/streamplay/internal/catalog"
	"github.com/ManuGH/streamplay/internal/metrics"
)

const cacheKeyPrefix = "media:"

// CachedProvider memoizes another provider. Concurrent misses for the same
// content id share one upstream lookup.
type CachedProvider struct {
	next   Provider
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
	logger zerolog.Logger
}

func NewCachedProvider(next Provider, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProvider{next: next, cache: c, ttl: ttl, logger: logger}
}

func (p *CachedProvider) Resources(ctx context.Context, contentID string) (Resources, error) {
	key := cacheKeyPrefix + contentID
	if raw, ok := p.cache.Get(key); ok {
		var res Resources
		if err := json.Unmarshal(raw, &res); err == nil {
			metrics.IncProviderCache(true)
			return res, nil
		}
		p.logger.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		p.cache.Delete(key)
	}
	metrics.IncProviderCache(false)

	v, err, _ := p.group.Do(key, func() (any, error) {
		res, err := p.next.Resources(ctx, contentID)
		if err != nil {
			return Resources{}, err
		}
		if raw, err := json.Marshal(res); err == nil {
			p.cache.Set(key, raw, p.ttl)
		}
		return res, nil
	})
	if err != nil {
		return Resources{}, err
	}
	return v.(Resources), nil
}

// Invalidate drops the cached resources of contentID.
func (p *CachedProvider) Invalidate(contentID string) {
	p.cache.Delete(cacheKeyPrefix + contentID)
}

// WatchCatalog invalidates entries whenever the catalog changes. The
// returned func stops watching.
func (p *CachedProvider) WatchCatalog(repo catalog.Repository) func() {
	return repo.OnChange(func(ch catalog.Change) {
		p.Invalidate(ch.ID)
		p.logger.Debug().
			Str("content_id", ch.ID).
			Str("change", string(ch.Kind)).
			Msg("invalidated cached media resources")
	})
}
