// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package media

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/streamplay/internal/catalog"
	"github.com/ManuGH/streamplay/internal/metrics"
	"github.com/ManuGH/streamplay/internal/playback"
)

// CatalogProvider serves resources straight from the local catalog.
type CatalogProvider struct {
	repo catalog.Repository
}

func NewCatalogProvider(repo catalog.Repository) *CatalogProvider {
	return &CatalogProvider{repo: repo}
}

func (p *CatalogProvider) Resources(ctx context.Context, contentID string) (Resources, error) {
	start := time.Now()
	c, err := p.repo.Get(ctx, contentID)
	metrics.ObserveProviderFetch("catalog", err == nil, time.Since(start))
	if errors.Is(err, catalog.ErrNotFound) {
		return Resources{}, fmt.Errorf("%w: %s", ErrNotFound, contentID)
	}
	if err != nil {
		return Resources{}, err
	}
	return FromContent(c), nil
}

// FromContent builds resources from a catalog entry. Qualities are ordered
// from lowest to highest (height, then bitrate); entries without a height
// keep their catalog order after the measured ones. Subtitle languages are
// normalized to BCP 47 and missing labels are filled with the language's
// own name.
func FromContent(c catalog.Content) Resources {
	renditions := append([]catalog.Rendition(nil), c.Renditions...)
	sort.SliceStable(renditions, func(i, j int) bool {
		a, b := renditions[i], renditions[j]
		switch {
		case a.Height == 0 || b.Height == 0:
			return a.Height != 0 && b.Height == 0
		case a.Height != b.Height:
			return a.Height < b.Height
		default:
			return a.BitrateKbps < b.BitrateKbps
		}
	})

	res := Resources{
		ContentID:     c.ID,
		AutoSourceURL: c.AutoSourceURL,
		PosterURL:     c.PosterURL,
	}
	for _, r := range renditions {
		res.QualityOptions = append(res.QualityOptions, playback.QualityOption{
			Label:     norm.NFC.String(r.Label),
			SourceURL: r.SourceURL,
		})
	}
	for _, s := range c.Subtitles {
		res.SubtitleTracks = append(res.SubtitleTracks, normalizeSubtitle(s))
	}
	return res
}

func normalizeSubtitle(s catalog.Subtitle) playback.SubtitleTrack {
	tag, err := language.Parse(strings.TrimSpace(s.Language))
	if err != nil {
		tag = language.Und
	}
	label := norm.NFC.String(strings.TrimSpace(s.Label))
	if label == "" && tag != language.Und {
		label = display.Self.Name(tag)
	}
	if label == "" {
		label = "Unknown"
	}
	return playback.SubtitleTrack{
		Label:     label,
		Language:  tag.String(),
		SourceURL: s.SourceURL,
	}
}
