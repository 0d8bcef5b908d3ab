// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package media resolves the playback resources of a content item: one
// source per quality label, subtitle tracks and a poster.
package media

import (
	"context"
	"errors"

	"github.com/ManuGH/streamplay/internal/playback"
)

// ErrNotFound is returned when the content id is unknown to the provider.
var ErrNotFound = errors.New("media resources not found")

// Resources are the playback resources of one content item.
type Resources struct {
	ContentID      string                   `json:"contentId"`
	QualityOptions []playback.QualityOption `json:"qualityOptions"`
	SubtitleTracks []playback.SubtitleTrack `json:"subtitleTracks"`
	AutoSourceURL  string                   `json:"autoSourceUrl,omitempty"`
	PosterURL      string                   `json:"posterUrl,omitempty"`
}

// Session converts the resources into a playback session.
func (r Resources) Session() playback.Session {
	return playback.Session{
		ContentID:      r.ContentID,
		QualityOptions: append([]playback.QualityOption(nil), r.QualityOptions...),
		SubtitleTracks: append([]playback.SubtitleTrack(nil), r.SubtitleTracks...),
		AutoSourceURL:  r.AutoSourceURL,
		PosterURL:      r.PosterURL,
	}
}

// Provider resolves resources. Implementations are read-only.
type Provider interface {
	Resources(ctx context.Context, contentID string) (Resources, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, contentID string) (Resources, error)

func (f ProviderFunc) Resources(ctx context.Context, contentID string) (Resources, error) {
	return f(ctx, contentID)
}
