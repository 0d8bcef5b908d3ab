// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package catalog holds the content items viewers can open: titles,
// renditions per quality and subtitle tracks. It is the source the media
// provider resolves playback resources from.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("content not found")
	ErrInvalid  = errors.New("invalid content")
)

// Rendition is one encoded quality of a content item.
type Rendition struct {
	Label       string `json:"label" yaml:"label"`
	SourceURL   string `json:"sourceUrl" yaml:"sourceUrl"`
	Height      int    `json:"height,omitempty" yaml:"height,omitempty"`
	BitrateKbps int    `json:"bitrateKbps,omitempty" yaml:"bitrateKbps,omitempty"`
}

// Subtitle is a text track of a content item.
type Subtitle struct {
	Label     string `json:"label" yaml:"label"`
	Language  string `json:"language" yaml:"language"`
	SourceURL string `json:"sourceUrl" yaml:"sourceUrl"`
}

// Content is a catalog entry.
type Content struct {
	ID            string      `json:"id" yaml:"id"`
	Title         string      `json:"title" yaml:"title"`
	Description   string      `json:"description,omitempty" yaml:"description,omitempty"`
	PosterURL     string      `json:"posterUrl,omitempty" yaml:"posterUrl,omitempty"`
	AutoSourceURL string      `json:"autoSourceUrl,omitempty" yaml:"autoSourceUrl,omitempty"`
	Renditions    []Rendition `json:"renditions" yaml:"renditions"`
	Subtitles     []Subtitle  `json:"subtitles,omitempty" yaml:"subtitles,omitempty"`
	CreatedAt     time.Time   `json:"createdAt" yaml:"-"`
	UpdatedAt     time.Time   `json:"updatedAt" yaml:"-"`
}

// Validate checks required fields. The "auto" label is reserved for the
// adaptive source.
func (c Content) Validate() error {
	var problems []string
	if strings.TrimSpace(c.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.ContainsAny(c.ID, "/ \t\n") {
		problems = append(problems, "id must not contain slashes or whitespace")
	}
	if strings.TrimSpace(c.Title) == "" {
		problems = append(problems, "title is required")
	}
	if len(c.Renditions) == 0 {
		problems = append(problems, "at least one rendition is required")
	}
	labels := make(map[string]struct{}, len(c.Renditions))
	for i, r := range c.Renditions {
		switch {
		case r.Label == "":
			problems = append(problems, fmt.Sprintf("renditions[%d]: label is required", i))
		case strings.EqualFold(r.Label, "auto"):
			problems = append(problems, fmt.Sprintf("renditions[%d]: label %q is reserved", i, r.Label))
		}
		if r.SourceURL == "" {
			problems = append(problems, fmt.Sprintf("renditions[%d]: sourceUrl is required", i))
		}
		if _, dup := labels[r.Label]; dup && r.Label != "" {
			problems = append(problems, fmt.Sprintf("renditions[%d]: duplicate label %q", i, r.Label))
		}
		labels[r.Label] = struct{}{}
	}
	sources := make(map[string]struct{}, len(c.Subtitles))
	for i, s := range c.Subtitles {
		if s.SourceURL == "" {
			problems = append(problems, fmt.Sprintf("subtitles[%d]: sourceUrl is required", i))
			continue
		}
		if _, dup := sources[s.SourceURL]; dup {
			problems = append(problems, fmt.Sprintf("subtitles[%d]: duplicate sourceUrl", i))
		}
		sources[s.SourceURL] = struct{}{}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c Content) clone() Content {
	out := c
	out.Renditions = append([]Rendition(nil), c.Renditions...)
	out.Subtitles = append([]Subtitle(nil), c.Subtitles...)
	return out
}
