// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package playback implements the player state machine: play/pause,
// buffering, three-phase seeking, position-preserving quality switches,
// subtitles, fullscreen and the controls auto-hide timer. Decoding and
// network fetch stay with the media element behind the MediaElement port.
package playback

// Phase is the visible player phase (not the media resource state).
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhasePlaying Phase = "playing"
	PhasePaused  Phase = "paused"
	PhaseEnded   Phase = "ended"
	PhaseError   Phase = "error"
)

// QualityAuto selects the provider's adaptive/default source.
const QualityAuto = "auto"

// Generation identifies one source load. It increases every time the
// controller (re)issues a source URL; media signals carry the generation
// they belong to so signals from a superseded source can be dropped.
// Zero means "untagged" and is accepted as current.
type Generation uint64

// QualityOption maps a quality label to a source URL.
type QualityOption struct {
	Label     string `json:"label"`
	SourceURL string `json:"sourceUrl"`
}

// SubtitleTrack is a selectable text track.
type SubtitleTrack struct {
	Label     string `json:"label"`
	Language  string `json:"language"`
	SourceURL string `json:"sourceUrl"`
}

// Session holds the resources of one opened content item.
type Session struct {
	ContentID      string          `json:"contentId"`
	QualityOptions []QualityOption `json:"qualityOptions"`
	SubtitleTracks []SubtitleTrack `json:"subtitleTracks"`
	// AutoSourceURL is played for QualityAuto. When empty the first quality
	// option is used.
	AutoSourceURL string `json:"autoSourceUrl,omitempty"`
	PosterURL     string `json:"posterUrl,omitempty"`
}

func (s Session) quality(label string) (QualityOption, bool) {
	for _, q := range s.QualityOptions {
		if q.Label == label {
			return q, true
		}
	}
	return QualityOption{}, false
}

func (s Session) subtitle(src string) (SubtitleTrack, bool) {
	for _, t := range s.SubtitleTracks {
		if t.SourceURL == src {
			return t, true
		}
	}
	return SubtitleTrack{}, false
}

// sourceFor resolves a quality label to the URL handed to the media element.
func (s Session) sourceFor(label string) string {
	if label == QualityAuto {
		if s.AutoSourceURL != "" {
			return s.AutoSourceURL
		}
		return s.QualityOptions[0].SourceURL
	}
	q, _ := s.quality(label)
	return q.SourceURL
}

// State is an immutable snapshot of the player.
type State struct {
	ContentID string `json:"contentId"`
	// Revision increases with every mutation. Snapshots are delivered in
	// revision order.
	Revision        uint64     `json:"revision"`
	Phase           Phase      `json:"phase"`
	Generation      Generation `json:"generation"`
	Source          string     `json:"source"`
	CurrentQuality  string     `json:"currentQuality"`
	ActiveSubtitle  string     `json:"activeSubtitle,omitempty"`
	IsPlaying       bool       `json:"isPlaying"`
	IsMuted         bool       `json:"isMuted"`
	Volume          float64    `json:"volume"`
	PlayedFraction  float64    `json:"playedFraction"`
	PlayedSeconds   float64    `json:"playedSeconds"`
	LoadedFraction  float64    `json:"loadedFraction"`
	LoadedSeconds   float64    `json:"loadedSeconds"`
	DurationSeconds float64    `json:"durationSeconds"`
	IsSeeking       bool       `json:"isSeeking"`
	IsBuffering     bool       `json:"isBuffering"`
	IsFullscreen    bool       `json:"isFullscreen"`
	ControlsVisible bool       `json:"controlsVisible"`
	LastError       string     `json:"lastError,omitempty"`
}

// ProgressTick is the periodic progress report of the media element.
type ProgressTick struct {
	Generation     Generation `json:"generation"`
	PlayedFraction float64    `json:"playedFraction"`
	PlayedSeconds  float64    `json:"playedSeconds"`
	LoadedFraction float64    `json:"loadedFraction"`
	LoadedSeconds  float64    `json:"loadedSeconds"`
}

func clamp01(f float64) float64 {
	switch {
	case f != f: // NaN
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
