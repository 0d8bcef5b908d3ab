// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import "time"

// MediaElement is the playback primitive the controller orchestrates.
// Calls are fire-and-forget; outcomes come back through the controller's
// On* signal methods tagged with the generation passed to Load.
type MediaElement interface {
	Load(src string, gen Generation)
	Play()
	Pause()
	// Seek targets the source loaded with gen; clients drop seeks for a
	// source they already replaced.
	Seek(seconds float64, gen Generation)
	SetVolume(volume float64, muted bool)
	// SetSubtitle activates the track with the given source; "" disables.
	SetSubtitle(src string)
}

// Host is the embedding container that can enter and leave fullscreen.
// A returned error means the platform refused the request.
type Host interface {
	RequestFullscreen() error
	ExitFullscreen() error
}

// NoticeKind classifies user-visible status events.
type NoticeKind string

const (
	NoticeQualityChanged    NoticeKind = "quality_changed"
	NoticeSubtitlesChanged  NoticeKind = "subtitles_changed"
	NoticeSubtitlesDisabled NoticeKind = "subtitles_disabled"
	NoticePlaybackError     NoticeKind = "playback_error"
)

// Notice is a human-readable status event for the embedding page.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	Quality string     `json:"quality,omitempty"`
	// Retryable is set on playback errors: the page shows a retry action.
	Retryable bool `json:"retryable,omitempty"`
}

// Notifier receives notices. Delivery is fire-and-forget.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts timers for testability.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notice) {}

type noHost struct{}

func (noHost) RequestFullscreen() error { return ErrFullscreenDenied }
func (noHost) ExitFullscreen() error    { return ErrFullscreenDenied }
