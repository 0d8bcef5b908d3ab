// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock and runs due callbacks outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	keep := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped || t.fired:
		case !t.at.After(c.now):
			t.fired = true
			due = append(due, t)
		default:
			keep = append(keep, t)
		}
	}
	c.timers = keep
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type loadCall struct {
	src string
	gen Generation
}

type recordingMedia struct {
	mu       sync.Mutex
	loads    []loadCall
	seeks    []float64
	seekGens []Generation
	plays    int
	pauses   int
	volume   float64
	muted    bool
	subtitle string
}

func (m *recordingMedia) Load(src string, gen Generation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads = append(m.loads, loadCall{src: src, gen: gen})
}

func (m *recordingMedia) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
}

func (m *recordingMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
}

func (m *recordingMedia) Seek(seconds float64, gen Generation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks = append(m.seeks, seconds)
	m.seekGens = append(m.seekGens, gen)
}

func (m *recordingMedia) SetVolume(volume float64, muted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume, m.muted = volume, muted
}

func (m *recordingMedia) SetSubtitle(src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subtitle = src
}

func (m *recordingMedia) lastLoad() loadCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.loads) == 0 {
		return loadCall{}
	}
	return m.loads[len(m.loads)-1]
}

func (m *recordingMedia) seekGenerations() []Generation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Generation(nil), m.seekGens...)
}

func (m *recordingMedia) mediaVolume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *recordingMedia) seekCalls() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.seeks...)
}

type fakeHost struct {
	deny     bool
	requests int
	exits    int
}

func (h *fakeHost) RequestFullscreen() error {
	h.requests++
	if h.deny {
		return errors.New("no user gesture")
	}
	return nil
}

func (h *fakeHost) ExitFullscreen() error {
	h.exits++
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return Notice{}
	}
	return n.notices[len(n.notices)-1]
}

func threeQualities() Session {
	return Session{
		ContentID: "movie-1",
		QualityOptions: []QualityOption{
			{Label: "480p", SourceURL: "A"},
			{Label: "720p", SourceURL: "B"},
			{Label: "1080p", SourceURL: "C"},
		},
		SubtitleTracks: []SubtitleTrack{
			{Label: "English", Language: "en", SourceURL: "subs/en.vtt"},
			{Label: "Deutsch", Language: "de", SourceURL: "subs/de.vtt"},
		},
	}
}

type harness struct {
	c        *Controller
	media    *recordingMedia
	clock    *fakeClock
	host     *fakeHost
	notices  *recordingNotifier
	finished []string
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		media:   &recordingMedia{},
		clock:   newFakeClock(),
		host:    &fakeHost{},
		notices: &recordingNotifier{},
	}
	cfg := Config{
		Session:    threeQualities(),
		Media:      h.media,
		Host:       h.host,
		Notify:     h.notices,
		OnFinished: func(id string) { h.finished = append(h.finished, id) },
		Clock:      h.clock,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewController(cfg)
	require.NoError(t, err)
	h.c = c
	return h
}

// playing starts the controller with autoplay and reports the first source
// ready with the given duration.
func (h *harness) playing(t *testing.T, duration float64) {
	t.Helper()
	require.NoError(t, h.c.Start())
	if !h.c.State().IsPlaying {
		require.NoError(t, h.c.TogglePlay())
	}
	h.c.OnReady(h.c.State().Generation, duration)
	require.Equal(t, PhasePlaying, h.c.State().Phase)
}

func (h *harness) tick(seconds, loadedSeconds float64) {
	st := h.c.State()
	d := st.DurationSeconds
	h.c.OnProgressTick(ProgressTick{
		Generation:     st.Generation,
		PlayedFraction: seconds / d,
		PlayedSeconds:  seconds,
		LoadedFraction: loadedSeconds / d,
		LoadedSeconds:  loadedSeconds,
	})
}
