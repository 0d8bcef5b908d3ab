// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewController_ValidatesSession(t *testing.T) {
	media := &recordingMedia{}
	tests := []struct {
		name    string
		session Session
	}{
		{"missing content id", Session{QualityOptions: []QualityOption{{Label: "480p", SourceURL: "A"}}}},
		{"no qualities", Session{ContentID: "x"}},
		{"reserved auto label", Session{ContentID: "x", QualityOptions: []QualityOption{{Label: "auto", SourceURL: "A"}}}},
		{"duplicate label", Session{ContentID: "x", QualityOptions: []QualityOption{{Label: "480p", SourceURL: "A"}, {Label: "480p", SourceURL: "B"}}}},
		{"subtitle without source", Session{
			ContentID:      "x",
			QualityOptions: []QualityOption{{Label: "480p", SourceURL: "A"}},
			SubtitleTracks: []SubtitleTrack{{Label: "English"}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewController(Config{Session: tt.session, Media: media})
			require.ErrorIs(t, err, ErrInvalidSession)
			require.ErrorIs(t, err, ErrContractViolation)
		})
	}

	_, err := NewController(Config{Session: threeQualities(), Media: media, InitialQuality: "4k"})
	require.ErrorIs(t, err, ErrUnknownQuality)
}

func TestController_StartResolvesAutoSource(t *testing.T) {
	h := newHarness(t, nil)

	st := h.c.State()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, QualityAuto, st.CurrentQuality)
	assert.True(t, st.ControlsVisible)

	require.NoError(t, h.c.Start())
	st = h.c.State()
	assert.Equal(t, PhaseLoading, st.Phase)
	assert.Equal(t, "A", st.Source)
	assert.Equal(t, loadCall{src: "A", gen: 1}, h.media.lastLoad())

	require.ErrorIs(t, h.c.Start(), ErrAlreadyStarted)
}

func TestController_AutoSourceURLPreferred(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Session.AutoSourceURL = "master.m3u8"
	})
	require.NoError(t, h.c.Start())
	assert.Equal(t, "master.m3u8", h.c.State().Source)
}

func TestController_ReadyHonorsPlayIntent(t *testing.T) {
	t.Run("no play pending", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.c.Start())
		h.c.OnReady(1, 120)
		st := h.c.State()
		assert.Equal(t, PhasePaused, st.Phase)
		assert.False(t, st.IsPlaying)
		assert.Equal(t, 120.0, st.DurationSeconds)
		assert.Zero(t, h.media.plays)
	})

	t.Run("autoplay", func(t *testing.T) {
		h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
		require.NoError(t, h.c.Start())
		h.c.OnReady(1, 120)
		assert.Equal(t, PhasePlaying, h.c.State().Phase)
		assert.Equal(t, 1, h.media.plays)
	})

	t.Run("play requested while loading", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.c.Start())
		require.NoError(t, h.c.TogglePlay())
		assert.Equal(t, PhaseLoading, h.c.State().Phase)
		h.c.OnReady(1, 120)
		assert.Equal(t, PhasePlaying, h.c.State().Phase)
	})
}

func TestController_TogglePlay(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)

	require.NoError(t, h.c.TogglePlay())
	st := h.c.State()
	assert.Equal(t, PhasePaused, st.Phase)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, 1, h.media.pauses)

	require.NoError(t, h.c.TogglePlay())
	st = h.c.State()
	assert.Equal(t, PhasePlaying, st.Phase)
	assert.True(t, st.IsPlaying)
	assert.Equal(t, 2, h.media.plays)
}

func TestController_SetVolume(t *testing.T) {
	for _, v := range []float64{0, 0.01, 0.25, 0.5, 0.99, 1} {
		h := newHarness(t, nil)
		require.NoError(t, h.c.SetVolume(v))
		st := h.c.State()
		assert.Equal(t, v, st.Volume)
		assert.Equal(t, v == 0, st.IsMuted, "volume %v", v)
		assert.Equal(t, v, h.media.volume)
	}
}

func TestController_SetVolumeClearsIndependentMute(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.ToggleMute())
	st := h.c.State()
	require.True(t, st.IsMuted)
	require.Equal(t, 1.0, st.Volume, "mute keeps the stored volume")

	require.NoError(t, h.c.SetVolume(0.3))
	st = h.c.State()
	assert.False(t, st.IsMuted)
	assert.Equal(t, 0.3, st.Volume)
}

func TestController_SetVolumeRejectsOutOfRange(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.SetVolume(0.4))

	for _, v := range []float64{-0.1, 1.01, 7} {
		err := h.c.SetVolume(v)
		require.ErrorIs(t, err, ErrInvalidVolume)
		require.ErrorIs(t, err, ErrContractViolation)
	}
	assert.Equal(t, 0.4, h.c.State().Volume)
}

func TestController_ToggleMuteKeepsVolume(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.SetVolume(0.6))
	require.NoError(t, h.c.ToggleMute())
	require.NoError(t, h.c.ToggleMute())
	st := h.c.State()
	assert.False(t, st.IsMuted)
	assert.Equal(t, 0.6, st.Volume)
}

func TestController_ProgressTickKeepsLoadedAhead(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)

	h.c.OnProgressTick(ProgressTick{Generation: 1, PlayedFraction: 0.4, PlayedSeconds: 40, LoadedFraction: 0.2, LoadedSeconds: 20})
	st := h.c.State()
	assert.Equal(t, 0.4, st.PlayedFraction)
	assert.GreaterOrEqual(t, st.LoadedFraction, st.PlayedFraction)
	assert.GreaterOrEqual(t, st.LoadedSeconds, st.PlayedSeconds)

	h.c.OnProgressTick(ProgressTick{Generation: 1, PlayedFraction: 1.7, PlayedSeconds: 100, LoadedFraction: -1})
	st = h.c.State()
	assert.Equal(t, 1.0, st.PlayedFraction)
	assert.Equal(t, 1.0, st.LoadedFraction)
}

func TestController_ProgressIgnoredWhileSeeking(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 200)
	h.tick(20, 40)

	require.NoError(t, h.c.BeginSeek())
	require.True(t, h.c.State().IsSeeking)

	h.c.UpdateSeekPreview(0.5)
	for _, s := range []float64{22, 24, 26, 28} {
		h.tick(s, 60)
		assert.Equal(t, 0.5, h.c.State().PlayedFraction)
	}
	h.c.UpdateSeekPreview(0.6)
	h.tick(30, 60)
	assert.Equal(t, 0.6, h.c.State().PlayedFraction)
	assert.Empty(t, h.media.seekCalls(), "preview never touches the media")

	require.NoError(t, h.c.CommitSeek(0.75))
	st := h.c.State()
	assert.False(t, st.IsSeeking)
	assert.Equal(t, 0.75, st.PlayedFraction)
	assert.Equal(t, 150.0, st.PlayedSeconds)
	assert.Equal(t, []float64{150}, h.media.seekCalls())

	h.tick(151, 160)
	assert.InDelta(t, 151.0/200.0, h.c.State().PlayedFraction, 1e-9)
}

func TestController_SeekPreviewOutsideDragIgnored(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	h.tick(10, 20)

	h.c.UpdateSeekPreview(0.9)
	assert.Equal(t, 0.1, h.c.State().PlayedFraction)
}

func TestController_CommitSeekClamps(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)

	require.NoError(t, h.c.CommitSeek(-3))
	assert.Equal(t, 0.0, h.c.State().PlayedFraction)
	require.NoError(t, h.c.CommitSeek(4))
	assert.Equal(t, 1.0, h.c.State().PlayedFraction)
	assert.Equal(t, []float64{0, 100}, h.media.seekCalls())
}

func TestController_SeekRejectedBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	require.ErrorIs(t, h.c.BeginSeek(), ErrNotStarted)
	require.ErrorIs(t, h.c.CommitSeek(0.5), ErrNotStarted)
}

func TestController_ScenarioChangeQuality(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	require.Equal(t, QualityAuto, h.c.State().CurrentQuality)

	require.NoError(t, h.c.ChangeQuality("720p"))
	st := h.c.State()
	assert.Equal(t, "720p", st.CurrentQuality)
	assert.Equal(t, "B", st.Source)
	assert.Equal(t, loadCall{src: "B", gen: 2}, h.media.lastLoad())
	assert.Equal(t, Notice{Kind: NoticeQualityChanged, Message: "Quality changed to 720p", Quality: "720p"}, h.notices.last())

	err := h.c.ChangeQuality("bogus")
	require.ErrorIs(t, err, ErrUnknownQuality)
	require.ErrorIs(t, err, ErrContractViolation)
	assert.Equal(t, "720p", h.c.State().CurrentQuality)
	assert.Equal(t, "B", h.c.State().Source)
}

func TestController_QualityChangePreservesPosition(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	h.tick(42, 50)

	require.NoError(t, h.c.ChangeQuality("1080p"))
	st := h.c.State()
	assert.Equal(t, PhaseLoading, st.Phase)
	assert.Equal(t, 42.0, st.PlayedSeconds, "displayed position survives the switch")
	assert.True(t, st.IsPlaying)
	assert.InDelta(t, 42.0, h.c.ResumePosition(), 1e-9)

	// Ticks of the old source are ignored.
	h.c.OnProgressTick(ProgressTick{Generation: 1, PlayedFraction: 0.9, PlayedSeconds: 90})
	assert.Equal(t, 42.0, h.c.State().PlayedSeconds)

	h.c.OnReady(2, 100)
	st = h.c.State()
	assert.Equal(t, PhasePlaying, st.Phase)
	assert.InDelta(t, 42.0, st.PlayedSeconds, 1.0)
	require.Len(t, h.media.seekCalls(), 1)
	assert.InDelta(t, 42.0, h.media.seekCalls()[0], 1.0)
}

func TestController_QualityChangeWhilePausedStaysPaused(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	h.tick(10, 30)
	require.NoError(t, h.c.TogglePlay())

	require.NoError(t, h.c.ChangeQuality("480p"))
	h.c.OnReady(2, 100)
	st := h.c.State()
	assert.Equal(t, PhasePaused, st.Phase)
	assert.Equal(t, []float64{10}, h.media.seekCalls())
}

func TestController_DoubleQualitySwitchDropsStaleReady(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	h.tick(30, 40)

	require.NoError(t, h.c.ChangeQuality("720p"))
	require.NoError(t, h.c.ChangeQuality("1080p"))
	require.Equal(t, Generation(3), h.c.State().Generation)

	// Ready for the superseded 720p source arrives late.
	h.c.OnReady(2, 100)
	assert.Equal(t, PhaseLoading, h.c.State().Phase)
	assert.Empty(t, h.media.seekCalls())

	h.c.OnReady(3, 100)
	st := h.c.State()
	assert.Equal(t, PhasePlaying, st.Phase)
	assert.Equal(t, "C", st.Source)
	assert.Equal(t, []float64{30}, h.media.seekCalls())
	assert.Equal(t, []Generation{3}, h.media.seekGenerations(), "re-seek targets the newest source")
}

func TestController_SeekDuringLoadRetargetsPendingSeek(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 200)
	h.tick(30, 40)

	require.NoError(t, h.c.ChangeQuality("720p"))
	require.NoError(t, h.c.CommitSeek(0.5))
	h.c.OnReady(2, 200)

	assert.Equal(t, []float64{100}, h.media.seekCalls())
	assert.Equal(t, 100.0, h.c.State().PlayedSeconds)
}

func TestController_StartAtResumesPosition(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.Autoplay = true
		cfg.StartAt = 50
	})
	require.NoError(t, h.c.Start())
	h.c.OnReady(1, 100)
	assert.Equal(t, []float64{50}, h.media.seekCalls())
	assert.Equal(t, 0.5, h.c.State().PlayedFraction)
}

func TestController_ChangeQualityBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.c.ChangeQuality("1080p"))
	assert.Equal(t, PhaseIdle, h.c.State().Phase)
	assert.Empty(t, h.media.loads)

	require.NoError(t, h.c.Start())
	assert.Equal(t, loadCall{src: "C", gen: 1}, h.media.lastLoad())
}

func TestController_ChangeSubtitle(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	h.tick(12, 20)

	require.NoError(t, h.c.ChangeSubtitle("subs/de.vtt"))
	st := h.c.State()
	assert.Equal(t, "subs/de.vtt", st.ActiveSubtitle)
	assert.Equal(t, 12.0, st.PlayedSeconds)
	assert.Equal(t, PhasePlaying, st.Phase)
	assert.Equal(t, "subs/de.vtt", h.media.subtitle)
	assert.Equal(t, "Subtitles: Deutsch", h.notices.last().Message)

	err := h.c.ChangeSubtitle("subs/fr.vtt")
	require.ErrorIs(t, err, ErrUnknownSubtitle)
	assert.Equal(t, "subs/de.vtt", h.c.State().ActiveSubtitle)

	require.NoError(t, h.c.ChangeSubtitle(""))
	assert.Empty(t, h.c.State().ActiveSubtitle)
	assert.Equal(t, NoticeSubtitlesDisabled, h.notices.last().Kind)
	assert.Empty(t, h.media.seekCalls())
}

func TestController_FullscreenWaitsForConfirmation(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		h := newHarness(t, nil)
		h.host.deny = true
		err := h.c.ToggleFullscreen()
		require.ErrorIs(t, err, ErrFullscreenDenied)
		assert.False(t, h.c.State().IsFullscreen)
		assert.Equal(t, 1, h.host.requests)
	})

	t.Run("confirmed", func(t *testing.T) {
		h := newHarness(t, nil)
		require.NoError(t, h.c.ToggleFullscreen())
		assert.False(t, h.c.State().IsFullscreen)

		h.c.OnFullscreenChange(true)
		assert.True(t, h.c.State().IsFullscreen)

		require.NoError(t, h.c.ToggleFullscreen())
		assert.Equal(t, 1, h.host.exits)
		assert.True(t, h.c.State().IsFullscreen)
		h.c.OnFullscreenChange(false)
		assert.False(t, h.c.State().IsFullscreen)
	})

	t.Run("no host", func(t *testing.T) {
		c, err := NewController(Config{Session: threeQualities(), Media: &recordingMedia{}})
		require.NoError(t, err)
		require.ErrorIs(t, c.ToggleFullscreen(), ErrFullscreenDenied)
	})
}

func TestController_EndedNotifiesOncePerPlayback(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 60)

	h.c.OnEnded(1)
	h.c.OnEnded(1)
	st := h.c.State()
	assert.Equal(t, PhaseEnded, st.Phase)
	assert.False(t, st.IsPlaying)
	assert.Equal(t, []string{"movie-1"}, h.finished)

	require.NoError(t, h.c.TogglePlay())
	assert.Equal(t, PhasePlaying, h.c.State().Phase)
	assert.Equal(t, []float64{0}, h.media.seekCalls())
	assert.Equal(t, []Generation{1}, h.media.seekGenerations())

	h.c.OnEnded(1)
	assert.Equal(t, []string{"movie-1", "movie-1"}, h.finished)
}

func TestController_SeekBackFromEnded(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 60)
	h.c.OnEnded(1)

	require.NoError(t, h.c.CommitSeek(0.5))
	st := h.c.State()
	assert.Equal(t, PhasePaused, st.Phase)
	assert.Equal(t, 30.0, st.PlayedSeconds)

	// Rewinding is not a play, so the hook is not re-armed.
	h.c.OnEnded(1)
	assert.Len(t, h.finished, 1)
}

func TestController_BufferingIsOrthogonal(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	require.NoError(t, h.c.Start())

	h.c.OnBuffering(1, true)
	assert.False(t, h.c.State().IsBuffering, "not tracked while loading")

	h.c.OnReady(1, 100)
	h.c.OnBuffering(1, true)
	st := h.c.State()
	assert.True(t, st.IsBuffering)
	assert.Equal(t, PhasePlaying, st.Phase)

	require.NoError(t, h.c.TogglePlay())
	st = h.c.State()
	assert.True(t, st.IsBuffering)
	assert.Equal(t, PhasePaused, st.Phase)

	h.c.OnBuffering(1, false)
	assert.False(t, h.c.State().IsBuffering)

	h.c.OnBuffering(1, true)
	h.c.OnReady(1, 100)
	assert.False(t, h.c.State().IsBuffering, "ready clears buffering")
}

func TestController_ErrorAndRetry(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	h.tick(20, 30)

	cause := errors.New("decode failed")
	h.c.OnError(1, cause)
	st := h.c.State()
	assert.Equal(t, PhaseError, st.Phase)
	assert.False(t, st.IsPlaying)
	assert.NotEmpty(t, st.LastError)

	notice := h.notices.last()
	assert.Equal(t, NoticePlaybackError, notice.Kind)
	assert.True(t, notice.Retryable)

	var loadErr *LoadError
	require.ErrorAs(t, h.c.LastError(), &loadErr)
	assert.Equal(t, "A", loadErr.Source)
	assert.ErrorIs(t, loadErr, cause)

	require.ErrorIs(t, h.c.TogglePlay(), ErrRetryRequired)
	require.ErrorIs(t, h.c.ChangeQuality("720p"), ErrRetryRequired)
	require.ErrorIs(t, h.c.CommitSeek(0.1), ErrRetryRequired)
	assert.Equal(t, PhaseError, h.c.State().Phase)
	assert.Len(t, h.media.loads, 1, "no automatic retry")

	require.NoError(t, h.c.Retry())
	st = h.c.State()
	assert.Equal(t, PhaseLoading, st.Phase)
	assert.True(t, st.IsPlaying)
	assert.Empty(t, st.LastError)
	assert.Nil(t, h.c.LastError())
	assert.Equal(t, loadCall{src: "A", gen: 2}, h.media.lastLoad())

	h.c.OnReady(2, 100)
	assert.Equal(t, PhasePlaying, h.c.State().Phase)
	assert.Equal(t, []float64{20}, h.media.seekCalls())

	require.ErrorIs(t, h.c.Retry(), ErrNotFailed)
}

func TestController_StaleErrorAfterSwitchIgnored(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	require.NoError(t, h.c.ChangeQuality("720p"))

	h.c.OnError(1, errors.New("old source torn down"))
	assert.Equal(t, PhaseLoading, h.c.State().Phase)
}

func TestController_ControlsAutoHide(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	h.playing(t, 100)
	require.True(t, h.c.State().ControlsVisible)

	h.clock.Advance(2 * time.Second)
	assert.True(t, h.c.State().ControlsVisible)

	h.c.PointerActivity()
	h.clock.Advance(2 * time.Second)
	assert.True(t, h.c.State().ControlsVisible, "activity restarts the timer")

	h.clock.Advance(time.Second)
	assert.False(t, h.c.State().ControlsVisible)

	h.c.ShowControls()
	assert.True(t, h.c.State().ControlsVisible)

	require.NoError(t, h.c.TogglePlay())
	assert.Zero(t, h.clock.Pending(), "timer suspended while paused")
	h.clock.Advance(10 * time.Second)
	assert.True(t, h.c.State().ControlsVisible)
}

func TestController_InstancesDoNotShareTimers(t *testing.T) {
	clock := newFakeClock()
	mk := func() *Controller {
		c, err := NewController(Config{Session: threeQualities(), Media: &recordingMedia{}, Clock: clock, Autoplay: true})
		require.NoError(t, err)
		require.NoError(t, c.Start())
		c.OnReady(1, 100)
		return c
	}
	a, b := mk(), mk()

	require.NoError(t, a.TogglePlay())
	clock.Advance(DefaultControlsHideDelay)

	assert.True(t, a.State().ControlsVisible)
	assert.False(t, b.State().ControlsVisible)
}

func TestController_CloseIgnoresLateSignals(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.Autoplay = true })
	require.NoError(t, h.c.Start())

	final := h.c.Close()
	assert.Equal(t, PhaseLoading, final.Phase)

	h.c.OnReady(1, 100)
	h.c.OnReady(0, 100)
	assert.Equal(t, PhaseLoading, h.c.State().Phase)
	assert.Zero(t, h.media.plays)
	require.ErrorIs(t, h.c.TogglePlay(), ErrClosed)
	assert.Zero(t, h.clock.Pending())
}

func TestController_OnChangeReceivesSnapshots(t *testing.T) {
	var phases []Phase
	h := newHarness(t, func(cfg *Config) {
		cfg.OnChange = func(st State) { phases = append(phases, st.Phase) }
	})
	require.NoError(t, h.c.Start())
	h.c.OnReady(1, 100)
	require.NotEmpty(t, phases)
	assert.Equal(t, PhasePaused, phases[len(phases)-1])

	n := len(phases)
	require.ErrorIs(t, h.c.ChangeQuality("nope"), ErrUnknownQuality)
	assert.Len(t, phases, n, "rejected commands publish nothing")
}

func TestPhaseMachine_TableIsConsistent(t *testing.T) {
	m := newPhaseMachine()
	assert.Equal(t, PhaseIdle, m.State())
	for _, ev := range []event{evResolve, evReadyPlay, evPause, evPlay, evEnd, evRewind, evSwitchSource, evFail, evRetry} {
		_, err := m.Fire(ev)
		require.NoError(t, err, "event %s", ev)
	}
	assert.Equal(t, PhaseLoading, m.State())
}

func TestController_RevisionIncreasesOnMutation(t *testing.T) {
	h := newHarness(t, nil)
	r0 := h.c.State().Revision

	require.NoError(t, h.c.SetVolume(0.4))
	r1 := h.c.State().Revision
	assert.Greater(t, r1, r0)

	// Rejected commands leave the revision alone.
	require.Error(t, h.c.ChangeQuality("4k"))
	assert.Equal(t, r1, h.c.State().Revision)

	require.NoError(t, h.c.ToggleMute())
	assert.Greater(t, h.c.State().Revision, r1)
}

func TestController_ConcurrentCommandsDeliverInOrder(t *testing.T) {
	var (
		mu        sync.Mutex
		delivered []State
		once      sync.Once
	)
	firstHeld := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, func(cfg *Config) {
		cfg.OnChange = func(st State) {
			hold := false
			once.Do(func() { hold = true })
			if hold {
				close(firstHeld)
				<-release
			}
			mu.Lock()
			delivered = append(delivered, st)
			mu.Unlock()
		}
	})

	first := make(chan error, 1)
	go func() { first <- h.c.SetVolume(0.2) }()
	<-firstHeld

	second := make(chan error, 1)
	go func() { second <- h.c.SetVolume(0.7) }()

	// The second mutation is applied while the first delivery is still blocked.
	require.Eventually(t, func() bool { return h.c.State().Volume == 0.7 }, time.Second, time.Millisecond)
	select {
	case <-second:
		t.Fatal("second command delivered before the first")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, 0.2, h.media.mediaVolume(), "second effect waits for the first delivery")

	close(release)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, delivered, 2)
	assert.Equal(t, 0.2, delivered[0].Volume)
	assert.Equal(t, 0.7, delivered[1].Volume)
	assert.Less(t, delivered[0].Revision, delivered[1].Revision)
	final := h.c.State()
	assert.Equal(t, final.Revision, delivered[1].Revision)
	assert.Equal(t, 0.7, h.media.mediaVolume())
}
