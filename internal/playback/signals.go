// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/metrics"
)

// OnReady handles the media element's ready signal for generation gen.
// A pending re-seek captured for the same generation is applied first,
// then the controller moves Loading → Playing or Loading → Paused
// depending on the play intent.
func (c *Controller) OnReady(gen Generation, durationSeconds float64) {
	_ = c.do(func() error {
		if c.staleLocked(gen, "ready") {
			return nil
		}
		if durationSeconds > 0 && durationSeconds == durationSeconds {
			c.st.DurationSeconds = durationSeconds
		}
		if c.st.IsBuffering {
			c.st.IsBuffering = false
		}
		c.touch()

		if c.st.Phase != PhaseLoading {
			// Duplicate ready from the current source: only the duration and
			// buffering flag are refreshed.
			return nil
		}

		if p := c.pending; p != nil {
			c.pending = nil
			if p.gen != c.st.Generation {
				metrics.IncStaleSignal("pending_seek")
				c.logger.Debug().
					Str(xglog.FieldEvent, "playback.pending_seek_dropped").
					Uint64(xglog.FieldGeneration, uint64(p.gen)).
					Uint64("current_generation", uint64(c.st.Generation)).
					Msg("dropping re-seek captured for another source")
			} else {
				target := p.target(c.st.DurationSeconds)
				c.applyPositionLocked(target)
				gen := p.gen
				c.effect(func() { c.media.Seek(target, gen) })
				c.logger.Debug().
					Str(xglog.FieldEvent, "playback.reseek").
					Uint64(xglog.FieldGeneration, uint64(p.gen)).
					Float64(xglog.FieldPosition, target).
					Msg("restored position on ready")
			}
		}

		if c.st.IsPlaying {
			if err := c.fireLocked(evReadyPlay); err != nil {
				return err
			}
			c.finishedNotified = false
			c.effect(c.media.Play)
		} else {
			if err := c.fireLocked(evReadyPause); err != nil {
				return err
			}
		}
		c.showControlsLocked()
		return nil
	})
}

// applyPositionLocked moves both the media clock and the displayed
// position to seconds.
func (c *Controller) applyPositionLocked(seconds float64) {
	c.mediaPosition = seconds
	c.st.PlayedSeconds = seconds
	if c.st.DurationSeconds > 0 {
		c.st.PlayedFraction = clamp01(seconds / c.st.DurationSeconds)
	}
	if c.st.LoadedFraction < c.st.PlayedFraction {
		c.st.LoadedFraction = c.st.PlayedFraction
	}
	if c.st.LoadedSeconds < c.st.PlayedSeconds {
		c.st.LoadedSeconds = c.st.PlayedSeconds
	}
}

// OnBuffering sets (empty) or clears the buffering flag. The flag is only
// tracked while Playing or Paused and never changes the phase.
func (c *Controller) OnBuffering(gen Generation, empty bool) {
	_ = c.do(func() error {
		if c.staleLocked(gen, "buffering") {
			return nil
		}
		if c.st.Phase != PhasePlaying && c.st.Phase != PhasePaused {
			return nil
		}
		if c.st.IsBuffering != empty {
			c.st.IsBuffering = empty
			c.touch()
		}
		return nil
	})
}

// OnProgressTick applies a periodic progress report. Ticks are ignored
// while the user drags the scrubber and while a re-seek is pending.
func (c *Controller) OnProgressTick(t ProgressTick) {
	_ = c.do(func() error {
		if c.staleLocked(t.Generation, "progress") {
			return nil
		}
		if c.st.Phase != PhasePlaying && c.st.Phase != PhasePaused {
			return nil
		}
		if c.st.IsSeeking || c.pending != nil {
			return nil
		}

		played := clamp01(t.PlayedFraction)
		loaded := clamp01(t.LoadedFraction)
		if loaded < played {
			loaded = played
		}
		playedSec := t.PlayedSeconds
		if playedSec < 0 || playedSec != playedSec {
			playedSec = 0
		}
		loadedSec := t.LoadedSeconds
		if loadedSec < playedSec || loadedSec != loadedSec {
			loadedSec = playedSec
		}
		if c.st.DurationSeconds <= 0 && played > 0 && playedSec > 0 {
			c.st.DurationSeconds = playedSec / played
		}

		c.st.PlayedFraction = played
		c.st.PlayedSeconds = playedSec
		c.st.LoadedFraction = loaded
		c.st.LoadedSeconds = loadedSec
		c.mediaPosition = playedSec
		c.touch()
		return nil
	})
}

// OnEnded moves the player to Ended. The content-finished hook fires once
// per playback; repeated end signals without an intervening play are
// absorbed.
func (c *Controller) OnEnded(gen Generation) {
	_ = c.do(func() error {
		if c.staleLocked(gen, "ended") {
			return nil
		}
		if c.st.Phase != PhasePlaying && c.st.Phase != PhasePaused {
			return nil
		}
		if err := c.fireLocked(evEnd); err != nil {
			return err
		}
		c.st.IsPlaying = false
		c.st.IsBuffering = false
		c.st.IsSeeking = false
		c.st.PlayedFraction = 1
		c.st.LoadedFraction = 1
		if c.st.DurationSeconds > 0 {
			c.st.PlayedSeconds = c.st.DurationSeconds
			c.st.LoadedSeconds = c.st.DurationSeconds
			c.mediaPosition = c.st.DurationSeconds
		}
		c.showControlsLocked()

		if c.finishedNotified {
			return nil
		}
		c.finishedNotified = true
		if c.onFinish != nil {
			id := c.st.ContentID
			c.effect(func() { c.onFinish(id) })
		}
		c.logger.Info().
			Str(xglog.FieldEvent, "playback.finished").
			Uint64(xglog.FieldGeneration, uint64(c.st.Generation)).
			Msg("content finished")
		return nil
	})
}

// OnError records a load or playback failure and moves to Error. There is
// no automatic retry; the notice asks the viewer to retry.
func (c *Controller) OnError(gen Generation, cause error) {
	_ = c.do(func() error {
		if c.staleLocked(gen, "error") {
			return nil
		}
		if c.st.Phase == PhaseError {
			c.logger.Debug().Err(cause).
				Str(xglog.FieldEvent, "playback.error_repeated").
				Msg("ignoring error while already failed")
			return nil
		}
		wasPlaying := c.st.IsPlaying && c.st.Phase != PhaseEnded
		if err := c.fireLocked(evFail); err != nil {
			return err
		}
		loadErr := &LoadError{Source: c.st.Source, Generation: c.st.Generation, Cause: cause}
		c.lastErr = loadErr
		c.resumePlaying = wasPlaying
		c.st.IsPlaying = false
		c.st.IsBuffering = false
		c.st.IsSeeking = false
		c.st.LastError = loadErr.Error()
		c.showControlsLocked()

		notice := Notice{
			Kind:      NoticePlaybackError,
			Message:   "Playback failed. Retry to continue.",
			Quality:   c.st.CurrentQuality,
			Retryable: true,
		}
		c.effect(func() { c.notifier.Notify(notice) })
		metrics.PlaybackErrors.Inc()
		c.logger.Warn().Err(cause).
			Str(xglog.FieldEvent, "playback.failed").
			Str(xglog.FieldSource, c.st.Source).
			Uint64(xglog.FieldGeneration, uint64(c.st.Generation)).
			Msg("playback failed")
		return nil
	})
}

// OnFullscreenChange is the platform's confirmation that the container
// entered or left fullscreen.
func (c *Controller) OnFullscreenChange(active bool) {
	_ = c.do(func() error {
		if c.closed || c.st.IsFullscreen == active {
			return nil
		}
		c.st.IsFullscreen = active
		c.touch()
		return nil
	})
}

// LastError returns the failure that moved the player to Error, or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st.Phase != PhaseError || c.lastErr == nil {
		return nil
	}
	return c.lastErr
}
