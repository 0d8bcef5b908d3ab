// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"fmt"

	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/metrics"
)

// TogglePlay inverts the play intent. Before the source is ready it only
// records whether playback should start on ready. It is a no-op in the
// error phase (ErrRetryRequired).
func (c *Controller) TogglePlay() error {
	return c.do(func() error {
		if c.closed {
			return ErrClosed
		}
		switch c.st.Phase {
		case PhaseError:
			return ErrRetryRequired
		case PhaseIdle, PhaseLoading:
			c.st.IsPlaying = !c.st.IsPlaying
			c.touch()
		case PhasePlaying:
			if err := c.fireLocked(evPause); err != nil {
				return err
			}
			c.st.IsPlaying = false
			c.effect(c.media.Pause)
		case PhasePaused:
			if err := c.fireLocked(evPlay); err != nil {
				return err
			}
			c.st.IsPlaying = true
			c.finishedNotified = false
			c.effect(c.media.Play)
		case PhaseEnded:
			if err := c.fireLocked(evPlay); err != nil {
				return err
			}
			c.st.IsPlaying = true
			c.finishedNotified = false
			c.mediaPosition = 0
			c.st.PlayedFraction = 0
			c.st.PlayedSeconds = 0
			gen := c.st.Generation
			c.effect(func() {
				c.media.Seek(0, gen)
				c.media.Play()
			})
		}
		c.showControlsLocked()
		return nil
	})
}

// ToggleMute inverts the mute flag; the stored volume is kept.
func (c *Controller) ToggleMute() error {
	return c.do(func() error {
		if c.closed {
			return ErrClosed
		}
		c.st.IsMuted = !c.st.IsMuted
		c.touch()
		vol, muted := c.st.Volume, c.st.IsMuted
		c.effect(func() { c.media.SetVolume(vol, muted) })
		return nil
	})
}

// SetVolume stores v (0 ≤ v ≤ 1). Zero mutes; a positive value unmutes.
func (c *Controller) SetVolume(v float64) error {
	return c.do(func() error {
		if c.closed {
			return ErrClosed
		}
		if v != v || v < 0 || v > 1 {
			metrics.IncRejectedCommand("set_volume")
			return fmt.Errorf("%w: got %v", ErrInvalidVolume, v)
		}
		c.st.Volume = v
		if v == 0 {
			c.st.IsMuted = true
		} else if c.st.IsMuted {
			c.st.IsMuted = false
		}
		c.touch()
		muted := c.st.IsMuted
		c.effect(func() { c.media.SetVolume(v, muted) })
		return nil
	})
}

func (c *Controller) seekableLocked() error {
	if c.closed {
		return ErrClosed
	}
	switch c.st.Phase {
	case PhaseIdle:
		return ErrNotStarted
	case PhaseError:
		return ErrRetryRequired
	}
	return nil
}

// BeginSeek starts a scrubber drag. Progress ticks no longer move the
// displayed position until CommitSeek.
func (c *Controller) BeginSeek() error {
	return c.do(func() error {
		if err := c.seekableLocked(); err != nil {
			return err
		}
		if !c.st.IsSeeking {
			c.st.IsSeeking = true
			c.touch()
		}
		c.showControlsLocked()
		return nil
	})
}

// UpdateSeekPreview moves only the displayed scrubber position. It is
// ignored outside of a drag.
func (c *Controller) UpdateSeekPreview(fraction float64) {
	_ = c.do(func() error {
		if c.closed || !c.st.IsSeeking {
			return nil
		}
		f := clamp01(fraction)
		c.st.PlayedFraction = f
		c.st.PlayedSeconds = f * c.st.DurationSeconds
		c.touch()
		return nil
	})
}

// CommitSeek applies fraction to the media position and ends the drag.
// It also serves programmatic seeks without a preceding BeginSeek.
func (c *Controller) CommitSeek(fraction float64) error {
	return c.do(func() error {
		if err := c.seekableLocked(); err != nil {
			return err
		}
		f := clamp01(fraction)
		c.st.IsSeeking = false
		c.st.PlayedFraction = f
		c.touch()
		metrics.PlaybackSeeks.Inc()

		if c.st.Phase == PhaseLoading || c.st.DurationSeconds <= 0 {
			// Not ready yet: the target replaces whatever re-seek was
			// pending and is applied on ready.
			c.pending = &pendingSeek{gen: c.st.Generation, fraction: f, byFraction: true}
			c.st.PlayedSeconds = f * c.st.DurationSeconds
			c.logger.Debug().
				Str(xglog.FieldEvent, "playback.seek_deferred").
				Float64("fraction", f).
				Msg("seek deferred until source is ready")
			return nil
		}

		seconds := f * c.st.DurationSeconds
		c.st.PlayedSeconds = seconds
		c.mediaPosition = seconds
		if c.st.LoadedFraction < f {
			c.st.LoadedFraction = f
		}
		if c.st.Phase == PhaseEnded && f < 1 {
			if err := c.fireLocked(evRewind); err != nil {
				return err
			}
		}
		gen := c.st.Generation
		c.effect(func() { c.media.Seek(seconds, gen) })
		return nil
	})
}

// ChangeQuality switches the source to label ("auto" or an option label)
// and re-seeks to the current position once the new source is ready.
func (c *Controller) ChangeQuality(label string) error {
	return c.do(func() error {
		if c.closed {
			return ErrClosed
		}
		if label != QualityAuto {
			if _, ok := c.session.quality(label); !ok {
				metrics.IncRejectedCommand("change_quality")
				c.logger.Debug().
					Str(xglog.FieldEvent, "playback.quality_rejected").
					Str(xglog.FieldQuality, label).
					Msg("rejected unknown quality label")
				return fmt.Errorf("%w: %q", ErrUnknownQuality, label)
			}
		}
		if c.st.Phase == PhaseError {
			return ErrRetryRequired
		}
		if label == c.st.CurrentQuality {
			return nil
		}

		prev := c.st.CurrentQuality
		c.st.CurrentQuality = label
		c.touch()
		notice := Notice{
			Kind:    NoticeQualityChanged,
			Message: "Quality changed to " + label,
			Quality: label,
		}

		if c.st.Phase == PhaseIdle {
			c.effect(func() { c.notifier.Notify(notice) })
			return nil
		}

		// Capture the position before the source changes. A switch during a
		// pending re-seek carries that target over to the new generation.
		var carry pendingSeek
		hasCarry := false
		if c.pending != nil {
			carry = *c.pending
			hasCarry = true
		} else if c.mediaPosition > 0 {
			carry = pendingSeek{seconds: c.mediaPosition}
			hasCarry = true
		}

		c.st.Generation++
		c.st.Source = c.session.sourceFor(label)
		c.pending = nil
		if hasCarry {
			carry.gen = c.st.Generation
			c.pending = &carry
		}
		if err := c.fireLocked(evSwitchSource); err != nil {
			return err
		}
		c.st.IsSeeking = false
		c.st.IsBuffering = false
		c.st.LoadedFraction = 0
		c.st.LoadedSeconds = 0

		gen, src := c.st.Generation, c.st.Source
		c.effect(func() {
			c.media.Load(src, gen)
			c.notifier.Notify(notice)
		})
		metrics.IncQualitySwitch(label)
		c.logger.Info().
			Str(xglog.FieldEvent, "playback.quality_changed").
			Str("from", prev).
			Str(xglog.FieldQuality, label).
			Uint64(xglog.FieldGeneration, uint64(gen)).
			Float64(xglog.FieldPosition, carry.seconds).
			Msg("quality changed")
		return nil
	})
}

// ChangeSubtitle activates the track with source src; "" disables
// subtitles. Position and play state are untouched.
func (c *Controller) ChangeSubtitle(src string) error {
	return c.do(func() error {
		if c.closed {
			return ErrClosed
		}
		var notice Notice
		if src == "" {
			notice = Notice{Kind: NoticeSubtitlesDisabled, Message: "Subtitles disabled"}
		} else {
			track, ok := c.session.subtitle(src)
			if !ok {
				metrics.IncRejectedCommand("change_subtitle")
				c.logger.Debug().
					Str(xglog.FieldEvent, "playback.subtitle_rejected").
					Str(xglog.FieldSource, src).
					Msg("rejected unknown subtitle track")
				return fmt.Errorf("%w: %q", ErrUnknownSubtitle, src)
			}
			label := track.Label
			if label == "" {
				label = track.Language
			}
			notice = Notice{Kind: NoticeSubtitlesChanged, Message: "Subtitles: " + label}
		}
		if src == c.st.ActiveSubtitle {
			return nil
		}
		c.st.ActiveSubtitle = src
		c.touch()
		c.effect(func() {
			c.media.SetSubtitle(src)
			c.notifier.Notify(notice)
		})
		return nil
	})
}

// ToggleFullscreen asks the host to enter or leave fullscreen. The flag
// only changes through OnFullscreenChange; a refused request changes
// nothing and returns ErrFullscreenDenied.
func (c *Controller) ToggleFullscreen() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	active := c.st.IsFullscreen
	c.mu.Unlock()

	var err error
	if active {
		err = c.host.ExitFullscreen()
	} else {
		err = c.host.RequestFullscreen()
	}
	if err != nil {
		c.logger.Debug().Err(err).
			Str(xglog.FieldEvent, "playback.fullscreen_denied").
			Bool("exit", active).
			Msg("host refused fullscreen request")
		return fmt.Errorf("%w: %v", ErrFullscreenDenied, err)
	}
	return nil
}

// Retry re-issues the current source after a failure and moves
// Error → Loading. Playback resumes where it failed.
func (c *Controller) Retry() error {
	return c.do(func() error {
		if c.closed {
			return ErrClosed
		}
		if c.st.Phase != PhaseError {
			return ErrNotFailed
		}
		c.st.Generation++
		if c.st.Source == "" {
			c.st.Source = c.session.sourceFor(c.st.CurrentQuality)
		}
		if c.pending != nil {
			c.pending.gen = c.st.Generation
		} else if c.mediaPosition > 0 {
			c.pending = &pendingSeek{gen: c.st.Generation, seconds: c.mediaPosition}
		}
		if err := c.fireLocked(evRetry); err != nil {
			return err
		}
		c.st.LastError = ""
		c.lastErr = nil
		c.st.IsPlaying = c.resumePlaying
		c.st.LoadedFraction = 0
		c.st.LoadedSeconds = 0

		gen, src := c.st.Generation, c.st.Source
		c.effect(func() { c.media.Load(src, gen) })
		c.logger.Info().
			Str(xglog.FieldEvent, "playback.retry").
			Uint64(xglog.FieldGeneration, uint64(gen)).
			Msg("retrying source")
		return nil
	})
}
