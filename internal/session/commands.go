// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"errors"
	"fmt"

	"github.com/ManuGH/streamplay/internal/playback"
)

// CommandType names a user intent.
type CommandType string

const (
	CmdTogglePlay       CommandType = "toggle_play"
	CmdToggleMute       CommandType = "toggle_mute"
	CmdSetVolume        CommandType = "set_volume"
	CmdBeginSeek        CommandType = "begin_seek"
	CmdSeekPreview      CommandType = "seek_preview"
	CmdCommitSeek       CommandType = "commit_seek"
	CmdChangeQuality    CommandType = "change_quality"
	CmdChangeSubtitle   CommandType = "change_subtitle"
	CmdToggleFullscreen CommandType = "toggle_fullscreen"
	CmdShowControls     CommandType = "show_controls"
	CmdRetry            CommandType = "retry"
)

// Command is a user intent sent by the client.
type Command struct {
	Type     CommandType `json:"type"`
	Fraction *float64    `json:"fraction,omitempty"`
	Volume   *float64    `json:"volume,omitempty"`
	Quality  string      `json:"quality,omitempty"`
	Subtitle string      `json:"subtitle,omitempty"`
}

// SignalType names a media or platform signal.
type SignalType string

const (
	SigReady            SignalType = "ready"
	SigBuffering        SignalType = "buffering"
	SigProgress         SignalType = "progress"
	SigEnded            SignalType = "ended"
	SigError            SignalType = "error"
	SigFullscreenChange SignalType = "fullscreen_change"
	SigPointer          SignalType = "pointer"
)

// Signal is reported by the client's media element or container.
type Signal struct {
	Type            SignalType          `json:"type"`
	Generation      playback.Generation `json:"generation"`
	DurationSeconds float64             `json:"durationSeconds,omitempty"`
	Empty           bool                `json:"empty,omitempty"`
	PlayedFraction  float64             `json:"playedFraction,omitempty"`
	PlayedSeconds   float64             `json:"playedSeconds,omitempty"`
	LoadedFraction  float64             `json:"loadedFraction,omitempty"`
	LoadedSeconds   float64             `json:"loadedSeconds,omitempty"`
	Message         string              `json:"message,omitempty"`
	Active          bool                `json:"active,omitempty"`
}

var (
	ErrUnknownCommand = fmt.Errorf("%w: unknown command", playback.ErrContractViolation)
	ErrUnknownSignal  = fmt.Errorf("%w: unknown signal", playback.ErrContractViolation)
	ErrMissingField   = fmt.Errorf("%w: missing field", playback.ErrContractViolation)
)

func applyCommand(c *playback.Controller, cmd Command) error {
	switch cmd.Type {
	case CmdTogglePlay:
		return c.TogglePlay()
	case CmdToggleMute:
		return c.ToggleMute()
	case CmdSetVolume:
		if cmd.Volume == nil {
			return fmt.Errorf("%w: volume", ErrMissingField)
		}
		return c.SetVolume(*cmd.Volume)
	case CmdBeginSeek:
		return c.BeginSeek()
	case CmdSeekPreview:
		if cmd.Fraction == nil {
			return fmt.Errorf("%w: fraction", ErrMissingField)
		}
		c.UpdateSeekPreview(*cmd.Fraction)
		return nil
	case CmdCommitSeek:
		if cmd.Fraction == nil {
			return fmt.Errorf("%w: fraction", ErrMissingField)
		}
		return c.CommitSeek(*cmd.Fraction)
	case CmdChangeQuality:
		return c.ChangeQuality(cmd.Quality)
	case CmdChangeSubtitle:
		return c.ChangeSubtitle(cmd.Subtitle)
	case CmdToggleFullscreen:
		return c.ToggleFullscreen()
	case CmdShowControls:
		c.ShowControls()
		return nil
	case CmdRetry:
		return c.Retry()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Type)
	}
}

func applySignal(c *playback.Controller, sig Signal) error {
	switch sig.Type {
	case SigReady:
		c.OnReady(sig.Generation, sig.DurationSeconds)
	case SigBuffering:
		c.OnBuffering(sig.Generation, sig.Empty)
	case SigProgress:
		c.OnProgressTick(playback.ProgressTick{
			Generation:     sig.Generation,
			PlayedFraction: sig.PlayedFraction,
			PlayedSeconds:  sig.PlayedSeconds,
			LoadedFraction: sig.LoadedFraction,
			LoadedSeconds:  sig.LoadedSeconds,
		})
	case SigEnded:
		c.OnEnded(sig.Generation)
	case SigError:
		msg := sig.Message
		if msg == "" {
			msg = "media error"
		}
		c.OnError(sig.Generation, errors.New(msg))
	case SigFullscreenChange:
		c.OnFullscreenChange(sig.Active)
	case SigPointer:
		c.PointerActivity()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSignal, sig.Type)
	}
	return nil
}
