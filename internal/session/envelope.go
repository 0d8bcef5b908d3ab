// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"github.com/ManuGH/streamplay/internal/playback"
)

// EnvelopeType discriminates the messages streamed to a session's client.
type EnvelopeType string

const (
	EnvelopeDirective EnvelopeType = "directive"
	EnvelopeNotice    EnvelopeType = "notice"
	EnvelopeState     EnvelopeType = "state"
	EnvelopeFinished  EnvelopeType = "finished"
	EnvelopeClosed    EnvelopeType = "closed"
)

// DirectiveOp is an instruction for the client's media element or
// fullscreen container.
type DirectiveOp string

const (
	OpLoad              DirectiveOp = "load"
	OpPlay              DirectiveOp = "play"
	OpPause             DirectiveOp = "pause"
	OpSeek              DirectiveOp = "seek"
	OpSetVolume         DirectiveOp = "set_volume"
	OpSetSubtitle       DirectiveOp = "set_subtitle"
	OpRequestFullscreen DirectiveOp = "request_fullscreen"
	OpExitFullscreen    DirectiveOp = "exit_fullscreen"
)

// Directive is executed by the client. Media signals reporting the outcome
// of a load must carry Generation back. Seconds is set on seek; Volume and
// Muted are set on set_volume, zero values included.
type Directive struct {
	Op         DirectiveOp         `json:"op"`
	Source     string              `json:"source,omitempty"`
	Generation playback.Generation `json:"generation,omitempty"`
	Seconds    *float64            `json:"seconds,omitempty"`
	Volume     *float64            `json:"volume,omitempty"`
	Muted      *bool               `json:"muted,omitempty"`
}

// Envelope is one message on a session topic.
type Envelope struct {
	Type      EnvelopeType     `json:"type"`
	SessionID string           `json:"sessionId"`
	Seq       uint64           `json:"seq"`
	Directive *Directive       `json:"directive,omitempty"`
	Notice    *playback.Notice `json:"notice,omitempty"`
	State     *playback.State  `json:"state,omitempty"`
	ContentID string           `json:"contentId,omitempty"`
}

// Topic returns the bus topic of session id.
func Topic(id string) string {
	return "session/" + id
}
