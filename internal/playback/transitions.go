// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import "github.com/ManuGH/streamplay/internal/fsm"

// event is an input of the phase machine.
type event string

const (
	evResolve      event = "resolve"       // first source resolved
	evSwitchSource event = "switch_source" // quality change reissued the source
	evReadyPlay    event = "ready_play"    // media ready, play pending
	evReadyPause   event = "ready_pause"   // media ready, no play pending
	evPlay         event = "play"
	evPause        event = "pause"
	evEnd          event = "end"
	evRewind       event = "rewind" // seek back from the end
	evFail         event = "fail"
	evRetry        event = "retry"
)

var transitionsTable = []fsm.Transition[Phase, event]{
	{From: PhaseIdle, Event: evResolve, To: PhaseLoading},

	{From: PhaseLoading, Event: evSwitchSource, To: PhaseLoading},
	{From: PhasePlaying, Event: evSwitchSource, To: PhaseLoading},
	{From: PhasePaused, Event: evSwitchSource, To: PhaseLoading},
	{From: PhaseEnded, Event: evSwitchSource, To: PhaseLoading},

	{From: PhaseLoading, Event: evReadyPlay, To: PhasePlaying},
	{From: PhaseLoading, Event: evReadyPause, To: PhasePaused},

	{From: PhasePaused, Event: evPlay, To: PhasePlaying},
	{From: PhaseEnded, Event: evPlay, To: PhasePlaying},
	{From: PhasePlaying, Event: evPause, To: PhasePaused},

	{From: PhasePlaying, Event: evEnd, To: PhaseEnded},
	{From: PhasePaused, Event: evEnd, To: PhaseEnded},
	{From: PhaseEnded, Event: evRewind, To: PhasePaused},

	{From: PhaseIdle, Event: evFail, To: PhaseError},
	{From: PhaseLoading, Event: evFail, To: PhaseError},
	{From: PhasePlaying, Event: evFail, To: PhaseError},
	{From: PhasePaused, Event: evFail, To: PhaseError},
	{From: PhaseEnded, Event: evFail, To: PhaseError},

	{From: PhaseError, Event: evRetry, To: PhaseLoading},
}

func newPhaseMachine() *fsm.Machine[Phase, event] {
	m, err := fsm.New(PhaseIdle, transitionsTable)
	if err != nil {
		// The table is static; a duplicate edge is a programming error.
		panic(err)
	}
	return m
}
