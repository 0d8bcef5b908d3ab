// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaybackSessionsActive tracks currently open playback sessions.
	PlaybackSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamplay_playback_sessions_active",
		Help: "Number of playback sessions currently open",
	})

	// PlaybackSessionsOpened counts session opens by result.
	PlaybackSessionsOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_playback_sessions_opened_total",
		Help: "Total playback session open attempts by result",
	}, []string{"result"})

	// PlaybackTransitions counts phase transitions of the player state machine.
	PlaybackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_playback_transitions_total",
		Help: "Total player phase transitions by source and target phase",
	}, []string{"from", "to"})

	// PlaybackQualitySwitches counts quality changes by target label.
	PlaybackQualitySwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_playback_quality_switches_total",
		Help: "Total quality switches by target quality label",
	}, []string{"quality"})

	// PlaybackSeeks counts committed seeks.
	PlaybackSeeks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamplay_playback_seeks_total",
		Help: "Total committed seeks",
	})

	// PlaybackErrors counts load/playback failures.
	PlaybackErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamplay_playback_errors_total",
		Help: "Total load or playback failures reported by media elements",
	})

	// PlaybackStaleSignals counts media signals dropped because they belong
	// to a superseded source generation.
	PlaybackStaleSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_playback_stale_signals_total",
		Help: "Media signals ignored because their source generation is outdated",
	}, []string{"signal"})

	// PlaybackRejectedCommands counts contract violations by command.
	PlaybackRejectedCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamplay_playback_rejected_commands_total",
		Help: "Commands rejected as contract violations",
	}, []string{"command"})
)

// IncTransition records a phase transition.
func IncTransition(from, to string) {
	PlaybackTransitions.WithLabelValues(from, to).Inc()
}

// IncQualitySwitch records a quality switch.
func IncQualitySwitch(quality string) {
	PlaybackQualitySwitches.WithLabelValues(quality).Inc()
}

// IncStaleSignal records a dropped stale media signal.
func IncStaleSignal(signal string) {
	PlaybackStaleSignals.WithLabelValues(signal).Inc()
}

// IncRejectedCommand records a contract violation.
func IncRejectedCommand(command string) {
	PlaybackRejectedCommands.WithLabelValues(command).Inc()
}

// IncSessionOpen records a session open attempt outcome.
func IncSessionOpen(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	PlaybackSessionsOpened.WithLabelValues(result).Inc()
}
