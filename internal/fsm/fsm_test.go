// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type state string
type event string

func TestMachine_FireFollowsTable(t *testing.T) {
	m, err := New[state, event]("off", []Transition[state, event]{
		{From: "off", Event: "press", To: "on"},
		{From: "on", Event: "press", To: "off"},
	})
	require.NoError(t, err)

	require.True(t, m.Can("press"))
	require.False(t, m.Can("kick"))

	to, err := m.Fire("press")
	require.NoError(t, err)
	require.Equal(t, state("on"), to)
	require.Equal(t, state("on"), m.State())

	to, err = m.Fire("kick")
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, state("on"), to)
	require.Equal(t, state("on"), m.State())
}

func TestMachine_RejectsDuplicateEdges(t *testing.T) {
	_, err := New[state, event]("off", []Transition[state, event]{
		{From: "off", Event: "press", To: "on"},
		{From: "off", Event: "press", To: "broken"},
	})
	require.Error(t, err)
}
