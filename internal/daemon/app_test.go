// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamplay/internal/config"
	"github.com/ManuGH/streamplay/internal/log"
)

func TestApp_RunRequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_ReloadAppliesPlayerSettings(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Catalog.Backend = "memory"
	cfg.Resume.Backend = "memory"
	cfg.Server.ListenAddr = reserveListenAddr(t)

	path := filepath.Join(cfg.DataDir, "config.yaml")
	require.NoError(t, config.Save(path, cfg))
	loader := config.NewLoader(path, "test")
	loaded, err := loader.Load()
	require.NoError(t, err)
	holder := config.NewHolder(loaded, loader)

	rt := buildRuntime(t, loaded)
	mgr, err := NewManager(loaded.Server, Deps{Logger: log.WithComponent("test"), Handler: rt.API.Handler()})
	require.NoError(t, err)

	app := NewApp(log.WithComponent("test"), mgr, holder, rt.Sessions)
	app.reloadSignal = nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	require.NoError(t, waitForListen(loaded.Server.ListenAddr, 2*time.Second))

	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prevLevel) })

	next := loaded
	next.Player.MaxSessions = 1
	next.LogLevel = "debug"
	require.NoError(t, config.Save(path, next))
	require.NoError(t, holder.Reload(ctx))

	require.Eventually(t, func() bool {
		return rt.Sessions.Limit() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
