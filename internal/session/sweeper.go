// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"time"

	xglog "github.com/ManuGH/streamplay/internal/log"
)

const minSweepInterval = 5 * time.Second

// Run closes idle sessions until ctx is done. The sweep interval is half
// the idle timeout, read again on every pass so reloads take effect.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.sweepInterval()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	m.logger.Info().Dur("interval", interval).Msg("session sweeper started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			m.SweepOnce()
			timer.Reset(m.sweepInterval())
		}
	}
}

func (m *Manager) sweepInterval() time.Duration {
	idle := m.currentSettings().IdleTimeout
	if idle <= 0 {
		return time.Minute
	}
	if iv := idle / 2; iv > minSweepInterval {
		return iv
	}
	return minSweepInterval
}

// SweepOnce closes every session without activity for the idle timeout
// and returns how many were closed.
func (m *Manager) SweepOnce() int {
	idle := m.currentSettings().IdleTimeout
	if idle <= 0 {
		return 0
	}
	cutoff := m.now().Add(-idle).UnixNano()

	m.mu.RLock()
	var stale []string
	for id, e := range m.sessions {
		if e.lastActivity.Load() < cutoff {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if err := m.Close(id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		m.logger.Info().
			Str(xglog.FieldEvent, "session.swept").
			Int("closed", closed).
			Msg("closed idle sessions")
	}
	return closed
}
