// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package session hosts the playback controllers of connected viewers.
// Each session owns one playback.Controller whose media, host and notice
// ports publish envelopes on the session's bus topic; the client executes
// directives and reports media signals back.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/streamplay/internal/bus"
	xglog "github.com/ManuGH/streamplay/internal/log"
	"github.com/ManuGH/streamplay/internal/media"
	"github.com/ManuGH/streamplay/internal/metrics"
	"github.com/ManuGH/streamplay/internal/playback"
	"github.com/ManuGH/streamplay/internal/resume"
	"github.com/ManuGH/streamplay/internal/telemetry"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many playback sessions")
)

const persistTimeout = 3 * time.Second

// Settings are the live-reloadable player settings.
type Settings struct {
	MaxSessions       int
	IdleTimeout       time.Duration
	ControlsHideDelay time.Duration
	Resume            resume.Policy
}

// Config wires a Manager.
type Config struct {
	Provider media.Provider
	Bus      bus.Bus
	Resume   resume.Store // optional
	Settings Settings
	Clock    playback.Clock // optional, shared by all controllers
	Logger   zerolog.Logger
	now      func() time.Time
}

// OpenRequest asks for a new session.
type OpenRequest struct {
	ContentID string   `json:"contentId"`
	ViewerID  string   `json:"viewerId,omitempty"`
	Autoplay  bool     `json:"autoplay"`
	Quality   string   `json:"quality,omitempty"`
	Subtitle  string   `json:"subtitle,omitempty"`
	Volume    *float64 `json:"volume,omitempty"`
	Muted     bool     `json:"muted,omitempty"`
}

// Info describes an open session.
type Info struct {
	ID       string           `json:"id"`
	ViewerID string           `json:"viewerId,omitempty"`
	OpenedAt time.Time        `json:"openedAt"`
	StartAt  float64          `json:"startAt,omitempty"`
	Session  playback.Session `json:"session"`
	State    playback.State   `json:"state"`
}

type entry struct {
	id       string
	viewerID string
	openedAt time.Time
	startAt  float64
	ctrl     *playback.Controller
	pub      *publisher

	lastActivity atomic.Int64
	lastPhase    atomic.Value // playback.Phase
	lastQuality  atomic.Value // string
}

func (e *entry) touch(now time.Time) {
	e.lastActivity.Store(now.UnixNano())
}

// Manager owns all open sessions of the process.
type Manager struct {
	provider media.Provider
	bus      bus.Bus
	store    resume.Store
	clock    playback.Clock
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
	reserved int
	settings Settings
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("session: media provider is required")
	}
	if cfg.Bus == nil {
		return nil, fmt.Errorf("session: bus is required")
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		provider: cfg.Provider,
		bus:      cfg.Bus,
		store:    cfg.Resume,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		now:      now,
		sessions: make(map[string]*entry),
		settings: cfg.Settings,
	}, nil
}

// ApplySettings replaces the player settings. Open sessions keep their
// controls delay; limits and timeouts apply immediately.
func (m *Manager) ApplySettings(s Settings) {
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
	m.logger.Info().
		Str(xglog.FieldEvent, "session.settings_applied").
		Int("max_sessions", s.MaxSessions).
		Dur("idle_timeout", s.IdleTimeout).
		Msg("player settings applied")
}

func (m *Manager) currentSettings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Limit returns the configured session limit; zero means unlimited.
func (m *Manager) Limit() int {
	return m.currentSettings().MaxSessions
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// reserve claims a slot before the (slow) resource lookup so concurrent
// opens cannot exceed the limit.
func (m *Manager) reserve() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max := m.settings.MaxSessions; max > 0 && len(m.sessions)+m.reserved >= max {
		return ErrTooManySessions
	}
	m.reserved++
	return nil
}

func (m *Manager) release() {
	m.mu.Lock()
	m.reserved--
	m.mu.Unlock()
}

// Open resolves the content's resources, restores the viewer's resume
// position and starts a controller.
func (m *Manager) Open(ctx context.Context, req OpenRequest) (Info, error) {
	ctx, span := telemetry.Tracer("streamplay/session").Start(ctx, "session.open",
		trace.WithAttributes(telemetry.SessionAttributes("", req.ContentID, req.ViewerID, req.Quality)...))
	defer span.End()

	info, err := m.open(ctx, req)
	metrics.IncSessionOpen(err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return info, err
	}
	span.SetAttributes(attribute.String(telemetry.SessionIDKey, info.ID))
	return info, nil
}

func (m *Manager) open(ctx context.Context, req OpenRequest) (Info, error) {
	if err := m.reserve(); err != nil {
		return Info{}, err
	}
	defer m.release()

	res, err := m.provider.Resources(ctx, req.ContentID)
	if err != nil {
		return Info{}, fmt.Errorf("resolve %s: %w", req.ContentID, err)
	}
	settings := m.currentSettings()

	var startAt float64
	if m.store != nil && req.ViewerID != "" {
		st, err := m.store.Get(ctx, req.ViewerID, req.ContentID)
		if err != nil {
			m.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "session.resume_lookup_failed").
				Str(xglog.FieldContentID, req.ContentID).
				Msg("resume lookup failed, starting from the beginning")
		}
		startAt = settings.Resume.StartAt(st)
	}

	id := uuid.NewString()
	logger := m.logger.With().
		Str(xglog.FieldSessionID, id).
		Str(xglog.FieldContentID, req.ContentID).
		Logger()
	e := &entry{
		id:       id,
		viewerID: req.ViewerID,
		openedAt: m.now(),
		startAt:  startAt,
		pub:      &publisher{id: id, bus: m.bus, logger: logger},
	}
	e.touch(e.openedAt)
	e.lastPhase.Store(playback.PhaseIdle)

	ctrl, err := playback.NewController(playback.Config{
		Session:           res.Session(),
		Media:             busMedia{p: e.pub},
		Host:              busHost{p: e.pub},
		Notify:            busNotifier{p: e.pub},
		OnFinished:        func(contentID string) { m.onFinished(e, contentID) },
		OnChange:          func(st playback.State) { m.onChange(e, st) },
		Autoplay:          req.Autoplay,
		InitialQuality:    req.Quality,
		InitialSubtitle:   req.Subtitle,
		StartAt:           startAt,
		Volume:            req.Volume,
		Muted:             req.Muted,
		ControlsHideDelay: settings.ControlsHideDelay,
		Clock:             m.clock,
		Logger:            &logger,
	})
	if err != nil {
		return Info{}, err
	}
	e.ctrl = ctrl
	e.lastQuality.Store(ctrl.State().CurrentQuality)

	m.mu.Lock()
	m.sessions[id] = e
	m.mu.Unlock()
	metrics.PlaybackSessionsActive.Inc()

	if err := ctrl.Start(); err != nil {
		m.Close(id)
		return Info{}, err
	}
	logger.Info().
		Str(xglog.FieldEvent, "session.opened").
		Str(xglog.FieldViewerID, req.ViewerID).
		Float64(xglog.FieldPosition, startAt).
		Msg("playback session opened")
	return e.info(), nil
}

func (e *entry) info() Info {
	return Info{
		ID:       e.id,
		ViewerID: e.viewerID,
		OpenedAt: e.openedAt,
		StartAt:  e.startAt,
		Session:  e.ctrl.Session(),
		State:    e.ctrl.State(),
	}
}

func (m *Manager) get(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Get returns the session's resources and current state.
func (m *Manager) Get(id string) (Info, error) {
	e, err := m.get(id)
	if err != nil {
		return Info{}, err
	}
	return e.info(), nil
}

// Snapshot returns the current player state.
func (m *Manager) Snapshot(id string) (playback.State, error) {
	e, err := m.get(id)
	if err != nil {
		return playback.State{}, err
	}
	return e.ctrl.State(), nil
}

// Command applies a user intent and returns the resulting state.
func (m *Manager) Command(id string, cmd Command) (playback.State, error) {
	e, err := m.get(id)
	if err != nil {
		return playback.State{}, err
	}
	e.touch(m.now())
	if err := applyCommand(e.ctrl, cmd); err != nil {
		return e.ctrl.State(), err
	}
	return e.ctrl.State(), nil
}

// Signal feeds a media or platform signal into the session.
func (m *Manager) Signal(id string, sig Signal) (playback.State, error) {
	e, err := m.get(id)
	if err != nil {
		return playback.State{}, err
	}
	e.touch(m.now())
	if err := applySignal(e.ctrl, sig); err != nil {
		return e.ctrl.State(), err
	}
	return e.ctrl.State(), nil
}

// Subscribe streams the session's envelopes.
func (m *Manager) Subscribe(ctx context.Context, id string) (bus.Subscriber, error) {
	e, err := m.get(id)
	if err != nil {
		return nil, err
	}
	e.touch(m.now())
	return m.bus.Subscribe(ctx, Topic(id))
}

// Close ends the session (viewer navigated away). The position is saved
// and the controller drops all further signals.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.PlaybackSessionsActive.Dec()

	st := e.ctrl.Close()
	if st.Phase != playback.PhaseEnded {
		m.persist(e, st)
	}
	_ = e.pub.publish(Envelope{Type: EnvelopeClosed, ContentID: st.ContentID})
	e.pub.logger.Info().
		Str(xglog.FieldEvent, "session.closed").
		Str(xglog.FieldPhase, string(st.Phase)).
		Msg("playback session closed")
	return nil
}

// CloseAll closes every open session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	for _, id := range ids {
		_ = m.Close(id)
	}
}

func (m *Manager) onChange(e *entry, st playback.State) {
	snap := st
	_ = e.pub.publish(Envelope{Type: EnvelopeState, State: &snap})

	prevPhase, _ := e.lastPhase.Swap(st.Phase).(playback.Phase)
	prevQuality, _ := e.lastQuality.Swap(st.CurrentQuality).(string)
	switch {
	case st.Phase == playback.PhasePaused && prevPhase == playback.PhasePlaying:
		m.persist(e, st)
	case st.CurrentQuality != prevQuality && prevQuality != "":
		m.persist(e, st)
	}
}

func (m *Manager) onFinished(e *entry, contentID string) {
	_ = e.pub.publish(Envelope{Type: EnvelopeFinished, ContentID: contentID})
	if m.store == nil || e.viewerID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Delete(ctx, e.viewerID, contentID); err != nil {
		e.pub.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "session.resume_clear_failed").
			Msg("failed to clear resume position")
	}
}

// persist stores the viewer's position. Sessions that never got past
// Idle have nothing worth saving.
func (m *Manager) persist(e *entry, st playback.State) {
	if m.store == nil || e.viewerID == "" || st.Phase == playback.PhaseIdle {
		return
	}
	pos := e.ctrl.ResumePosition()
	if pos <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	err := m.store.Put(ctx, e.viewerID, st.ContentID, &resume.State{
		PosSeconds:      pos,
		DurationSeconds: st.DurationSeconds,
		UpdatedAt:       m.now().UTC(),
	})
	if err != nil {
		e.pub.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "session.resume_save_failed").
			Msg("failed to save resume position")
		return
	}
	e.pub.logger.Debug().
		Str(xglog.FieldEvent, "session.resume_saved").
		Float64(xglog.FieldPosition, pos).
		Msg("resume position saved")
}
