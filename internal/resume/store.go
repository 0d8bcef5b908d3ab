// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resume remembers where a viewer stopped watching a content item
// so the next session starts from there.
package resume

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"
)

// State is the persisted position of one viewer in one content item.
type State struct {
	PosSeconds      float64   `json:"posSeconds"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	Finished        bool      `json:"finished,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store persists resume states keyed by viewer and content. Get returns
// (nil, nil) when nothing is stored.
type Store interface {
	Put(ctx context.Context, viewerID, contentID string, state *State) error
	Get(ctx context.Context, viewerID, contentID string) (*State, error)
	Delete(ctx context.Context, viewerID, contentID string) error
	Close() error
}

// NewStore creates a resume store for backend ("memory", "sqlite" or
// "badger"). Durable backends keep their files under dir; an empty dir
// falls back to memory. ttl bounds how long badger keeps an entry.
func NewStore(backend, dir string, ttl time.Duration) (Store, error) {
	if backend == "" {
		backend = "sqlite"
	}
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return NewSqliteStore(filepath.Join(dir, "resume.sqlite"))
	case "badger":
		if dir == "" {
			return NewMemoryStore(), nil
		}
		return OpenBadgerStore(filepath.Join(dir, "resume.badger"), ttl)
	default:
		return nil, fmt.Errorf("unknown resume store backend: %s (supported: sqlite, badger, memory)", backend)
	}
}

// MemoryStore implements Store using a map.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]State
}

// NewMemoryStore creates an in-memory resume store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]State)}
}

func (s *MemoryStore) Put(_ context.Context, viewerID, contentID string, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[compositeKey(viewerID, contentID)] = *state
	return nil
}

func (s *MemoryStore) Get(_ context.Context, viewerID, contentID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if val, ok := s.data[compositeKey(viewerID, contentID)]; ok {
		return &val, nil
	}
	return nil, nil
}

func (s *MemoryStore) Delete(_ context.Context, viewerID, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, compositeKey(viewerID, contentID))
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func compositeKey(viewer, content string) string {
	return viewer + "\x00" + content
}

// Policy decides whether a stored position is worth resuming.
type Policy struct {
	// MinSeconds: positions below are treated as "not started".
	MinSeconds float64
	// TailSeconds: positions this close to the end are treated as watched.
	TailSeconds float64
}

// StartAt returns the position a new session should start from, or 0.
func (p Policy) StartAt(st *State) float64 {
	if st == nil || st.Finished || st.PosSeconds <= 0 {
		return 0
	}
	if st.PosSeconds < p.MinSeconds {
		return 0
	}
	if st.DurationSeconds > 0 && st.DurationSeconds-st.PosSeconds <= p.TailSeconds {
		return 0
	}
	return st.PosSeconds
}
