// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is a Repository backed by a map.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Content
	now   func() time.Time
	feed  feed
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[string]Content), now: time.Now}
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Content, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return Content{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c.clone(), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Content, error) {
	r.mu.RLock()
	out := make([]Content, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c.clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) Put(_ context.Context, c Content) (Content, error) {
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	now := r.now().UTC()

	r.mu.Lock()
	stored := c.clone()
	if prev, ok := r.items[c.ID]; ok {
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	r.items[c.ID] = stored
	r.mu.Unlock()

	r.feed.publish(Change{Kind: ChangeUpserted, ID: c.ID})
	return stored.clone(), nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.feed.publish(Change{Kind: ChangeDeleted, ID: id})
	return nil
}

func (r *MemoryRepository) OnChange(fn func(Change)) func() {
	return r.feed.subscribe(fn)
}

var _ Repository = (*MemoryRepository)(nil)
