// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"context"
	"sync"
)

// ChangeKind tells subscribers what happened to a content item.
type ChangeKind string

const (
	ChangeUpserted ChangeKind = "upserted"
	ChangeDeleted  ChangeKind = "deleted"
)

// Change is one entry of the repository change feed.
type Change struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id"`
}

// Repository stores catalog content. Every implementation owns its state;
// tests construct their own instance.
type Repository interface {
	Get(ctx context.Context, id string) (Content, error)
	List(ctx context.Context) ([]Content, error)
	// Put inserts or replaces c and returns the stored record.
	Put(ctx context.Context, c Content) (Content, error)
	Delete(ctx context.Context, id string) error
	// OnChange registers fn for committed changes. Callbacks run on the
	// writer's goroutine after the write; the returned func unsubscribes.
	OnChange(fn func(Change)) (unsubscribe func())
}

// feed fans out changes to subscribers.
type feed struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Change)
}

func (f *feed) subscribe(fn func(Change)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[int]func(Change))
	}
	id := f.next
	f.next++
	f.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

func (f *feed) publish(ch Change) {
	f.mu.Lock()
	fns := make([]func(Change), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ch)
	}
}
