// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resume

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps resume states in an embedded Badger database. Entries
// expire after ttl so abandoned positions do not accumulate.
// Keys are "resume:<viewer>\x00<content>" holding JSON.
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerStore opens the database at path. An empty path opens an
// in-memory instance.
func OpenBadgerStore(path string, ttl time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

func badgerKey(viewerID, contentID string) []byte {
	return []byte("resume:" + compositeKey(viewerID, contentID))
}

func (s *BadgerStore) Put(_ context.Context, viewerID, contentID string, state *State) error {
	buf, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(badgerKey(viewerID, contentID), buf)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerStore) Get(_ context.Context, viewerID, contentID string) (*State, error) {
	var out State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(viewerID, contentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) Delete(_ context.Context, viewerID, contentID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(viewerID, contentID))
	})
}

// HealthCheck fails once the database has been closed.
func (s *BadgerStore) HealthCheck(context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database closed")
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
