// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/streamplay/internal/persistence/sqlite"
)

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS resume_states (
		viewer_id TEXT NOT NULL,
		content_id TEXT NOT NULL,
		pos_seconds REAL NOT NULL,
		duration_seconds REAL,
		finished BOOLEAN NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (viewer_id, content_id)
	);
	CREATE INDEX IF NOT EXISTS idx_resume_updated ON resume_states(updated_at);`,
}

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) a resume database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(context.Background(), db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resume store: migration failed: %w", err)
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) Put(ctx context.Context, viewerID, contentID string, state *State) error {
	const query = `
	INSERT INTO resume_states (viewer_id, content_id, pos_seconds, duration_seconds, finished, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(viewer_id, content_id) DO UPDATE SET
		pos_seconds = excluded.pos_seconds,
		duration_seconds = excluded.duration_seconds,
		finished = excluded.finished,
		updated_at = excluded.updated_at`
	_, err := s.DB.ExecContext(ctx, query,
		viewerID, contentID, state.PosSeconds, state.DurationSeconds, state.Finished, state.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SqliteStore) Get(ctx context.Context, viewerID, contentID string) (*State, error) {
	const query = `SELECT pos_seconds, duration_seconds, finished, updated_at FROM resume_states WHERE viewer_id = ? AND content_id = ?`
	var (
		st        State
		duration  sql.NullFloat64
		updatedAt string
	)
	err := s.DB.QueryRowContext(ctx, query, viewerID, contentID).Scan(&st.PosSeconds, &duration, &st.Finished, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	st.DurationSeconds = duration.Float64
	st.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &st, nil
}

func (s *SqliteStore) Delete(ctx context.Context, viewerID, contentID string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM resume_states WHERE viewer_id = ? AND content_id = ?", viewerID, contentID)
	return err
}

// HealthCheck probes the database.
func (s *SqliteStore) HealthCheck(ctx context.Context) error {
	return sqlite.Ping(ctx, s.DB)
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}
