// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/streamplay/internal/persistence/sqlite"
)

var sqliteMigrations = []string{
	`CREATE TABLE content (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		poster_url TEXT NOT NULL DEFAULT '',
		auto_source_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE renditions (
		content_id TEXT NOT NULL REFERENCES content(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		source_url TEXT NOT NULL,
		height INTEGER NOT NULL DEFAULT 0,
		bitrate_kbps INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (content_id, label)
	);
	CREATE TABLE subtitles (
		content_id TEXT NOT NULL REFERENCES content(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		language TEXT NOT NULL,
		source_url TEXT NOT NULL,
		PRIMARY KEY (content_id, source_url)
	);`,
}

// SQLiteRepository persists the catalog in SQLite.
type SQLiteRepository struct {
	db   *sql.DB
	now  func() time.Time
	feed feed
}

// OpenSQLiteRepository opens and migrates the catalog database at path.
func OpenSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := sqlite.Migrate(ctx, db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: migration failed: %w", err)
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (Content, error) {
	c, err := r.getContent(ctx, r.db, id)
	if err != nil {
		return Content{}, err
	}
	if err := r.loadTracks(ctx, &c); err != nil {
		return Content{}, err
	}
	return c, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLiteRepository) getContent(ctx context.Context, q querier, id string) (Content, error) {
	var (
		c                    Content
		createdAt, updatedAt string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, title, description, poster_url, auto_source_url, created_at, updated_at FROM content WHERE id = ?`, id,
	).Scan(&c.ID, &c.Title, &c.Description, &c.PosterURL, &c.AutoSourceURL, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Content{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Content{}, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return c, nil
}

func (r *SQLiteRepository) loadTracks(ctx context.Context, c *Content) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT label, source_url, height, bitrate_kbps FROM renditions WHERE content_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return fmt.Errorf("catalog: renditions of %s: %w", c.ID, err)
	}
	for rows.Next() {
		var rd Rendition
		if err := rows.Scan(&rd.Label, &rd.SourceURL, &rd.Height, &rd.BitrateKbps); err != nil {
			rows.Close()
			return err
		}
		c.Renditions = append(c.Renditions, rd)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT label, language, source_url FROM subtitles WHERE content_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return fmt.Errorf("catalog: subtitles of %s: %w", c.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var s Subtitle
		if err := rows.Scan(&s.Label, &s.Language, &s.SourceURL); err != nil {
			return err
		}
		c.Subtitles = append(c.Subtitles, s)
	}
	return rows.Err()
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Content, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM content ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]Content, 0, len(ids))
	for _, id := range ids {
		c, err := r.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue // deleted concurrently
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, c Content) (Content, error) {
	if err := c.Validate(); err != nil {
		return Content{}, err
	}
	now := r.now().UTC()
	stored := c.clone()
	stored.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Content{}, err
	}
	defer func() { _ = tx.Rollback() }()

	prev, err := r.getContent(ctx, tx, c.ID)
	switch {
	case err == nil:
		stored.CreatedAt = prev.CreatedAt
	case errors.Is(err, ErrNotFound):
		stored.CreatedAt = now
	default:
		return Content{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO content (id, title, description, poster_url, auto_source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			poster_url = excluded.poster_url,
			auto_source_url = excluded.auto_source_url,
			updated_at = excluded.updated_at`,
		stored.ID, stored.Title, stored.Description, stored.PosterURL, stored.AutoSourceURL,
		stored.CreatedAt.Format(time.RFC3339Nano), stored.UpdatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return Content{}, fmt.Errorf("catalog: upsert %s: %w", c.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM renditions WHERE content_id = ?`, c.ID); err != nil {
		return Content{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM subtitles WHERE content_id = ?`, c.ID); err != nil {
		return Content{}, err
	}
	for i, rd := range stored.Renditions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO renditions (content_id, position, label, source_url, height, bitrate_kbps) VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, i, rd.Label, rd.SourceURL, rd.Height, rd.BitrateKbps); err != nil {
			return Content{}, fmt.Errorf("catalog: rendition %q: %w", rd.Label, err)
		}
	}
	for i, s := range stored.Subtitles {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subtitles (content_id, position, label, language, source_url) VALUES (?, ?, ?, ?, ?)`,
			c.ID, i, s.Label, s.Language, s.SourceURL); err != nil {
			return Content{}, fmt.Errorf("catalog: subtitle %q: %w", s.SourceURL, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Content{}, err
	}

	r.feed.publish(Change{Kind: ChangeUpserted, ID: c.ID})
	return stored, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("catalog: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.feed.publish(Change{Kind: ChangeDeleted, ID: id})
	return nil
}

func (r *SQLiteRepository) OnChange(fn func(Change)) func() {
	return r.feed.subscribe(fn)
}

// HealthCheck probes the database.
func (r *SQLiteRepository) HealthCheck(ctx context.Context) error {
	return sqlite.Ping(ctx, r.db)
}

func (r *SQLiteRepository) Close() error { return r.db.Close() }

var _ Repository = (*SQLiteRepository)(nil)
