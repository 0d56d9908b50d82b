// Package sqlite serves the movie catalog from a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sharetube/syncroom/internal/repository/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	slug       TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	poster_url TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS episodes (
	movie_slug TEXT NOT NULL REFERENCES movies(slug) ON DELETE CASCADE,
	slug       TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL,
	PRIMARY KEY (movie_slug, slug)
);
`

type Options struct {
	BusyTimeout time.Duration
}

type Catalog struct {
	db *sql.DB
}

func Open(path string, options Options) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", int(options.BusyTimeout/time.Millisecond)),
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate catalog schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Catalog) Movie(ctx context.Context, slug string) (catalog.Movie, error) {
	m := catalog.Movie{Slug: slug}
	err := c.db.QueryRowContext(ctx,
		`SELECT title, poster_url FROM movies WHERE slug = ?`, slug,
	).Scan(&m.Title, &m.PosterUrl)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Movie{}, catalog.ErrMovieNotFound
	}
	if err != nil {
		return catalog.Movie{}, fmt.Errorf("failed to get movie: %w", err)
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT slug, name FROM episodes WHERE movie_slug = ? ORDER BY position`, slug,
	)
	if err != nil {
		return catalog.Movie{}, fmt.Errorf("failed to get episodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ep catalog.Episode
		if err := rows.Scan(&ep.Slug, &ep.Name); err != nil {
			return catalog.Movie{}, fmt.Errorf("failed to scan episode: %w", err)
		}
		m.Episodes = append(m.Episodes, ep)
	}

	return m, rows.Err()
}

// PutMovie inserts or replaces a movie together with its episode list.
func (c *Catalog) PutMovie(ctx context.Context, m catalog.Movie) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO movies (slug, title, poster_url) VALUES (?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET title = excluded.title, poster_url = excluded.poster_url
	`, m.Slug, m.Title, m.PosterUrl); err != nil {
		return fmt.Errorf("failed to put movie: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM episodes WHERE movie_slug = ?`, m.Slug); err != nil {
		return fmt.Errorf("failed to clear episodes: %w", err)
	}

	for i, ep := range m.Episodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO episodes (movie_slug, slug, name, position) VALUES (?, ?, ?, ?)`,
			m.Slug, ep.Slug, ep.Name, i,
		); err != nil {
			return fmt.Errorf("failed to put episode: %w", err)
		}
	}

	return tx.Commit()
}
