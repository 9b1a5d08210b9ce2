// Package cache persists check metadata locally so repeated monitor
// invocations resolve a slug to its ping public id without an API round
// trip. Entries expire after a TTL; a stale entry reads as a miss.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// TTL is how long a cached check stays valid.
const TTL = 24 * time.Hour

const schema = `
CREATE TABLE IF NOT EXISTS checks (
    project_id TEXT NOT NULL,
    slug       TEXT NOT NULL,
    check_id   TEXT NOT NULL,
    public_id  TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    cached_at  TEXT NOT NULL,
    PRIMARY KEY (project_id, slug)
);
`

// Entry is one cached check.
type Entry struct {
	ProjectID string
	Slug      string
	CheckID   uuid.UUID
	PublicID  uuid.UUID
	Name      string
	CachedAt  time.Time
}

// DB wraps the SQLite check cache.
type DB struct {
	db *sql.DB
}

// DefaultPath returns the cache database location under the user cache
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("determining cache directory: %w", err)
	}
	return filepath.Join(dir, "pakyas", "checks.db"), nil
}

// Open opens (or creates) the cache database at path and applies the
// schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Get returns the cached entry for (projectID, slug), or nil on a miss.
// Entries older than TTL are misses.
func (d *DB) Get(ctx context.Context, projectID, slug string) (*Entry, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT project_id, slug, check_id, public_id, name, cached_at FROM checks WHERE project_id = ? AND slug = ?`,
		projectID, slug,
	)

	var e Entry
	var checkID, publicID, cachedAt string
	err := row.Scan(&e.ProjectID, &e.Slug, &checkID, &publicID, &e.Name, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying cache for %q: %w", slug, err)
	}

	if e.CheckID, err = uuid.Parse(checkID); err != nil {
		return nil, fmt.Errorf("parsing cached check_id: %w", err)
	}
	if e.PublicID, err = uuid.Parse(publicID); err != nil {
		return nil, fmt.Errorf("parsing cached public_id: %w", err)
	}
	if e.CachedAt, err = time.Parse(time.RFC3339Nano, cachedAt); err != nil {
		return nil, fmt.Errorf("parsing cached_at %q: %w", cachedAt, err)
	}

	if time.Since(e.CachedAt) > TTL {
		return nil, nil
	}
	return &e, nil
}

// Put inserts or replaces one cached check.
func (d *DB) Put(ctx context.Context, e Entry) error {
	cachedAt := e.CachedAt
	if cachedAt.IsZero() {
		cachedAt = time.Now()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO checks (project_id, slug, check_id, public_id, name, cached_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ProjectID,
		e.Slug,
		e.CheckID.String(),
		e.PublicID.String(),
		e.Name,
		cachedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("caching check %q: %w", e.Slug, err)
	}
	return nil
}

// PutAll caches a batch of checks in one transaction.
func (d *DB) PutAll(ctx context.Context, entries []Entry) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning cache transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO checks (project_id, slug, check_id, public_id, name, cached_at) VALUES (?, ?, ?, ?, ?, ?)`,
			e.ProjectID, e.Slug, e.CheckID.String(), e.PublicID.String(), e.Name, now,
		)
		if err != nil {
			return fmt.Errorf("caching check %q: %w", e.Slug, err)
		}
	}
	return tx.Commit()
}
