// Package sqlite implements a SQLite-backed storage.Store using
// database/sql over the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"gridengine/internal/storage"
)

// Config holds SQLite store configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:grid.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string

	// Table is the key/value table, "grid_configs" by default. "main.t" is
	// accepted and passed through.
	Table string
}

// Repository is a SQLite-backed implementation of storage.Store.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository opens the database, applies the schema and returns the
// Repository plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	r := &Repository{db: db, table: quoteTable(cfg.Table)}
	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return r, func() { db.Close() }, nil
}

// EnsureSchema creates the key/value table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	grid_key   TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	updated_at TEXT NOT NULL
)`, r.table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	return nil
}

// Save upserts value under key.
func (r *Repository) Save(ctx context.Context, key string, value []byte) error {
	q := fmt.Sprintf(`INSERT INTO %s (grid_key, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(grid_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`, r.table)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.db.ExecContext(ctx, q, key, value, now); err != nil {
		return fmt.Errorf("sqlite: save %q: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key or storage.ErrNotFound.
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	q := fmt.Sprintf(`SELECT body FROM %s WHERE grid_key = ?`, r.table)
	var body []byte
	err := r.db.QueryRowContext(ctx, q, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load %q: %w", key, err)
	}
	return body, nil
}

// quoteTable double-quotes each part of a validated table name.
func quoteTable(name string) string {
	if name == "" {
		name = storage.DefaultTable
	}
	schema, table := storage.SplitTable(name)
	if schema == "" {
		return `"` + table + `"`
	}
	return `"` + schema + `"."` + table + `"`
}
