// Package postgres implements a Postgres-backed storage.Store using a pgx v5
// connection pool. Saves are single-statement upserts.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gridengine/internal/storage"
)

// Config holds Postgres store configuration.
type Config struct {
	DSN   string // connection string for pgxpool
	Table string // optionally schema-qualified, e.g. "public.grid_configs"
}

// Repository is a Postgres-backed implementation of storage.Store.
type Repository struct {
	pool  *pgxpool.Pool
	table string
}

// NewRepository opens a pool, applies the schema and returns a Close
// function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = storage.DefaultTable
	}
	r := &Repository{pool: pool, table: pgFQN(table)}
	if err := r.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return r, pool.Close, nil
}

// EnsureSchema creates the key/value table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	grid_key   TEXT PRIMARY KEY,
	body       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, r.table)
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}

// Save upserts value under key.
func (r *Repository) Save(ctx context.Context, key string, value []byte) error {
	if _, err := r.pool.Exec(ctx, upsertSQL(r.table), key, value); err != nil {
		return fmt.Errorf("postgres: save %q: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key or storage.ErrNotFound.
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	q := fmt.Sprintf(`SELECT body FROM %s WHERE grid_key = $1`, r.table)
	err := r.pool.QueryRow(ctx, q, key).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load %q: %w", key, err)
	}
	return body, nil
}

func upsertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (grid_key, body, updated_at) VALUES ($1, $2, now())
ON CONFLICT (grid_key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`, table)
}

// pgIdent quotes an identifier, doubling embedded quotes.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.grid_configs" to
// "public"."grid_configs".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}
