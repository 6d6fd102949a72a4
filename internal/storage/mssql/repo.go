// Package mssql implements a Microsoft SQL Server storage.Store over
// go-mssqldb. Saves are MERGE upserts keyed on grid_key.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"gridengine/internal/storage"
)

// Config holds MSSQL store configuration.
type Config struct {
	DSN   string
	Table string // e.g. "dbo.grid_configs"
}

// Repository is an MSSQL-backed implementation of storage.Store.
type Repository struct {
	db    *sql.DB
	name  string // unquoted, for OBJECT_ID
	table string // bracket-quoted
}

// NewRepository constructs a Repository, applies the schema and returns a
// Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	name := cfg.Table
	if name == "" {
		name = storage.DefaultTable
	}
	r := &Repository{db: db, name: name, table: msFQN(name)}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return r, func() { _ = db.Close() }, nil
}

// EnsureSchema creates the key/value table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSQL(r.name, r.table)); err != nil {
		return fmt.Errorf("mssql: ensure schema: %w", err)
	}
	return nil
}

// Save upserts value under key.
func (r *Repository) Save(ctx context.Context, key string, value []byte) error {
	if _, err := r.db.ExecContext(ctx, mergeSQL(r.table),
		sql.Named("key", key), sql.Named("body", value)); err != nil {
		return fmt.Errorf("mssql: save %q: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key or storage.ErrNotFound.
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	q := fmt.Sprintf(`SELECT body FROM %s WHERE grid_key = @key`, r.table)
	err := r.db.QueryRowContext(ctx, q, sql.Named("key", key)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mssql: load %q: %w", key, err)
	}
	return body, nil
}

// createSQL relies on name having passed storage.ValidateTable, so it can be
// embedded in the OBJECT_ID literal.
func createSQL(name, table string) string {
	return fmt.Sprintf(`IF OBJECT_ID(N'%s', N'U') IS NULL
CREATE TABLE %s (
	grid_key   NVARCHAR(256)  NOT NULL PRIMARY KEY,
	body       VARBINARY(MAX) NOT NULL,
	updated_at DATETIME2      NOT NULL
)`, name, table)
}

func mergeSQL(table string) string {
	return fmt.Sprintf(`MERGE %s WITH (HOLDLOCK) AS t
USING (SELECT @key AS grid_key, @body AS body) AS s
ON t.grid_key = s.grid_key
WHEN MATCHED THEN UPDATE SET body = s.body, updated_at = SYSUTCDATETIME()
WHEN NOT MATCHED THEN INSERT (grid_key, body, updated_at) VALUES (s.grid_key, s.body, SYSUTCDATETIME());`, table)
}

// msIdent quotes an identifier with brackets, doubling embedded ']'.
func msIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// msFQN quotes a possibly schema-qualified name like "dbo.grid_configs".
func msFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}
