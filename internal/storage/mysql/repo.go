// Package mysql implements a MySQL-backed storage.Store over
// go-sql-driver/mysql. Saves use INSERT ... ON DUPLICATE KEY UPDATE.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"gridengine/internal/storage"
)

// Config holds MySQL store configuration.
type Config struct {
	DSN   string // e.g. "user:pass@tcp(127.0.0.1:3306)/grids?parseTime=true"
	Table string
}

// Repository is a MySQL-backed implementation of storage.Store.
type Repository struct {
	db    *sql.DB
	table string
}

// NewRepository parses the DSN, opens a pool, applies the schema and returns
// a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}
	conn, err := mysql.NewConnector(dc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = storage.DefaultTable
	}
	r := &Repository{db: db, table: myFQN(table)}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return r, func() { _ = db.Close() }, nil
}

// EnsureSchema creates the key/value table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n"+
		"\tgrid_key   VARCHAR(255) NOT NULL PRIMARY KEY,\n"+
		"\tbody       LONGBLOB NOT NULL,\n"+
		"\tupdated_at DATETIME(6) NOT NULL\n"+
		")", r.table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mysql: ensure schema: %w", err)
	}
	return nil
}

// Save upserts value under key.
func (r *Repository) Save(ctx context.Context, key string, value []byte) error {
	if _, err := r.db.ExecContext(ctx, upsertSQL(r.table), key, value); err != nil {
		return fmt.Errorf("mysql: save %q: %w", key, err)
	}
	return nil
}

// Load returns the value stored under key or storage.ErrNotFound.
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	q := fmt.Sprintf("SELECT body FROM %s WHERE grid_key = ?", r.table)
	err := r.db.QueryRowContext(ctx, q, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysql: load %q: %w", key, err)
	}
	return body, nil
}

func upsertSQL(table string) string {
	return fmt.Sprintf("INSERT INTO %s (grid_key, body, updated_at) VALUES (?, ?, UTC_TIMESTAMP(6))\n"+
		"ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)", table)
}

// myIdent quotes an identifier with backticks, doubling embedded backticks.
func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func myFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}
