// Package storage persists grid configurations through a small key/value
// contract so the UI layer can save and restore a grid's setup. Concrete
// backends (sqlite, postgres, mssql, mysql) live in subpackages and register
// themselves with this package at init time; "memory" is built in.
//
// Callers stay backend-agnostic:
//
//	import _ "gridengine/internal/storage/all"
//
//	st, err := storage.New(ctx, storage.Config{Kind: "sqlite", DSN: "file:grid.db"})
//	if err != nil { ... }
//	defer st.Close()
//	err = storage.SaveGrid(ctx, st, cfg.Grid, cfg)
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// DefaultTable is used when Config.Table is empty.
const DefaultTable = "grid_configs"

// ErrNotFound is returned by Load when no value is stored under the key.
var ErrNotFound = errors.New("storage: not found")

// Store is a durable key/value store for serialized grid configurations.
type Store interface {
	// Save writes value under key, replacing any previous value.
	Save(ctx context.Context, key string, value []byte) error
	// Load returns the value stored under key or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Close releases backend resources.
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Kind  string // "memory", "sqlite", "postgres", "mssql", "mysql"
	DSN   string
	Table string // defaults to DefaultTable
}

// TableName returns the configured table or DefaultTable.
func (c Config) TableName() string {
	if t := strings.TrimSpace(c.Table); t != "" {
		return t
	}
	return DefaultTable
}

// Factory opens a Store for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind. Backends call it from
// init.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[strings.ToLower(kind)] = f
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Store of cfg.Kind. The table name is validated before any
// backend sees it.
func New(ctx context.Context, cfg Config) (Store, error) {
	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	mu.RLock()
	f, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unknown kind %q (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	if err := ValidateTable(cfg.TableName()); err != nil {
		return nil, err
	}
	cfg.Kind = kind
	return f(ctx, cfg)
}

var tableRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTable accepts "name" or "schema.name" made of identifier
// characters, so backends can interpolate it into SQL after quoting.
func ValidateTable(name string) error {
	if !tableRe.MatchString(name) {
		return fmt.Errorf("storage: invalid table name %q", name)
	}
	return nil
}

// SplitTable splits "schema.name" into its parts; schema is empty when absent.
func SplitTable(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
