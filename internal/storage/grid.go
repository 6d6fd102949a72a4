package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gridengine/internal/config"
)

// SaveGrid stores g as JSON under key. An empty key falls back to g.Grid.
func SaveGrid(ctx context.Context, st Store, key string, g config.Grid) error {
	if key = strings.TrimSpace(key); key == "" {
		key = g.Grid
	}
	if key == "" {
		return fmt.Errorf("storage: save grid: empty key")
	}
	b, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("storage: encode grid %q: %w", key, err)
	}
	return st.Save(ctx, key, b)
}

// LoadGrid reads the grid stored under key and decodes it on top of the
// defaults. A missing key yields an error wrapping ErrNotFound.
func LoadGrid(ctx context.Context, st Store, key string) (config.Grid, error) {
	b, err := st.Load(ctx, key)
	if err != nil {
		return config.Grid{}, fmt.Errorf("storage: load grid %q: %w", key, err)
	}
	g, err := config.Unmarshal(b)
	if err != nil {
		return config.Grid{}, fmt.Errorf("storage: load grid %q: %w", key, err)
	}
	return g, nil
}
