package postgres

import (
	"context"
	"strings"
	"testing"

	"gridengine/internal/storage"
)

func TestPgFQN(t *testing.T) {
	tests := []struct{ in, want string }{
		{"grid_configs", `"grid_configs"`},
		{"public.grid_configs", `"public"."grid_configs"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tc := range tests {
		if got := pgFQN(tc.in); got != tc.want {
			t.Errorf("pgFQN(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestUpsertSQL_ConflictTarget(t *testing.T) {
	q := upsertSQL(`"public"."grid_configs"`)
	for _, want := range []string{`INSERT INTO "public"."grid_configs"`, "ON CONFLICT (grid_key)", "EXCLUDED.body"} {
		if !strings.Contains(q, want) {
			t.Fatalf("upsert SQL missing %q:\n%s", want, q)
		}
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

// TestRegistrationUsesHook checks the init() wiring without touching a server.
func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	closed := false
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}

	st, err := storage.New(context.Background(), storage.Config{Kind: "postgres", DSN: "postgres://x", Table: "public.grids"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != "postgres://x" || got.Table != "public.grids" {
		t.Fatalf("hook cfg = %#v", got)
	}
	if err := st.Close(); err != nil || !closed {
		t.Fatalf("Close err=%v closed=%v", err, closed)
	}
}
