package mssql

import (
	"context"
	"strings"
	"testing"

	"gridengine/internal/storage"
)

func TestMsFQN(t *testing.T) {
	tests := []struct{ in, want string }{
		{"grid_configs", "[grid_configs]"},
		{"dbo.grid_configs", "[dbo].[grid_configs]"},
		{"a]b", "[a]]b]"},
	}
	for _, tc := range tests {
		if got := msFQN(tc.in); got != tc.want {
			t.Errorf("msFQN(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestGeneratedSQL(t *testing.T) {
	c := createSQL("dbo.grid_configs", "[dbo].[grid_configs]")
	if !strings.Contains(c, "OBJECT_ID(N'dbo.grid_configs', N'U')") || !strings.Contains(c, "CREATE TABLE [dbo].[grid_configs]") {
		t.Fatalf("create SQL:\n%s", c)
	}
	m := mergeSQL("[dbo].[grid_configs]")
	for _, want := range []string{"MERGE [dbo].[grid_configs]", "WHEN MATCHED THEN UPDATE", "WHEN NOT MATCHED THEN INSERT"} {
		if !strings.Contains(m, want) {
			t.Fatalf("merge SQL missing %q:\n%s", want, m)
		}
	}
}

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() {}, nil
	}
	st, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://sa@localhost"})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer st.Close()
	if got.Table != storage.DefaultTable {
		t.Fatalf("hook table = %q, want %q", got.Table, storage.DefaultTable)
	}
}
