package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalOpen(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "rows.json")
	if err := os.WriteFile(p, []byte(`[{"a":1}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rc, err := NewLocal(p).Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	if string(b) != `[{"a":1}]` {
		t.Fatalf("read %q", b)
	}
}

func TestLocalOpen_Errors(t *testing.T) {
	_, err := NewLocal(filepath.Join(t.TempDir(), "missing.json")).Open(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLocal("whatever").Open(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
