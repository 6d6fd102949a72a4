// Package file implements a local filesystem data source.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

// Local opens one file from the local disk, or stdin for Stdin.
type Local struct{ path string }

func NewLocal(path string) *Local { return &Local{path: path} }

// Open returns the file for reading. A done ctx fails before touching the
// filesystem; errors wrap the path and keep os.ErrNotExist visible to
// errors.Is.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.path == Stdin {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
