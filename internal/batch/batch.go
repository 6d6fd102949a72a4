// Package batch splits large row sets into bounded ranges and processes them
// on a capped worker pool. Callers write each range's result into a slot
// indexed by range number and combine slots in order, so output never
// depends on scheduling.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Range is a half-open [Lo, Hi) slice of row indexes.
type Range struct {
	Lo, Hi int
}

// Split cuts n items into ranges of at most size items. A non-positive size
// yields one range.
func Split(n, size int) []Range {
	if n <= 0 {
		return nil
	}
	if size <= 0 || size >= n {
		return []Range{{0, n}}
	}
	out := make([]Range, 0, (n+size-1)/size)
	for lo := 0; lo < n; lo += size {
		hi := lo + size
		if hi > n {
			hi = n
		}
		out = append(out, Range{lo, hi})
	}
	return out
}

// Run calls fn once per range with at most workers calls in flight. The
// first error cancels the context passed to the remaining calls and is
// returned. A cancelled ctx stops scheduling and returns ctx.Err().
func Run(ctx context.Context, ranges []Range, workers int, fn func(ctx context.Context, i int, r Range) error) error {
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, r := range ranges {
		i, r := i, r
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i, r)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
