// Package transformer runs the ordered pre-pivot transform steps over the
// merged rows.
package transformer

import (
	"context"

	"gridengine/internal/batch"
	"gridengine/pkg/records"
)

// Transformer rewrites a row set, returning the rows that continue.
type Transformer interface{ Apply([]records.Record) []records.Record }

// RowLocal is implemented by transformers whose output for a row depends
// on that row alone. Only such steps are split into batches.
type RowLocal interface{ RowLocal() bool }

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs each step on the previous step's output.
func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}

func rowLocal(t Transformer) bool {
	rl, ok := t.(RowLocal)
	return ok && rl.RowLocal()
}

// ApplyBatched runs c over rows. Consecutive row-local steps run together on
// batches of size rows with at most workers batches in flight; batch outputs
// are concatenated in batch order. Other steps see the whole row set.
func ApplyBatched(ctx context.Context, c Chain, rows []records.Record, size, workers int) ([]records.Record, error) {
	out := rows
	for i := 0; i < len(c); {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !rowLocal(c[i]) {
			out = c[i].Apply(out)
			i++
			continue
		}
		j := i
		for j < len(c) && rowLocal(c[j]) {
			j++
		}
		var err error
		if out, err = applySegment(ctx, c[i:j], out, size, workers); err != nil {
			return nil, err
		}
		i = j
	}
	return out, ctx.Err()
}

func applySegment(ctx context.Context, seg Chain, rows []records.Record, size, workers int) ([]records.Record, error) {
	ranges := batch.Split(len(rows), size)
	if len(ranges) <= 1 {
		return seg.Apply(rows), nil
	}
	parts := make([][]records.Record, len(ranges))
	err := batch.Run(ctx, ranges, workers, func(_ context.Context, i int, r batch.Range) error {
		in := make([]records.Record, r.Hi-r.Lo)
		copy(in, rows[r.Lo:r.Hi])
		parts[i] = seg.Apply(in)
		return nil
	})
	if err != nil {
		return nil, err
	}
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]records.Record, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
