// Package engine runs one full recomputation of a grid: merge, transform,
// pivot (or pass-through), filter, column grouping and totals.
//
// Run is a pure function of its Request. It shares no state between calls,
// so the recompute scheduler may run superseded and current requests
// side by side and simply drop the stale result.
package engine

import (
	"context"
	"fmt"
	"time"

	"gridengine/internal/colgroup"
	"gridengine/internal/config"
	"gridengine/internal/filter"
	"gridengine/internal/merge"
	"gridengine/internal/metrics"
	"gridengine/internal/pivot"
	"gridengine/internal/totals"
	"gridengine/internal/transformer"
	"gridengine/pkg/records"
)

// Step names reported to metrics.
const (
	StepMerge     = "merge"
	StepTransform = "transform"
	StepPivot     = "pivot"
	StepFilter    = "filter"
	StepGroups    = "groups"
	StepTotals    = "totals"
)

// Request is the input snapshot of one recomputation.
type Request struct {
	Input  records.Input `json:"input"`
	Config config.Grid   `json:"config"`
	Filter filter.State  `json:"filter"`
}

// Result is everything the renderer needs for one frame of the grid.
type Result struct {
	// Rows are the displayed rows after filtering. In pivot mode they are
	// pivot rows (sub totals included while no filter is active); the grand
	// total is reported separately.
	Rows         []records.Record `json:"rows"`
	Columns      []records.Column `json:"columns"`
	ColumnValues []string         `json:"column_values"`
	Groups       colgroup.Result  `json:"groups"`
	IsPivot      bool             `json:"is_pivot"`

	// GrandTotal is the pivot grand total over the visible rows.
	GrandTotal records.Record `json:"grand_total,omitempty"`
	// Footer holds pass-through footer summaries over the visible rows.
	Footer map[string]totals.Summary `json:"footer,omitempty"`

	SourceRows int `json:"source_rows"` // rows after merge and transforms
	Hidden     int `json:"hidden"`      // displayed rows removed by filters
}

// Run computes the Result for req. The only errors are context
// cancellation and deadline expiry; every other failure degrades inside the
// stage that hit it.
func Run(ctx context.Context, req Request) (Result, error) {
	cfg := req.Config
	grid := cfg.Grid
	if grid == "" {
		grid = "default"
	}
	var res Result

	start := time.Now()
	merged := merge.Merge(req.Input, cfg.Merge)
	metrics.RecordStep(grid, StepMerge, nil, time.Since(start))
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	metrics.RecordRows(grid, "input", len(merged))

	start = time.Now()
	rows, err := transformer.ApplyBatched(ctx, transformer.FromConfig(cfg.Transform), merged, cfg.Runtime.BatchSize, cfg.Runtime.Workers)
	metrics.RecordStep(grid, StepTransform, err, time.Since(start))
	if err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}
	res.SourceRows = len(rows)

	start = time.Now()
	pv := pivot.Pivot(rows, cfg.Pivot)
	displayed := pv.Rows
	res.IsPivot = pv.IsPivot
	res.ColumnValues = pv.ColumnValues
	if pv.IsPivot {
		res.Columns = pv.Columns
	} else {
		res.Columns = records.InferColumns(rows)
	}
	metrics.RecordStep(grid, StepPivot, nil, time.Since(start))

	start = time.Now()
	res.Rows = visible(displayed, req.Filter)
	res.Hidden = len(displayed) - len(res.Rows)
	metrics.RecordStep(grid, StepFilter, nil, time.Since(start))
	metrics.RecordRows(grid, "displayed", len(res.Rows))
	metrics.RecordRows(grid, "filtered", res.Hidden)

	start = time.Now()
	res.Groups = colgroup.Detect(res.Columns, cfg.Groups)
	metrics.RecordStep(grid, StepGroups, nil, time.Since(start))

	start = time.Now()
	switch {
	case !pv.IsPivot:
		res.Footer, err = totals.Footer(ctx, res.Rows, cfg.Totals, cfg.Runtime)
	case !cfg.Pivot.ShowGrandTotals:
	case req.Filter.Empty():
		res.GrandTotal = pv.GrandTotal
	default:
		res.GrandTotal, err = totals.DynamicGrandTotal(ctx, rows, res.Rows, cfg.Pivot, pv.ColumnValues)
	}
	metrics.RecordStep(grid, StepTotals, err, time.Since(start))
	if err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// visible applies the filter to displayed rows. Sub total rows summarize
// unfiltered groups, so they are dropped while any filter is active.
func visible(rows []records.Record, s filter.State) []records.Record {
	if s.Empty() {
		return rows
	}
	keep := filter.Compile(s, nil)
	out := make([]records.Record, 0, len(rows))
	for _, r := range rows {
		if r == nil || pivot.IsSynthetic(r) {
			continue
		}
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
