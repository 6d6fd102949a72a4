// Package totals computes footer summaries over the rows currently passing
// the filters, and the dynamic grand total of a filtered pivot.
//
// Only numeric values take part in a summary; missing, null and non-numeric
// values are skipped rather than read as zero. A field with no numeric value
// reports a zero total and average.
package totals

import (
	"context"
	"fmt"
	"sort"

	"gridengine/internal/aggregate"
	"gridengine/internal/batch"
	"gridengine/internal/config"
	"gridengine/internal/format"
	"gridengine/internal/pivot"
	"gridengine/pkg/records"
)

// Summary is the footer entry of one field.
type Summary struct {
	Field string `json:"field"`

	Total   float64 `json:"total,omitempty"`
	Average float64 `json:"average,omitempty"`
	Count   int64   `json:"count,omitempty"`

	HasTotal   bool `json:"has_total"`
	HasAverage bool `json:"has_average"`
	HasCount   bool `json:"has_count"`

	FormattedTotal   string `json:"formatted_total,omitempty"`
	FormattedAverage string `json:"formatted_average,omitempty"`
}

// Footer summarizes rows per cfg. With no configured fields every numeric
// column gets a total. Rows are folded in batches of rt.BatchSize on
// rt.Workers goroutines; per-batch states are combined in batch order.
// The only error is a cancelled ctx.
func Footer(ctx context.Context, rows []records.Record, cfg config.Totals, rt config.Runtime) (map[string]Summary, error) {
	fields := cfg.Fields
	if len(fields) == 0 {
		for _, f := range NumericFields(rows) {
			fields = append(fields, config.TotalField{Field: f, Total: true})
		}
	}
	out := make(map[string]Summary, len(fields))
	if len(fields) == 0 {
		return out, nil
	}

	ranges := batch.Split(len(rows), rt.BatchSize)
	partial := make([][]aggregate.State, len(ranges))
	err := batch.Run(ctx, ranges, rt.Workers, func(_ context.Context, i int, r batch.Range) error {
		st := make([]aggregate.State, len(fields))
		for _, row := range rows[r.Lo:r.Hi] {
			for j, f := range fields {
				if v, ok := records.Float(row[f.Field]); ok {
					st[j].Add(v)
				}
			}
		}
		partial[i] = st
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}

	combined := make([]aggregate.State, len(fields))
	for _, st := range partial {
		for j := range combined {
			combined[j].Combine(st[j])
		}
	}

	for j, f := range fields {
		out[f.Field] = summarize(f, combined[j], cfg)
	}
	return out, nil
}

func summarize(f config.TotalField, st aggregate.State, cfg config.Totals) Summary {
	o := format.ForTotals(cfg, f.Currency)
	s := Summary{Field: f.Field}
	if f.Total {
		s.HasTotal = true
		s.Total = st.Sum
		s.FormattedTotal = format.Format(st.Sum, o)
	}
	if f.Average {
		s.HasAverage = true
		s.Average = st.Avg()
		s.FormattedAverage = format.Format(st.Avg(), o)
	}
	if f.Count {
		s.HasCount = true
		s.Count = st.Count
	}
	return s
}

// NumericFields lists, in sorted order, the fields holding at least one
// native number and no non-blank value that fails to parse as one. Numeric
// strings alone do not make a field numeric, so codes such as "0042" stay
// out of the footer.
func NumericFields(rows []records.Record) []string {
	native := map[string]bool{}
	rejected := map[string]bool{}
	for _, r := range rows {
		for k, v := range r {
			if rejected[k] || records.IsBlank(v) {
				continue
			}
			if _, ok := records.Float(v); !ok {
				rejected[k] = true
				continue
			}
			if _, isString := v.(string); !isString {
				native[k] = true
			}
		}
	}
	out := make([]string, 0, len(native))
	for k := range native {
		if !rejected[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// DynamicGrandTotal recomputes the pivot grand total for the rows currently
// visible. It reads nothing but its arguments, so repeated calls on the
// same inputs yield the same row.
func DynamicGrandTotal(ctx context.Context, source, visible []records.Record, cfg config.Pivot, columnValues []string) (records.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}
	return pivot.DynamicGrandTotal(source, visible, cfg, columnValues), nil
}
