package pivot

import (
	"log"

	"gridengine/internal/config"
	"gridengine/pkg/records"
)

// GrandTotal computes the grand total row of rows under cfg. Every cell is
// aggregated from the source rows, never from already aggregated cells, so
// averages stay averages of the underlying values. A nil columnValues is
// derived from rows. GrandTotal returns nil when cfg does not describe a
// pivot with both row fields and values, and when a reducer fails.
func GrandTotal(rows []records.Record, cfg config.Pivot, columnValues []string) (total records.Record) {
	if len(cfg.Rows) == 0 || len(cfg.Values) == 0 {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("pivot: grand total failed over %d rows: %v; omitting it", len(rows), rec)
			total = nil
		}
	}()
	p := compile(cfg)
	if columnValues == nil {
		columnValues = p.columnValues(rows)
	}
	return p.grandTotalRow(rows, p.cells(columnValues, false))
}

// DynamicGrandTotal recomputes the grand total for the pivot rows currently
// visible (for example after a filter). Visible rows are mapped back to the
// source rows of their row group; sub total and grand total rows are
// ignored. Column layout stays fixed to columnValues.
func DynamicGrandTotal(source, visible []records.Record, cfg config.Pivot, columnValues []string) records.Record {
	keep := make(map[string]struct{}, len(visible))
	for _, r := range visible {
		if r == nil || IsSynthetic(r) {
			continue
		}
		keep[RowKey(r, cfg.Rows)] = struct{}{}
	}
	subset := make([]records.Record, 0, len(source))
	for _, r := range source {
		if r == nil {
			continue
		}
		if _, ok := keep[RowKey(r, cfg.Rows)]; ok {
			subset = append(subset, r)
		}
	}
	if columnValues == nil {
		columnValues = compile(cfg).columnValues(source)
	}
	return GrandTotal(subset, cfg, columnValues)
}
