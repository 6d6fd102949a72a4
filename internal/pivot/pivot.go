// Package pivot reshapes flat rows into a spreadsheet-style pivot: one output
// row per row group, one output column per observed column value and
// measure, plus optional row totals, sub totals and a grand total row.
//
// Synthesized cell keys:
//
//	with column pivoting   <columnValue>_<suffix>
//	without                <suffix>           (<suffix>_total with row totals on)
//	row totals             <suffix>_total
//
// where <suffix> is the measure's field, or <field>_<aggregation> when two
// measures share a field. "_" is the configured field separator.
//
// Pivot never panics into the caller: a failed transform returns the input
// rows unpivoted with IsPivot=false and no columns.
package pivot

import (
	"log"

	"gridengine/internal/aggregate"
	"gridengine/internal/config"
	"gridengine/pkg/records"
)

// Markers and labels placed on synthesized rows.
const (
	GrandTotalField    = "isGrandTotal"
	SubTotalField      = "isSubTotal"
	SubTotalLevelField = "subTotalLevel"
	GrandTotalLabel    = "Grand Total"
	SubTotalLabel      = "Subtotal"
	totalSuffix        = "total"
)

// Result is the pivot output handed to the renderer.
type Result struct {
	Rows         []records.Record `json:"rows"`
	Columns      []records.Column `json:"columns"`
	ColumnValues []string         `json:"column_values"`
	GrandTotal   records.Record   `json:"grand_total,omitempty"`
	IsPivot      bool             `json:"is_pivot"`
}

// Pivot applies cfg to rows. Disabled pivots, nil input and the identity
// configuration (no rows, columns or values) pass rows through untouched.
func Pivot(rows []records.Record, cfg config.Pivot) (res Result) {
	if !cfg.Enabled || rows == nil {
		return passThrough(rows)
	}
	if len(cfg.Rows) == 0 && len(cfg.Columns) == 0 && len(cfg.Values) == 0 {
		return passThrough(rows)
	}
	if len(cfg.Rows) == 0 || len(cfg.Values) == 0 {
		log.Printf("pivot: enabled without row fields (%d) or value fields (%d); output is empty", len(cfg.Rows), len(cfg.Values))
		return Result{Rows: []records.Record{}, Columns: []records.Column{}, ColumnValues: []string{}, IsPivot: true}
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("pivot: transform failed: %v; showing unpivoted rows", rec)
			res = passThrough(rows)
		}
	}()

	p := compile(cfg)
	return p.run(rows)
}

func passThrough(rows []records.Record) Result {
	return Result{Rows: rows, Columns: []records.Column{}, ColumnValues: []string{}, IsPivot: false}
}

// IsSynthetic reports whether r is a sub total or grand total row.
func IsSynthetic(r records.Record) bool {
	if b, _ := r[GrandTotalField].(bool); b {
		return true
	}
	b, _ := r[SubTotalField].(bool)
	return b
}

func (p *plan) run(rows []records.Record) Result {
	groups, prefixRows := p.group(rows)
	colValues := p.columnValues(rows)
	cells := p.cells(colValues, true)

	p.order(groups)

	out := make([]records.Record, 0, len(groups))
	last := len(p.cfg.Rows) - 2 // deepest sub total level
	for i, g := range groups {
		out = append(out, p.groupRow(g, cells))
		if !p.cfg.ShowSubTotals || last < 0 {
			continue
		}
		var next *group
		if i+1 < len(groups) {
			next = groups[i+1]
		}
		for l := last; l >= 0; l-- {
			pk := g.prefix(l)
			if next == nil || next.prefix(l) != pk {
				out = append(out, p.subTotalRow(g, l, prefixRows[l][pk], cells))
			}
		}
	}

	res := Result{
		Rows:         out,
		Columns:      p.columnDefs(cells),
		ColumnValues: colValues,
		IsPivot:      true,
	}
	if p.cfg.ShowGrandTotals {
		res.GrandTotal = p.grandTotalRow(rows, cells)
	}
	return res
}

func (p *plan) groupRow(g *group, cells []cell) records.Record {
	r := make(records.Record, len(p.cfg.Rows)+len(cells))
	for i, f := range p.cfg.Rows {
		r[f] = g.values[i]
	}
	p.fill(r, g.rows, g.byColumn, cells, false)
	return r
}

func (p *plan) subTotalRow(g *group, level int, rows []records.Record, cells []cell) records.Record {
	r := make(records.Record, len(p.cfg.Rows)+len(cells)+2)
	for i, f := range p.cfg.Rows {
		switch {
		case i <= level:
			r[f] = g.values[i]
		case i == level+1:
			r[f] = SubTotalLabel
		default:
			r[f] = ""
		}
	}
	r[SubTotalField] = true
	r[SubTotalLevelField] = level + 1
	p.fill(r, rows, p.splitByColumn(rows), cells, false)
	return r
}

func (p *plan) grandTotalRow(rows []records.Record, cells []cell) records.Record {
	r := make(records.Record, len(p.cfg.Rows)+len(cells)+1)
	for i, f := range p.cfg.Rows {
		if i == 0 {
			r[f] = GrandTotalLabel
		} else {
			r[f] = ""
		}
	}
	r[GrandTotalField] = true
	p.fill(r, rows, p.splitByColumn(rows), cells, true)
	return r
}

// fill computes every cell of r. Grand total rows only carry per-column
// cells when column totals are on.
func (p *plan) fill(r records.Record, rows []records.Record, byColumn map[string][]records.Record, cells []cell, grand bool) {
	for _, c := range cells {
		m := p.measures[c.measure]
		switch c.kind {
		case records.KindValue:
			if c.columnValue == "" && !p.pivoting() {
				r[c.key] = aggregate.Apply(m.fn, rows, m.field)
				continue
			}
			if grand && !p.cfg.ShowColumnTotals {
				continue
			}
			r[c.key] = aggregate.Apply(m.fn, byColumn[c.columnValue], m.field)
		case records.KindRowTotal:
			r[c.key] = aggregate.Apply(m.fn, rows, m.field)
		}
	}
}
