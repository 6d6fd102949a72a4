package pivot

import (
	"log"
	"sort"
	"strconv"
	"strings"

	"gridengine/internal/aggregate"
	"gridengine/internal/config"
	"gridengine/pkg/records"
)

// rowKeySeparator joins row field values into a row-group key. The unit
// separator never appears in rendered cell text.
const rowKeySeparator = "\x1f"

// measure is one compiled pivot value.
type measure struct {
	field  string
	agg    string // canonical reducer name
	fn     aggregate.Func
	suffix string
	title  string
}

// cell is one synthesized output column.
type cell struct {
	key         string
	kind        records.ColumnKind
	measure     int
	columnValue string
}

type group struct {
	values   []any
	parts    []string
	rank     []int // first-seen index of each prefix level
	rows     []records.Record
	byColumn map[string][]records.Record
}

func (g *group) prefix(level int) string {
	return strings.Join(g.parts[:level+1], rowKeySeparator)
}

type plan struct {
	cfg      config.Pivot
	sep      string
	desc     bool
	measures []measure
}

func compile(cfg config.Pivot) *plan {
	p := &plan{
		cfg:  cfg,
		sep:  cfg.FieldSeparator,
		desc: strings.EqualFold(strings.TrimSpace(cfg.SortDirection), "desc"),
	}
	if p.sep == "" {
		p.sep = config.DefaultFieldSeparator
	}

	type fieldAgg struct{ field, agg string }
	seen := map[fieldAgg]bool{}
	perField := map[string]int{}
	for _, v := range cfg.Values {
		raw := strings.TrimSpace(v.Aggregation)
		if raw == "" {
			raw = aggregate.Sum
		}
		name := aggregate.Canonical(raw)
		k := fieldAgg{v.Field, name}
		if seen[k] {
			log.Printf("pivot: value %s/%s listed twice; keeping the first", v.Field, name)
			continue
		}
		seen[k] = true
		perField[v.Field]++
		p.measures = append(p.measures, measure{
			field: v.Field,
			agg:   name,
			fn:    aggregate.Resolve(raw, cfg.Functions),
		})
	}
	for i := range p.measures {
		m := &p.measures[i]
		if perField[m.field] > 1 {
			m.suffix = m.field + p.sep + m.agg
			m.title = m.field + " (" + m.agg + ")"
		} else {
			m.suffix = m.field
			m.title = m.field
		}
	}
	return p
}

func (p *plan) pivoting() bool { return len(p.cfg.Columns) > 0 }

// RowKey identifies the row group of r under the given row fields.
func RowKey(r records.Record, fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString(rowKeySeparator)
		}
		b.WriteString(records.String(r[f]))
	}
	return b.String()
}

func (p *plan) columnValue(r records.Record) string {
	var b strings.Builder
	for i, f := range p.cfg.Columns {
		if i > 0 {
			b.WriteString(p.sep)
		}
		b.WriteString(records.String(r[f]))
	}
	return b.String()
}

// group partitions rows into row groups in first-seen order. prefixRows
// holds, per sub total level, the source rows of every prefix.
func (p *plan) group(rows []records.Record) ([]*group, []map[string][]records.Record) {
	n := len(p.cfg.Rows)
	levels := 0
	if p.cfg.ShowSubTotals && n > 1 {
		levels = n - 1
	}
	prefixRows := make([]map[string][]records.Record, levels)
	prefixRank := make([]map[string]int, n)
	for l := range prefixRows {
		prefixRows[l] = map[string][]records.Record{}
	}
	for l := range prefixRank {
		prefixRank[l] = map[string]int{}
	}

	index := map[string]*group{}
	var groups []*group
	for _, r := range rows {
		if r == nil {
			continue
		}
		parts := make([]string, n)
		for i, f := range p.cfg.Rows {
			parts[i] = records.String(r[f])
		}
		key := strings.Join(parts, rowKeySeparator)
		g, ok := index[key]
		if !ok {
			g = &group{parts: parts, values: make([]any, n), rank: make([]int, n)}
			for i, f := range p.cfg.Rows {
				g.values[i] = r[f]
				pk := g.prefix(i)
				rank, seen := prefixRank[i][pk]
				if !seen {
					rank = len(prefixRank[i])
					prefixRank[i][pk] = rank
				}
				g.rank[i] = rank
			}
			if p.pivoting() {
				g.byColumn = map[string][]records.Record{}
			}
			index[key] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
		if g.byColumn != nil {
			cv := p.columnValue(r)
			g.byColumn[cv] = append(g.byColumn[cv], r)
		}
		for l := 0; l < levels; l++ {
			pk := g.prefix(l)
			prefixRows[l][pk] = append(prefixRows[l][pk], r)
		}
	}
	return groups, prefixRows
}

// columnValues lists the distinct column values of rows, sorted when
// SortColumns is set and in first-seen order otherwise.
func (p *plan) columnValues(rows []records.Record) []string {
	out := []string{}
	if !p.pivoting() {
		return out
	}
	seen := map[string]bool{}
	for _, r := range rows {
		if r == nil {
			continue
		}
		cv := p.columnValue(r)
		if !seen[cv] {
			seen[cv] = true
			out = append(out, cv)
		}
	}
	if p.cfg.SortColumns {
		sort.SliceStable(out, func(i, j int) bool {
			c := compareNatural(out[i], out[j])
			if p.desc {
				c = -c
			}
			return c < 0
		})
	}
	return out
}

func (p *plan) splitByColumn(rows []records.Record) map[string][]records.Record {
	if !p.pivoting() {
		return nil
	}
	out := map[string][]records.Record{}
	for _, r := range rows {
		if r == nil {
			continue
		}
		cv := p.columnValue(r)
		out[cv] = append(out[cv], r)
	}
	return out
}

// cells lays out the synthesized columns. A key that collides with a row
// field, a marker or an earlier cell is skipped; verbose logs the skip.
func (p *plan) cells(columnValues []string, verbose bool) []cell {
	taken := map[string]bool{
		GrandTotalField:    true,
		SubTotalField:      true,
		SubTotalLevelField: true,
	}
	for _, f := range p.cfg.Rows {
		taken[f] = true
	}

	var out []cell
	add := func(c cell) {
		if taken[c.key] {
			if verbose {
				log.Printf("pivot: column key %q already in use; skipping", c.key)
			}
			return
		}
		taken[c.key] = true
		out = append(out, c)
	}

	if !p.pivoting() {
		for i, m := range p.measures {
			key := m.suffix
			if p.cfg.ShowRowTotals {
				key += p.sep + totalSuffix
			}
			add(cell{key: key, kind: records.KindValue, measure: i})
		}
		return out
	}
	for _, cv := range columnValues {
		for i, m := range p.measures {
			add(cell{key: cv + p.sep + m.suffix, kind: records.KindValue, measure: i, columnValue: cv})
		}
	}
	if p.cfg.ShowRowTotals {
		for i, m := range p.measures {
			add(cell{key: m.suffix + p.sep + totalSuffix, kind: records.KindRowTotal, measure: i})
		}
	}
	return out
}

// order arranges groups for output. Without row sorting, sub totals still
// need each prefix contiguous, so groups are ordered by prefix first-seen
// rank; otherwise first-seen order is kept.
func (p *plan) order(groups []*group) {
	switch {
	case p.cfg.SortRows:
		sort.SliceStable(groups, func(i, j int) bool {
			a, b := groups[i], groups[j]
			for l := range a.parts {
				c := compareNatural(a.parts[l], b.parts[l])
				if p.desc {
					c = -c
				}
				if c != 0 {
					return c < 0
				}
			}
			return false
		})
	case p.cfg.ShowSubTotals && len(p.cfg.Rows) > 1:
		sort.SliceStable(groups, func(i, j int) bool {
			a, b := groups[i], groups[j]
			for l := range a.rank {
				if a.rank[l] != b.rank[l] {
					return a.rank[l] < b.rank[l]
				}
			}
			return false
		})
	}
}

func (p *plan) columnDefs(cells []cell) []records.Column {
	out := make([]records.Column, 0, len(p.cfg.Rows)+len(cells))
	for _, f := range p.cfg.Rows {
		out = append(out, records.Column{Key: f, Title: f, Kind: records.KindDimension, Field: f})
	}
	single := len(p.measures) == 1
	for _, c := range cells {
		m := p.measures[c.measure]
		col := records.Column{
			Key:         c.key,
			Kind:        c.kind,
			Field:       m.field,
			Aggregation: m.agg,
			ColumnValue: c.columnValue,
			Format:      p.cfg.NumberFormat,
			Currency:    p.cfg.Currency,
			Precision:   p.cfg.Precision,
		}
		if m.agg == aggregate.Count {
			col.Format = "integer"
			col.Precision = 0
		}
		switch {
		case c.kind == records.KindRowTotal && single:
			col.Title = "Total"
		case c.kind == records.KindRowTotal:
			col.Title = "Total " + m.title
		case !p.pivoting():
			col.Title = m.title
		case single:
			col.Title = c.columnValue
		default:
			col.Title = c.columnValue + " " + m.title
		}
		out = append(out, col)
	}
	return out
}

// compareNatural orders numeric strings numerically and before text, and
// text lexically.
func compareNatural(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	switch {
	case errA == nil && errB == nil:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return strings.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}
