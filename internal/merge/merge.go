// Package merge collapses a mapping of named row arrays into one row set.
//
// Rows from every array that share the same merge key (the ordered values of
// the configured By fields joined with "||") become one output row. Fields
// are merged left to right in table order: with the default "keep-last"
// strategy a later table overwrites an earlier one, with "keep-first" a later
// table only fills fields that are still empty.
//
// Preserve fields are never overwritten once they hold a value. When one of
// them is also a merge key field it becomes the preserve identity: the first
// non-empty, non-null, non-zero value seen for each preserve field under that
// identity is cached across all merge keys and back-fills any merged row
// that lacks it. This keeps metadata known from one sub-table (a team, a
// region) from being blanked out by a sub-table that simply did not carry it.
//
// Without merge keys every array is flattened and each row is tagged with
// GroupField = <array name>. Output order is the order in which merge keys
// were first seen.
package merge

import (
	"log"
	"strings"

	"gridengine/internal/config"
	"gridengine/pkg/records"
)

// GroupField tags flattened rows with their source array name.
const GroupField = "__group"

// KeySeparator joins merge key values.
const KeySeparator = "||"

// Merge applies cfg to in. Flat array input is returned as its valid rows
// without merging.
func Merge(in records.Input, cfg config.Merge) []records.Record {
	if in.IsArray {
		return validRows(in.Rows)
	}
	return Tables(in.Tables, cfg)
}

// Tables merges the ordered named arrays. A panic while merging degrades to
// the flattened, unmerged rows.
func Tables(tables []records.Table, cfg config.Merge) (out []records.Record) {
	if len(tables) == 0 {
		return []records.Record{}
	}
	by := nonEmpty(cfg.By)
	if len(by) == 0 {
		return Flatten(tables)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("merge: recovered from %v; returning flattened rows", rec)
			out = Flatten(tables)
		}
	}()
	return mergeRows(tables, by, cfg)
}

// mergeRows is the keyed merge; tests swap it to exercise the fallback.
var mergeRows = mergeByKey

// Flatten concatenates every array in order, tagging each copied row with
// its source name.
func Flatten(tables []records.Table) []records.Record {
	n := 0
	for _, t := range tables {
		n += len(t.Rows)
	}
	out := make([]records.Record, 0, n)
	for _, t := range tables {
		for _, r := range t.Rows {
			if r == nil {
				continue
			}
			c := r.Clone()
			c[GroupField] = t.Name
			out = append(out, c)
		}
	}
	return out
}

// Key builds the merge key of r: by values rendered with records.String
// (missing -> "") joined with KeySeparator.
func Key(r records.Record, by []string) string {
	var b strings.Builder
	for i, k := range by {
		if i > 0 {
			b.WriteString(KeySeparator)
		}
		b.WriteString(records.String(r[k]))
	}
	return b.String()
}

func mergeByKey(tables []records.Table, by []string, cfg config.Merge) []records.Record {
	keepFirst := strings.EqualFold(strings.TrimSpace(cfg.Strategy), config.StrategyKeepFirst)

	preserve := make(map[string]struct{}, len(cfg.Preserve))
	for _, p := range cfg.Preserve {
		preserve[p] = struct{}{}
	}
	identity := preserveIdentity(cfg.Preserve, by)

	// identity value -> preserve field -> first known value
	known := map[string]map[string]any{}
	remember := func(r records.Record) {
		if identity == "" {
			return
		}
		id := records.String(r[identity])
		slot := known[id]
		for _, f := range cfg.Preserve {
			v, ok := r[f]
			if !ok || records.IsEmpty(v) {
				continue
			}
			if slot == nil {
				slot = map[string]any{}
				known[id] = slot
			}
			if _, set := slot[f]; !set {
				slot[f] = v
			}
		}
	}

	merged := map[string]records.Record{}
	var order []string

	for _, t := range tables {
		for _, r := range t.Rows {
			if r == nil {
				continue
			}
			remember(r)
			k := Key(r, by)
			dst, ok := merged[k]
			if !ok {
				merged[k] = r.Clone()
				order = append(order, k)
				continue
			}
			for f, v := range r {
				cur, has := dst[f]
				if _, isPreserved := preserve[f]; isPreserved || keepFirst {
					if !has || (records.IsEmpty(cur) && !records.IsEmpty(v)) {
						dst[f] = v
					}
					continue
				}
				dst[f] = v
			}
		}
	}

	out := make([]records.Record, 0, len(order))
	for _, k := range order {
		r := merged[k]
		if identity != "" {
			if slot := known[records.String(r[identity])]; slot != nil {
				for f, v := range slot {
					if cur, has := r[f]; !has || records.IsEmpty(cur) {
						r[f] = v
					}
				}
			}
		}
		out = append(out, r)
	}
	return out
}

// preserveIdentity is the first preserve field that is also a merge key.
func preserveIdentity(preserve, by []string) string {
	for _, p := range preserve {
		for _, k := range by {
			if p == k {
				return p
			}
		}
	}
	return ""
}

func nonEmpty(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

func validRows(rows []records.Record) []records.Record {
	out := make([]records.Record, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
