// Package filter turns the renderer's filter state into a row predicate.
//
// The global search matches when any searched field contains the query;
// each column filter must match its own field. Both comparisons fold case
// and strip accents, so "creme" finds "Crème".
package filter

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"gridengine/pkg/records"
)

// State is the active filter set supplied with every recomputation.
type State struct {
	Search  string            `json:"search"`
	Columns map[string]string `json:"columns"`
}

// Empty reports whether s filters nothing.
func (s State) Empty() bool {
	if strings.TrimSpace(s.Search) != "" {
		return false
	}
	for _, v := range s.Columns {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Predicate reports whether a row passes. A Predicate holds transform state
// and must not be shared between goroutines.
type Predicate func(records.Record) bool

// Folder lower-cases text and removes combining marks.
type Folder struct {
	t transform.Transformer
}

// NewFolder returns a Folder; like the predicate it is not goroutine safe.
func NewFolder() *Folder {
	return &Folder{t: transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)}
}

// Fold returns the comparison form of s.
func (f *Folder) Fold(s string) string {
	out, _, err := transform.String(f.t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// Compile builds the predicate for s. The global search looks at the given
// fields, or at every field of the row when fields is empty.
func Compile(s State, fields []string) Predicate {
	if s.Empty() {
		return func(records.Record) bool { return true }
	}
	f := NewFolder()
	query := f.Fold(s.Search)

	type columnFilter struct{ field, needle string }
	var cols []columnFilter
	for field, v := range s.Columns {
		if strings.TrimSpace(v) == "" {
			continue
		}
		cols = append(cols, columnFilter{field, f.Fold(v)})
	}

	return func(r records.Record) bool {
		for _, c := range cols {
			if !strings.Contains(f.Fold(records.String(r[c.field])), c.needle) {
				return false
			}
		}
		if query == "" {
			return true
		}
		if len(fields) == 0 {
			for _, v := range r {
				if strings.Contains(f.Fold(records.String(v)), query) {
					return true
				}
			}
			return false
		}
		for _, k := range fields {
			if strings.Contains(f.Fold(records.String(r[k])), query) {
				return true
			}
		}
		return false
	}
}

// Apply returns the rows passing s. An empty state returns rows unchanged.
func Apply(rows []records.Record, s State, fields []string) []records.Record {
	if s.Empty() {
		return rows
	}
	keep := Compile(s, fields)
	out := make([]records.Record, 0, len(rows))
	for _, r := range rows {
		if r != nil && keep(r) {
			out = append(out, r)
		}
	}
	return out
}
