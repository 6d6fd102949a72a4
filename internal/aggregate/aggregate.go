// Package aggregate provides the closed set of named reducers used by pivot
// cells, row/column/grand totals and footer summaries.
//
// Every reducer takes the already-filtered numeric values of one cell and
// returns the displayed value. Non-numeric and missing inputs never reach a
// reducer (see Values); the empty-set result is defined per function:
//
//	sum, count, average, min, max -> 0
//	first, last                   -> ""
//
// Callers may register additional reducers in code through a Registry; names
// are never compiled from user-supplied strings.
package aggregate

import (
	"log"
	"sort"
	"strings"

	"gridengine/pkg/records"
)

// Func reduces a cell's numeric values to its displayed value.
type Func func(values []float64) any

// Built-in reducer names.
const (
	Sum     = "sum"
	Count   = "count"
	Average = "average"
	Min     = "min"
	Max     = "max"
	First   = "first"
	Last    = "last"
)

var builtins = map[string]Func{
	Sum:     sum,
	Count:   count,
	Average: average,
	Min:     minOf,
	Max:     maxOf,
	First:   first,
	Last:    last,
}

var aliases = map[string]string{
	"avg":   Average,
	"mean":  Average,
	"total": Sum,
}

func sum(vs []float64) any {
	var s float64
	for _, v := range vs {
		s += v
	}
	return s
}

func count(vs []float64) any { return float64(len(vs)) }

func average(vs []float64) any {
	if len(vs) == 0 {
		return float64(0)
	}
	return sum(vs).(float64) / float64(len(vs))
}

func minOf(vs []float64) any {
	if len(vs) == 0 {
		return float64(0)
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vs []float64) any {
	if len(vs) == 0 {
		return float64(0)
	}
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func first(vs []float64) any {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func last(vs []float64) any {
	if len(vs) == 0 {
		return ""
	}
	return vs[len(vs)-1]
}

// Registry holds caller-supplied reducers keyed by name. Entries shadow the
// built-ins of the same name.
type Registry map[string]Func

// Canonical lower-cases name and resolves aliases ("avg" -> "average").
func Canonical(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// Lookup resolves name against r first, then the built-ins.
func (r Registry) Lookup(name string) (Func, bool) {
	if fn, ok := r[name]; ok && fn != nil {
		return fn, true
	}
	n := Canonical(name)
	for k, fn := range r {
		if fn != nil && Canonical(k) == n {
			return fn, true
		}
	}
	fn, ok := builtins[n]
	return fn, ok
}

// Resolve returns the reducer for name. Unknown names fall back to sum so a
// misconfigured value column still renders; the fallback is logged.
func Resolve(name string, extra Registry) Func {
	if fn, ok := extra.Lookup(name); ok {
		return fn
	}
	log.Printf("aggregate: unknown function %q; using %s", name, Sum)
	return builtins[Sum]
}

// Known reports whether name resolves without falling back.
func Known(name string, extra Registry) bool {
	_, ok := extra.Lookup(name)
	return ok
}

// Names lists the built-in reducer names in sorted order.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Values gathers the numeric values of field across rows in row order,
// skipping missing, null and non-numeric entries.
func Values(rows []records.Record, field string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if f, ok := records.Float(r[field]); ok {
			out = append(out, f)
		}
	}
	return out
}

// Apply is Values followed by fn.
func Apply(fn Func, rows []records.Record, field string) any {
	return fn(Values(rows, field))
}
