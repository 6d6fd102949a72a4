// Package records defines the row model shared by every stage of the grid
// engine: a Record is one row, a Column describes one rendered column, and an
// Input is what callers hand to the engine (an array of rows, or an ordered
// mapping of named row arrays that still needs merging).
//
// The scalar helpers in this file (String, Float, IsBlank, IsEmpty) are the
// single place where loosely typed values are interpreted. Merge keys, group
// keys, numeric aggregation and back-fill decisions all go through them so the
// stages agree on what "the same value" and "no value" mean.
package records

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Record is a single row: field name -> scalar (string, number, bool, nil).
// Nested maps/slices are tolerated at merge input time only.
type Record map[string]any

// Clone returns a shallow copy of r. Nested values are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// SortedKeys returns the field names of r in ascending order.
func (r Record) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Table is one named source array of an Input mapping.
type Table struct {
	Name string
	Rows []Record
}

// String renders v the way merge and group keys expect: nil is "", floats
// use the shortest representation ("1", "1.5"), everything else via fmt.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Float reports v as a finite float64. Numeric strings are accepted after
// trimming; booleans, nil, NaN/Inf and anything else are not numeric.
func Float(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsBlank reports nil or a whitespace-only string.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// IsEmpty extends IsBlank with numeric zero. It is the back-fill test used for
// preserved fields: a zero amount in one sub-table never wins over a known
// value from another.
func IsEmpty(v any) bool {
	if IsBlank(v) {
		return true
	}
	if _, isStr := v.(string); isStr {
		return false
	}
	if f, ok := Float(v); ok && f == 0 {
		return true
	}
	return false
}
