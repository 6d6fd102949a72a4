// Package builtin contains the reusable transform steps of the grid engine.
// Every step returns new rows and leaves its input untouched.
package builtin

import (
	"encoding/json"
	"fmt"

	"gridengine/pkg/records"
)

// Flatten lifts nested objects into dotted keys ({"a":{"b":1}} becomes
// {"a.b":1}) and renders arrays as JSON text so every cell is a scalar.
type Flatten struct {
	Separator string
}

func (Flatten) RowLocal() bool { return true }

func (f Flatten) Apply(in []records.Record) []records.Record {
	sep := f.Separator
	if sep == "" {
		sep = "."
	}
	out := make([]records.Record, 0, len(in))
	for _, r := range in {
		if !hasNested(r) {
			out = append(out, r)
			continue
		}
		flat := make(records.Record, len(r))
		for k, v := range r {
			flattenInto(flat, k, v, sep)
		}
		out = append(out, flat)
	}
	return out
}

func hasNested(r records.Record) bool {
	for _, v := range r {
		switch v.(type) {
		case map[string]any, records.Record, []any:
			return true
		}
	}
	return false
}

func flattenInto(dst records.Record, key string, v any, sep string) {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			flattenInto(dst, key+sep+k, vv, sep)
		}
	case records.Record:
		for k, vv := range t {
			flattenInto(dst, key+sep+k, vv, sep)
		}
	case []any:
		b, err := json.Marshal(t)
		if err != nil {
			dst[key] = fmt.Sprint(t)
			return
		}
		dst[key] = string(b)
	default:
		dst[key] = v
	}
}
