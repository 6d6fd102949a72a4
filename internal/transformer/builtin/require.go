package builtin

import "gridengine/pkg/records"

// Require removes any record missing a value for one of the specified fields.
type Require struct {
	Fields []string
}

func (Require) RowLocal() bool { return true }

// Apply returns a new slice containing only records that have all required
// fields present and non-blank.
func (r Require) Apply(in []records.Record) []records.Record {
	out := make([]records.Record, 0, len(in))
	for _, rec := range in {
		ok := true
		for _, f := range r.Fields {
			if v, exists := rec[f]; !exists || records.IsBlank(v) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}
