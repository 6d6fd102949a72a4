package builtin

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"gridengine/pkg/records"
)

const nbsp = "\u00a0"

// Normalize trims string cells, turns no-break spaces into plain spaces and
// brings text to NFC so equal labels group together. With Fields set only
// those fields are touched.
type Normalize struct {
	Fields []string
}

func (Normalize) RowLocal() bool { return true }

func (n Normalize) Apply(in []records.Record) []records.Record {
	out := make([]records.Record, 0, len(in))
	for _, r := range in {
		var c records.Record
		set := func(k string, v any) {
			s, ok := v.(string)
			if !ok {
				return
			}
			ns := normalizeText(s)
			if ns == s {
				return
			}
			if c == nil {
				c = r.Clone()
			}
			c[k] = ns
		}
		if len(n.Fields) == 0 {
			for k, v := range r {
				set(k, v)
			}
		} else {
			for _, k := range n.Fields {
				if v, ok := r[k]; ok {
					set(k, v)
				}
			}
		}
		if c == nil {
			c = r
		}
		out = append(out, c)
	}
	return out
}

func normalizeText(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, nbsp, " "))
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return s
}
