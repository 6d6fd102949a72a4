package builtin

import (
	"strconv"
	"strings"
	"time"

	"gridengine/pkg/records"
)

// ISODate is the layout coerced dates are rendered in, so date cells group
// and sort as text.
const ISODate = "2006-01-02"

// Coerce converts string cells to typed values before aggregation.
// Types maps field -> "number" | "int" | "bool" | "date" | "string". Values
// that fail to convert are left as they are; aggregation skips them.
type Coerce struct {
	Types  map[string]string
	Layout string // date input layout; defaults to ISODate

	// Truthy/Falsy replace the default boolean vocabulary when set.
	Truthy []string
	Falsy  []string
}

func (Coerce) RowLocal() bool { return true }

func (c Coerce) Apply(in []records.Record) []records.Record {
	if len(c.Types) == 0 {
		return in
	}
	layout := c.Layout
	if layout == "" {
		layout = ISODate
	}
	truthy, falsy := lowerSet(c.Truthy), lowerSet(c.Falsy)
	custom := len(truthy) > 0 || len(falsy) > 0

	out := make([]records.Record, 0, len(in))
	for _, r := range in {
		var cp records.Record
		for field, typ := range c.Types {
			s, isStr := r[field].(string)
			if !isStr {
				continue
			}
			s = strings.TrimSpace(s)
			var v any
			var ok bool
			switch strings.ToLower(typ) {
			case "number":
				v, ok = records.Float(s)
			case "int":
				var i int64
				i, ok = toInt(s)
				v = i
			case "bool":
				v, ok = toBool(s, custom, truthy, falsy)
			case "date":
				var t time.Time
				if t, ok = parseDate(s, layout); ok {
					v = t.Format(ISODate)
				}
			}
			if !ok {
				continue
			}
			if cp == nil {
				cp = r.Clone()
			}
			cp[field] = v
		}
		if cp == nil {
			cp = r
		}
		out = append(out, cp)
	}
	return out
}

func lowerSet(in []string) map[string]struct{} {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	for _, s := range in {
		m[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return m
}

func toInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	return i, err == nil
}

// toBool resolves booleans with optional custom vocabularies.
func toBool(s string, custom bool, truthy, falsy map[string]struct{}) (bool, bool) {
	ls := strings.ToLower(s)
	if ls == "" {
		return false, false
	}
	if custom {
		if _, ok := truthy[ls]; ok {
			return true, true
		}
		if _, ok := falsy[ls]; ok {
			return false, true
		}
		return false, false
	}
	switch ls {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	}
	return false, false
}

// parseDate tries layout first, then ISODate and RFC3339.
func parseDate(s, layout string) (time.Time, bool) {
	for _, l := range []string{layout, ISODate, time.RFC3339} {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
