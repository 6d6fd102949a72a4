package builtin

import (
	"sort"
	"strings"

	"gridengine/pkg/records"
)

// Dedup policies.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// DeDup collapses duplicate records by a business key and picks a winner
// according to Policy:
//
//   - "keep-first"   : keep the earliest occurrence
//   - "keep-last"    : keep the latest occurrence (default)
//   - "most-complete": keep the record with the most non-blank fields;
//     ties break by "keep-last"
//
// DeDup compares rows with each other, so it always sees the whole row set.
// Run it after Normalize/Coerce so equal values compare equal. Records missing
// a key field pass through, after the winners, in input order.
type DeDup struct {
	Keys   []string
	Policy string

	// PreferFields add weight in "most-complete" scoring when non-blank.
	PreferFields []string
}

func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}
	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = KeepLast
	}
	prefer := make(map[string]struct{}, len(d.PreferFields))
	for _, f := range d.PreferFields {
		prefer[f] = struct{}{}
	}

	type slot struct {
		index int
		score int
	}
	winners := make(map[string]slot, len(in))
	var unkeyed []records.Record

	for i, r := range in {
		key, ok := d.key(r)
		if !ok {
			unkeyed = append(unkeyed, r)
			continue
		}
		prev, seen := winners[key]
		switch policy {
		case KeepFirst:
			if !seen {
				winners[key] = slot{index: i}
			}
		case MostComplete:
			s := slot{index: i, score: completeness(r, prefer)}
			if !seen || s.score >= prev.score {
				winners[key] = s
			}
		default:
			winners[key] = slot{index: i}
		}
	}

	idx := make([]int, 0, len(winners))
	for _, s := range winners {
		idx = append(idx, s.index)
	}
	sort.Ints(idx)

	out := make([]records.Record, 0, len(idx)+len(unkeyed))
	for _, i := range idx {
		out = append(out, in[i])
	}
	return append(out, unkeyed...)
}

// key joins the key fields; a missing field leaves the record unkeyed.
func (d DeDup) key(r records.Record) (string, bool) {
	var b strings.Builder
	for i, k := range d.Keys {
		v, ok := r[k]
		if !ok {
			return "", false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if v == nil {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(records.String(v))
	}
	return b.String(), true
}

// completeness counts non-blank fields, weighting the base count tenfold so
// preferred fields only break near ties.
func completeness(r records.Record, prefer map[string]struct{}) int {
	score, bonus := 0, 0
	for k, v := range r {
		if records.IsBlank(v) {
			continue
		}
		score++
		if _, ok := prefer[k]; ok {
			bonus++
		}
	}
	return score*10 + bonus
}
