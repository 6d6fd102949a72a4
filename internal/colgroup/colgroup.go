// Package colgroup clusters flat columns under shared display headers.
//
// Each column is claimed by the first rule that matches it, in this order:
//
//  1. ungrouped_columns are never grouped.
//  2. total columns (listed in total_columns, or "total" in key or title)
//     wait for rule 6.
//  3. keys without the group separator: custom keyword mappings, then
//     auto-detected prefixes shared by at least two columns, then the
//     built-in keyword map.
//  4. keys of the form prefix<sep>suffix: the suffix is the group (relabeled
//     by custom mappings) and the prefix becomes the column's SubHeader.
//  5. grouping_patterns, in configuration order.
//  6. total columns join an existing group whose name appears in their key.
//
// Groups sharing a header merge. Groups are ordered by their first column,
// columns keep their input order, and every input column lands in exactly
// one group or in Ungrouped.
package colgroup

import (
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"gridengine/internal/config"
	"gridengine/pkg/records"
)

// Group is one header and the columns under it.
type Group struct {
	Header  string           `json:"header"`
	Columns []records.Column `json:"columns"`
}

// Result is the detector output.
type Result struct {
	Groups    []Group          `json:"groups"`
	Ungrouped []records.Column `json:"ungrouped_columns"`
}

// Prefixes shared by many unrelated fields never form a group on their own.
var prefixDenylist = map[string]bool{
	"id": true, "name": true, "date": true, "team": true,
	"code": true, "total": true, "key": true, "type": true,
}

// fallbackKeywords applies when neither a custom mapping nor an auto prefix
// claimed a column. A fallback group needs at least two members.
var fallbackKeywords = []struct{ keyword, header string }{
	{"revenue", "Revenue"},
	{"sales", "Sales"},
	{"expense", "Costs"},
	{"cost", "Costs"},
	{"profit", "Profit"},
	{"margin", "Profit"},
	{"quantity", "Quantity"},
	{"qty", "Quantity"},
	{"visit", "Visits"},
	{"call", "Calls"},
}

type assignment struct {
	header    string
	subHeader string
	name      string // raw group name used for total attachment
}

// Detect groups columns according to cfg.
func Detect(columns []records.Column, cfg config.Groups) Result {
	sep := cfg.GroupSeparator
	if sep == "" {
		sep = config.DefaultGroupSeparator
	}

	n := len(columns)
	assigned := make([]*assignment, n)
	skip := make([]bool, n) // ungrouped or total: not eligible for rules 3-5
	total := make([]bool, n)

	ungrouped := toSet(cfg.UngroupedColumns)
	totals := toSet(cfg.TotalColumns)
	for i, c := range columns {
		switch {
		case ungrouped[c.Key]:
			skip[i] = true
		case totals[c.Key] || isTotalLike(c):
			skip[i] = true
			total[i] = true
		}
	}

	custom := sortedMappings(cfg.CustomGroupMappings)
	titler := cases.Title(language.English)

	// Rule 3: keyword and prefix grouping.
	prefixCount := map[string]int{}
	prefixes := make([]string, n)
	for i, c := range columns {
		if skip[i] || strings.Contains(c.Key, sep) {
			continue
		}
		if label, kw, ok := matchKeyword(c.Key, custom); ok {
			assigned[i] = &assignment{header: label, name: kw}
			continue
		}
		if p := leadingPrefix(c.Key); p != "" && !prefixDenylist[p] {
			prefixes[i] = p
			prefixCount[p]++
		}
	}
	fallbackCount := map[string]int{}
	fallback := make([]*assignment, n)
	for i, c := range columns {
		if skip[i] || assigned[i] != nil || strings.Contains(c.Key, sep) {
			continue
		}
		if p := prefixes[i]; p != "" && prefixCount[p] >= 2 {
			assigned[i] = &assignment{header: titler.String(p), name: p}
			continue
		}
		lk := strings.ToLower(c.Key)
		for _, fk := range fallbackKeywords {
			if strings.Contains(lk, fk.keyword) {
				fallback[i] = &assignment{header: fk.header, name: fk.keyword}
				fallbackCount[fk.header]++
				break
			}
		}
	}
	for i, a := range fallback {
		if a != nil && fallbackCount[a.header] >= 2 {
			assigned[i] = a
		}
	}

	// Rule 4: separator grouping.
	for i, c := range columns {
		if skip[i] || assigned[i] != nil {
			continue
		}
		idx := strings.Index(c.Key, sep)
		if idx <= 0 || idx+len(sep) >= len(c.Key) {
			continue
		}
		prefix, suffix := c.Key[:idx], c.Key[idx+len(sep):]
		header := suffix
		if label, ok := cfg.CustomGroupMappings[suffix]; ok {
			header = label
		} else if label, _, ok := matchKeyword(suffix, custom); ok {
			header = label
		}
		assigned[i] = &assignment{header: header, subHeader: prefix, name: suffix}
	}

	// Rule 5: pattern grouping.
	patterns := compilePatterns(cfg.GroupingPatterns)
	for i, c := range columns {
		if skip[i] || assigned[i] != nil {
			continue
		}
		for _, p := range patterns {
			if name, ok := p.match(c.Key); ok {
				assigned[i] = &assignment{header: name, name: name}
				break
			}
		}
	}

	// Rule 6: total attachment.
	var names []*assignment
	seen := map[string]bool{}
	for _, a := range assigned {
		if a != nil && !seen[a.header] {
			seen[a.header] = true
			names = append(names, a)
		}
	}
	for i, c := range columns {
		if !total[i] {
			continue
		}
		if a := attachTotal(c.Key, names); a != nil {
			assigned[i] = &assignment{header: a.header, name: a.name}
		}
	}

	return build(columns, assigned)
}

func build(columns []records.Column, assigned []*assignment) Result {
	res := Result{Groups: []Group{}, Ungrouped: []records.Column{}}
	index := map[string]int{}
	for i, c := range columns {
		a := assigned[i]
		if a == nil {
			res.Ungrouped = append(res.Ungrouped, c)
			continue
		}
		if a.subHeader != "" {
			c.SubHeader = a.subHeader
		}
		gi, ok := index[a.header]
		if !ok {
			gi = len(res.Groups)
			index[a.header] = gi
			res.Groups = append(res.Groups, Group{Header: a.header})
		}
		res.Groups[gi].Columns = append(res.Groups[gi].Columns, c)
	}
	return res
}

// attachTotal picks the group whose name or header is the longest substring
// of key; ties go to the earlier group.
func attachTotal(key string, groups []*assignment) *assignment {
	lk := strings.ToLower(key)
	var best *assignment
	bestLen := 0
	for _, a := range groups {
		for _, term := range []string{a.name, a.header} {
			t := strings.ToLower(term)
			if t == "" || len(t) <= bestLen || !strings.Contains(lk, t) {
				continue
			}
			best, bestLen = a, len(t)
		}
	}
	return best
}

func isTotalLike(c records.Column) bool {
	return strings.Contains(strings.ToLower(c.Key), "total") ||
		strings.Contains(strings.ToLower(c.Title), "total")
}

// leadingPrefix returns the lower-cased leading letter run of key, stopping
// at a lower-to-upper case transition ("salesQ1" -> "sales"). Runs shorter
// than two letters yield "".
func leadingPrefix(key string) string {
	var b strings.Builder
	var prev rune
	for i, r := range key {
		if !unicode.IsLetter(r) {
			break
		}
		if i > 0 && unicode.IsLower(prev) && unicode.IsUpper(r) {
			break
		}
		b.WriteRune(unicode.ToLower(r))
		prev = r
	}
	if len([]rune(b.String())) < 2 {
		return ""
	}
	return b.String()
}

type mapping struct{ keyword, label string }

// sortedMappings orders custom mappings longest keyword first so the most
// specific keyword wins regardless of map iteration order.
func sortedMappings(m map[string]string) []mapping {
	out := make([]mapping, 0, len(m))
	for k, v := range m {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out = append(out, mapping{keyword: strings.ToLower(k), label: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].keyword) != len(out[j].keyword) {
			return len(out[i].keyword) > len(out[j].keyword)
		}
		return out[i].keyword < out[j].keyword
	})
	return out
}

func matchKeyword(key string, ms []mapping) (label, keyword string, ok bool) {
	lk := strings.ToLower(key)
	for _, m := range ms {
		if strings.Contains(lk, m.keyword) {
			return m.label, m.keyword, true
		}
	}
	return "", "", false
}

type pattern struct {
	re   *regexp.Regexp
	name string
}

func compilePatterns(ps []config.Pattern) []pattern {
	out := make([]pattern, 0, len(ps))
	for i, p := range ps {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			log.Printf("colgroup: grouping_patterns[%d] %q: %v; skipping", i, p.Regex, err)
			continue
		}
		out = append(out, pattern{re: re, name: p.GroupName})
	}
	return out
}

// match returns the first non-empty capture group, or the configured name.
func (p pattern) match(key string) (string, bool) {
	m := p.re.FindStringSubmatch(key)
	if m == nil {
		return "", false
	}
	for _, s := range m[1:] {
		if s != "" {
			return s, true
		}
	}
	if p.name != "" {
		return p.name, true
	}
	return "", false
}

func toSet(keys []string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}
