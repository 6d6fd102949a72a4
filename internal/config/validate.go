// Package config provides configuration models and helpers for data grids.
//
// This file adds a lightweight linter/validator for Grid values. It performs
// static checks over a decoded Grid and returns a list of issues (errors and
// warnings) that callers can surface in a CLI, an editor, or tests. The engine
// itself never refuses a configuration: anything flagged here degrades at run
// time instead of failing.
package config

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/currency"

	"gridengine/internal/aggregate"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError marks a setting the engine will have to ignore.
	SeverityError IssueSeverity = "error"
	// SeverityWarning marks a setting that works but probably not as intended.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "pivot.values[1].field").
type Issue struct {
	Severity IssueSeverity `json:"severity"`
	Path     string        `json:"path"`
	Message  string        `json:"message"`
}

// Error implements the error interface.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateGrid lints g without mutating it.
//
// Example:
//
//	g, err := config.Decode(r)
//	if err != nil { ... }
//	for _, iss := range config.ValidateGrid(g) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func ValidateGrid(g Grid) []Issue {
	var issues []Issue

	if strings.TrimSpace(g.Grid) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "grid",
			Message:  "grid name is empty; metrics are labeled and configs are stored under this name",
		})
	}
	issues = append(issues, validateMerge(g.Merge)...)
	issues = append(issues, validateTransforms(g.Transform)...)
	issues = append(issues, validatePivot(g.Pivot)...)
	issues = append(issues, validateGroups(g.Groups)...)
	issues = append(issues, validateTotals(g.Totals)...)
	issues = append(issues, validateRuntime(g.Runtime)...)
	return issues
}

func validateMerge(m Merge) []Issue {
	var issues []Issue

	switch m.Strategy {
	case "", StrategyKeepLast, StrategyKeepFirst:
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "merge.merge_strategy",
			Message:  fmt.Sprintf("unknown merge strategy %q; expected %q or %q", m.Strategy, StrategyKeepLast, StrategyKeepFirst),
		})
	}

	seen := map[string]struct{}{}
	for i, f := range m.By {
		path := fmt.Sprintf("merge.by[%d]", i)
		if strings.TrimSpace(f) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "merge key field must not be empty"})
			continue
		}
		if _, dup := seen[f]; dup {
			issues = append(issues, Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf("merge key field %q listed twice", f)})
		}
		seen[f] = struct{}{}
	}

	if len(m.Preserve) > 0 {
		if len(m.By) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "merge.preserve",
				Message:  "preserve has no effect without merge.by; arrays are flattened, not merged",
			})
		} else {
			hasIdentity := false
			for _, p := range m.Preserve {
				if _, ok := seen[p]; ok {
					hasIdentity = true
					break
				}
			}
			if !hasIdentity {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     "merge.preserve",
					Message:  "no preserve field is a merge key; values are only kept within identical merge keys",
				})
			}
		}
	}
	return issues
}

func validateTransforms(ts []Transform) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"flatten":   {},
		"normalize": {},
		"require":   {},
		"coerce":    {},
		"dedup":     {},
	}
	for i, t := range ts {
		path := fmt.Sprintf("transform[%d].kind", i)
		if strings.TrimSpace(t.Kind) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "transform kind must not be empty"})
			continue
		}
		if _, ok := known[t.Kind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path,
				Message:  fmt.Sprintf("unknown transform kind %q; it will be skipped", t.Kind),
			})
		}
		if t.Kind == "require" && len(t.Options.StringSlice("fields")) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("transform[%d].options.fields", i),
				Message:  "require transform has no fields; it will keep every row",
			})
		}
		if t.Kind == "dedup" && len(t.Options.StringSlice("keys")) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("transform[%d].options.keys", i),
				Message:  "dedup transform has no keys; it will keep every row",
			})
		}
	}
	return issues
}

func validatePivot(p Pivot) []Issue {
	var issues []Issue

	if p.SortDirection != "" && p.SortDirection != "asc" && p.SortDirection != "desc" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "pivot.sort_direction",
			Message:  fmt.Sprintf("sort_direction %q must be \"asc\" or \"desc\"", p.SortDirection),
		})
	}
	if p.Precision < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "pivot.precision", Message: "precision must not be negative"})
	}
	issues = append(issues, validateCurrency("pivot.currency", p.Currency)...)

	if !p.Enabled {
		return issues
	}
	if len(p.Rows) == 0 && len(p.Columns) == 0 && len(p.Values) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "pivot",
			Message:  "pivot is enabled without rows, columns or values; rows pass through unchanged",
		})
		return issues
	}
	if len(p.Rows) == 0 {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "pivot.rows", Message: "pivot needs at least one row field; output will be empty"})
	}
	if len(p.Values) == 0 {
		issues = append(issues, Issue{Severity: SeverityWarning, Path: "pivot.values", Message: "pivot needs at least one value field; output will be empty"})
	}

	type pair struct{ field, agg string }
	seen := map[pair]struct{}{}
	for i, v := range p.Values {
		if strings.TrimSpace(v.Field) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: fmt.Sprintf("pivot.values[%d].field", i), Message: "value field must not be empty"})
			continue
		}
		agg := v.Aggregation
		if agg == "" {
			agg = aggregate.Sum
		}
		if !aggregate.Known(agg, p.Functions) {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("pivot.values[%d].aggregation", i),
				Message:  fmt.Sprintf("unknown aggregation %q; sum will be used", v.Aggregation),
			})
		}
		k := pair{v.Field, aggregate.Canonical(agg)}
		if _, dup := seen[k]; dup {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("pivot.values[%d]", i),
				Message:  fmt.Sprintf("value %s/%s is listed twice; the duplicate column is skipped", v.Field, k.agg),
			})
		}
		seen[k] = struct{}{}
	}
	return issues
}

func validateGroups(g Groups) []Issue {
	var issues []Issue
	for i, p := range g.GroupingPatterns {
		path := fmt.Sprintf("groups.grouping_patterns[%d].regex", i)
		if strings.TrimSpace(p.Regex) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: "pattern regex must not be empty"})
			continue
		}
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			issues = append(issues, Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf("invalid regex: %v", err)})
			continue
		}
		if re.NumSubexp() == 0 && strings.TrimSpace(p.GroupName) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("groups.grouping_patterns[%d]", i),
				Message:  "pattern has neither a capture group nor a group_name; it never groups anything",
			})
		}
	}
	for k, label := range g.CustomGroupMappings {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(label) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "groups.custom_group_mappings",
				Message:  fmt.Sprintf("mapping %q -> %q has an empty side and is ignored", k, label),
			})
		}
	}
	return issues
}

func validateTotals(t Totals) []Issue {
	var issues []Issue
	if t.Precision < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "totals.precision", Message: "precision must not be negative"})
	}
	issues = append(issues, validateCurrency("totals.currency", t.Currency)...)
	for i, f := range t.Fields {
		if strings.TrimSpace(f.Field) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: fmt.Sprintf("totals.fields[%d].field", i), Message: "totals field must not be empty"})
			continue
		}
		if !f.Total && !f.Average && !f.Count {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     fmt.Sprintf("totals.fields[%d]", i),
				Message:  fmt.Sprintf("field %q selects none of total/average/count", f.Field),
			})
		}
	}
	return issues
}

func validateCurrency(path, code string) []Issue {
	if strings.TrimSpace(code) == "" {
		return nil
	}
	if _, err := currency.ParseISO(code); err != nil {
		return []Issue{{Severity: SeverityError, Path: path, Message: fmt.Sprintf("unknown ISO 4217 currency %q", code)}}
	}
	return nil
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue
	if r.BatchSize < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.batch_size", Message: "batch_size must not be negative"})
	}
	if r.Workers < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.workers", Message: "workers must not be negative"})
	}
	if r.DebounceMS < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "runtime.debounce_ms", Message: "debounce_ms must not be negative"})
	}
	return issues
}
