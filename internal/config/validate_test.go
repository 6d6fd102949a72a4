package config

import (
	"strings"
	"testing"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

/*
TestValidateGrid_ValidMinimal verifies that a well-formed grid produces no
issues.
*/
func TestValidateGrid_ValidMinimal(t *testing.T) {
	g := Default()
	g.Grid = "sales"
	g.Merge.By = []string{"drCode", "date"}
	g.Merge.Preserve = []string{"drCode", "team"}
	g.Transform = []Transform{{Kind: "flatten", Options: Options{}}}
	g.Pivot.Enabled = true
	g.Pivot.Rows = []string{"team"}
	g.Pivot.Values = []Value{{Field: "sales", Aggregation: "sum"}}
	g.Totals.Fields = []TotalField{{Field: "sales", Total: true}}

	if issues := ValidateGrid(g); len(issues) != 0 {
		t.Fatalf("expected no issues; got: %+v", issues)
	}
}

func TestValidateGrid_EmptyName(t *testing.T) {
	issues := ValidateGrid(Default())
	if !hasIssue(t, issues, SeverityWarning, "grid", "grid name is empty") {
		t.Fatalf("expected warning for empty grid; got %+v", issues)
	}
	if HasErrors(issues) {
		t.Fatalf("default grid should not have errors: %+v", issues)
	}
}

/*
TestValidateMerge_Cases exercises strategy, key and preserve checks.
*/
func TestValidateMerge_Cases(t *testing.T) {
	t.Run("unknown_strategy", func(t *testing.T) {
		issues := validateMerge(Merge{Strategy: "newest"})
		if !hasIssue(t, issues, SeverityError, "merge.merge_strategy", "unknown merge strategy") {
			t.Fatalf("got %+v", issues)
		}
	})
	t.Run("empty_and_duplicate_keys", func(t *testing.T) {
		issues := validateMerge(Merge{By: []string{"a", "", "a"}})
		if !hasIssue(t, issues, SeverityError, "merge.by[1]", "must not be empty") {
			t.Fatalf("missing empty-key error: %+v", issues)
		}
		if !hasIssue(t, issues, SeverityWarning, "merge.by[2]", "listed twice") {
			t.Fatalf("missing duplicate warning: %+v", issues)
		}
	})
	t.Run("preserve_without_by", func(t *testing.T) {
		issues := validateMerge(Merge{Preserve: []string{"team"}})
		if !hasIssue(t, issues, SeverityWarning, "merge.preserve", "without merge.by") {
			t.Fatalf("got %+v", issues)
		}
	})
	t.Run("preserve_without_identity", func(t *testing.T) {
		issues := validateMerge(Merge{By: []string{"id"}, Preserve: []string{"team"}})
		if !hasIssue(t, issues, SeverityWarning, "merge.preserve", "no preserve field is a merge key") {
			t.Fatalf("got %+v", issues)
		}
	})
}

func TestValidateTransforms_Cases(t *testing.T) {
	issues := validateTransforms([]Transform{
		{Kind: ""},
		{Kind: "explode"},
		{Kind: "require", Options: Options{}},
		{Kind: "dedup"},
	})
	if !hasIssue(t, issues, SeverityError, "transform[0].kind", "must not be empty") {
		t.Fatalf("missing empty-kind error: %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "transform[1].kind", "unknown transform kind") {
		t.Fatalf("missing unknown-kind warning: %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "transform[2].options.fields", "no fields") {
		t.Fatalf("missing require warning: %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "transform[3].options.keys", "no keys") {
		t.Fatalf("missing dedup warning: %+v", issues)
	}
}

/*
TestValidatePivot_Cases covers the enabled-pivot shape checks and the value
list checks.
*/
func TestValidatePivot_Cases(t *testing.T) {
	t.Run("disabled_is_not_checked", func(t *testing.T) {
		if issues := validatePivot(DefaultPivot()); len(issues) != 0 {
			t.Fatalf("got %+v", issues)
		}
	})
	t.Run("identity", func(t *testing.T) {
		p := DefaultPivot()
		p.Enabled = true
		if !hasIssue(t, validatePivot(p), SeverityWarning, "pivot", "pass through unchanged") {
			t.Fatalf("missing identity warning")
		}
	})
	t.Run("missing_rows_and_bad_values", func(t *testing.T) {
		p := DefaultPivot()
		p.Enabled = true
		p.Columns = []string{"month"}
		p.Values = []Value{
			{Field: "sales", Aggregation: "sum"},
			{Field: "", Aggregation: "sum"},
			{Field: "sales", Aggregation: "median"},
			{Field: "sales", Aggregation: "SUM"},
		}
		issues := validatePivot(p)
		if !hasIssue(t, issues, SeverityWarning, "pivot.rows", "at least one row field") {
			t.Fatalf("missing rows warning: %+v", issues)
		}
		if !hasIssue(t, issues, SeverityError, "pivot.values[1].field", "must not be empty") {
			t.Fatalf("missing empty field error: %+v", issues)
		}
		if !hasIssue(t, issues, SeverityWarning, "pivot.values[2].aggregation", "unknown aggregation") {
			t.Fatalf("missing aggregation warning: %+v", issues)
		}
		if !hasIssue(t, issues, SeverityWarning, "pivot.values[3]", "listed twice") {
			t.Fatalf("missing duplicate warning: %+v", issues)
		}
	})
	t.Run("sort_precision_currency", func(t *testing.T) {
		p := DefaultPivot()
		p.SortDirection = "up"
		p.Precision = -1
		p.Currency = "ZZZ"
		issues := validatePivot(p)
		if !hasIssue(t, issues, SeverityError, "pivot.sort_direction", "must be") {
			t.Fatalf("missing sort error: %+v", issues)
		}
		if !hasIssue(t, issues, SeverityError, "pivot.precision", "negative") {
			t.Fatalf("missing precision error: %+v", issues)
		}
		if !hasIssue(t, issues, SeverityError, "pivot.currency", "unknown ISO 4217") {
			t.Fatalf("missing currency error: %+v", issues)
		}
	})
}

func TestValidateGroups_Patterns(t *testing.T) {
	issues := validateGroups(Groups{GroupingPatterns: []Pattern{
		{Regex: ""},
		{Regex: "("},
		{Regex: "^sales"},
		{Regex: "^(q\\d)_"},
	}})
	if !hasIssue(t, issues, SeverityError, "groups.grouping_patterns[0].regex", "must not be empty") {
		t.Fatalf("missing empty regex error: %+v", issues)
	}
	if !hasIssue(t, issues, SeverityError, "groups.grouping_patterns[1].regex", "invalid regex") {
		t.Fatalf("missing invalid regex error: %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "groups.grouping_patterns[2]", "never groups anything") {
		t.Fatalf("missing no-name warning: %+v", issues)
	}
	if len(issues) != 3 {
		t.Fatalf("expected exactly 3 issues, got %+v", issues)
	}
}

func TestValidateTotalsAndRuntime(t *testing.T) {
	issues := validateTotals(Totals{Fields: []TotalField{{Field: ""}, {Field: "x"}}, Currency: "USD"})
	if !hasIssue(t, issues, SeverityError, "totals.fields[0].field", "must not be empty") {
		t.Fatalf("missing field error: %+v", issues)
	}
	if !hasIssue(t, issues, SeverityWarning, "totals.fields[1]", "selects none") {
		t.Fatalf("missing selection warning: %+v", issues)
	}

	rt := validateRuntime(Runtime{BatchSize: -1, Workers: -2, DebounceMS: -3})
	for _, path := range []string{"runtime.batch_size", "runtime.workers", "runtime.debounce_ms"} {
		if !hasIssue(t, rt, SeverityError, path, "must not be negative") {
			t.Fatalf("missing %s error: %+v", path, rt)
		}
	}
}

func TestIssue_Error(t *testing.T) {
	iss := Issue{Severity: SeverityError, Path: "pivot.rows", Message: "boom"}
	if got, want := iss.Error(), "error at pivot.rows: boom"; got != want {
		t.Fatalf("Error()=%q want %q", got, want)
	}
}
