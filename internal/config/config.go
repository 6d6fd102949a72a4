// Package config defines the canonical, JSON-serializable configuration model
// for the grid engine. One Grid value describes how a single data grid turns
// its source rows into displayed rows: how named arrays are merged, which
// transforms run, whether and how the rows are pivoted, how columns are
// grouped under headers and which footer totals are shown.
//
// Configuration is owned by the surrounding UI layer and passed to the engine
// by value on every recomputation. Decode always starts from Default() so a
// partial JSON document only overrides what it names.
//
// Example (trimmed):
//
//	{
//	  "grid":  "doctor-activity",
//	  "merge": { "by": ["drCode","date"], "preserve": ["drCode","team"] },
//	  "transform": [ { "kind": "flatten" }, { "kind": "normalize" } ],
//	  "pivot": {
//	    "enabled": true,
//	    "rows": ["team"],
//	    "columns": ["month"],
//	    "values": [ { "field": "sales", "aggregation": "sum" } ]
//	  },
//	  "groups": { "group_separator": "__" },
//	  "totals": { "fields": [ { "field": "sales", "total": true } ] }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"io"

	"gridengine/internal/aggregate"
)

// Grid is the top-level configuration object for one data grid.
type Grid struct {
	// Grid names the configuration; it labels metrics and is the default
	// persistence key.
	Grid string `json:"grid"`

	Merge     Merge       `json:"merge"`
	Transform []Transform `json:"transform"`
	Pivot     Pivot       `json:"pivot"`
	Groups    Groups      `json:"groups"`
	Totals    Totals      `json:"totals"`
	Runtime   Runtime     `json:"runtime"`
}

// Merge strategies.
const (
	StrategyKeepLast  = "keep-last"
	StrategyKeepFirst = "keep-first"
)

// Merge configures how a mapping of named arrays collapses into one row set.
type Merge struct {
	// By lists the merge key fields in order. Empty means flatten every array
	// and tag rows with their source name instead of merging.
	By []string `json:"by"`

	// Preserve lists fields whose first known value survives later merges. The
	// first Preserve entry that is also in By keys the cross-row back-fill cache.
	Preserve []string `json:"preserve"`

	// Strategy is "keep-last" (default, later write wins) or "keep-first".
	Strategy string `json:"merge_strategy"`
}

// Value is one pivot measure: a source field and the reducer applied to it.
type Value struct {
	Field       string `json:"field"`
	Aggregation string `json:"aggregation"`
}

// Pivot configures the spreadsheet-style reshape.
type Pivot struct {
	Enabled bool     `json:"enabled"`
	Rows    []string `json:"rows"`
	Columns []string `json:"columns"`
	Values  []Value  `json:"values"`

	// Functions holds code-registered reducers addressable from Values by
	// name. It is never decoded from JSON.
	Functions aggregate.Registry `json:"-"`

	ShowGrandTotals  bool `json:"show_grand_totals"`
	ShowRowTotals    bool `json:"show_row_totals"`
	ShowColumnTotals bool `json:"show_column_totals"`
	ShowSubTotals    bool `json:"show_sub_totals"`

	SortRows      bool   `json:"sort_rows"`
	SortColumns   bool   `json:"sort_columns"`
	SortDirection string `json:"sort_direction"` // "asc" | "desc"

	NumberFormat   string `json:"number_format"`
	Currency       string `json:"currency"`
	Precision      int    `json:"precision"`
	Locale         string `json:"locale"`
	FieldSeparator string `json:"field_separator"`
}

// Pattern is a regex-based grouping rule. A named or positional capture group
// supplies the group name; GroupName is used when the regex has none.
type Pattern struct {
	Regex     string `json:"regex"`
	GroupName string `json:"group_name"`
}

// Groups configures display-time column grouping.
type Groups struct {
	GroupSeparator      string            `json:"group_separator"`
	UngroupedColumns    []string          `json:"ungrouped_columns"`
	TotalColumns        []string          `json:"total_columns"`
	CustomGroupMappings map[string]string `json:"custom_group_mappings"`
	GroupingPatterns    []Pattern         `json:"grouping_patterns"`
}

// TotalField selects which footer figures are shown for one field.
type TotalField struct {
	Field    string `json:"field"`
	Total    bool   `json:"total"`
	Average  bool   `json:"average"`
	Count    bool   `json:"count"`
	Currency bool   `json:"currency"`
}

// Totals configures the footer summary row of a non-pivot grid.
type Totals struct {
	// Fields lists the summarized fields. Empty means every column whose
	// values are numeric gets a total.
	Fields       []TotalField `json:"fields"`
	Precision    int          `json:"precision"`
	Locale       string       `json:"locale"`
	Currency     string       `json:"currency"`
	NumberFormat string       `json:"number_format"`
}

// Runtime controls batching and the recomputation debounce window.
type Runtime struct {
	BatchSize  int `json:"batch_size"`
	Workers    int `json:"workers"`
	DebounceMS int `json:"debounce_ms"`
}

// Transform defines one step of the pre-pivot transform chain.
type Transform struct {
	// Kind selects the implementation ("flatten", "normalize", "require",
	// "coerce", "dedup").
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the selected transform.
	Options Options `json:"options"`
}

// Defaults shared across sections.
const (
	DefaultFieldSeparator = "_"
	DefaultGroupSeparator = "__"
	DefaultPrecision      = 2
	DefaultBatchSize      = 5000
	DefaultWorkers        = 4
	DefaultDebounceMS     = 100
	DefaultNumberFormat   = "number"
	DefaultLocale         = "en-US"
)

// DefaultPivot returns a disabled pivot with every documented default set.
func DefaultPivot() Pivot {
	return Pivot{
		ShowGrandTotals:  true,
		ShowRowTotals:    true,
		ShowColumnTotals: true,
		SortRows:         true,
		SortColumns:      true,
		SortDirection:    "asc",
		NumberFormat:     DefaultNumberFormat,
		Precision:        DefaultPrecision,
		Locale:           DefaultLocale,
		FieldSeparator:   DefaultFieldSeparator,
	}
}

// DefaultGroups returns the grouping defaults.
func DefaultGroups() Groups {
	return Groups{GroupSeparator: DefaultGroupSeparator}
}

// DefaultTotals returns the footer defaults.
func DefaultTotals() Totals {
	return Totals{
		Precision:    DefaultPrecision,
		Locale:       DefaultLocale,
		NumberFormat: DefaultNumberFormat,
	}
}

// DefaultRuntime returns the batching defaults.
func DefaultRuntime() Runtime {
	return Runtime{
		BatchSize:  DefaultBatchSize,
		Workers:    DefaultWorkers,
		DebounceMS: DefaultDebounceMS,
	}
}

// Default returns a Grid with every section at its documented default.
func Default() Grid {
	return Grid{
		Merge:   Merge{Strategy: StrategyKeepLast},
		Pivot:   DefaultPivot(),
		Groups:  DefaultGroups(),
		Totals:  DefaultTotals(),
		Runtime: DefaultRuntime(),
	}
}

// Decode reads a Grid from r on top of Default().
func Decode(r io.Reader) (Grid, error) {
	g := Default()
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return Grid{}, fmt.Errorf("config: decode: %w", err)
	}
	g.normalize()
	return g, nil
}

// Unmarshal is Decode for callers holding bytes (e.g. a stored config).
func Unmarshal(b []byte) (Grid, error) {
	g := Default()
	if err := json.Unmarshal(b, &g); err != nil {
		return Grid{}, fmt.Errorf("config: decode: %w", err)
	}
	g.normalize()
	return g, nil
}

// normalize re-applies defaults to fields an explicit JSON zero value or
// empty string would otherwise disable.
func (g *Grid) normalize() {
	if g.Merge.Strategy == "" {
		g.Merge.Strategy = StrategyKeepLast
	}
	if g.Pivot.FieldSeparator == "" {
		g.Pivot.FieldSeparator = DefaultFieldSeparator
	}
	if g.Pivot.SortDirection == "" {
		g.Pivot.SortDirection = "asc"
	}
	if g.Groups.GroupSeparator == "" {
		g.Groups.GroupSeparator = DefaultGroupSeparator
	}
	if g.Runtime.BatchSize <= 0 {
		g.Runtime.BatchSize = DefaultBatchSize
	}
	if g.Runtime.Workers <= 0 {
		g.Runtime.Workers = DefaultWorkers
	}
	if g.Runtime.DebounceMS < 0 {
		g.Runtime.DebounceMS = DefaultDebounceMS
	}
}
