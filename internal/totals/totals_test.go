package totals

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gridengine/internal/config"
	"gridengine/pkg/records"
)

func salesRows() []records.Record {
	return []records.Record{
		{"team": "A", "sales": 10.0},
		{"team": "B", "sales": "20"},
		{"team": "A", "sales": "n/a"},
		{"team": "B", "sales": nil},
		{"team": "A", "sales": 30.0},
	}
}

/*
TestFooter_SkipsNonNumeric checks that non-numeric and missing values are
excluded from total, average and count instead of counting as zero.
*/
func TestFooter_SkipsNonNumeric(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultTotals()
	cfg.Fields = []config.TotalField{{Field: "sales", Total: true, Average: true, Count: true}}

	got, err := Footer(context.Background(), salesRows(), cfg, config.DefaultRuntime())
	if err != nil {
		t.Fatalf("Footer: %v", err)
	}
	want := Summary{
		Field: "sales", Total: 60, Average: 20, Count: 3,
		HasTotal: true, HasAverage: true, HasCount: true,
		FormattedTotal: "60.00", FormattedAverage: "20.00",
	}
	if got["sales"] != want {
		t.Fatalf("summary=%+v want %+v", got["sales"], want)
	}
}

func TestFooter_EmptySetIsZero(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultTotals()
	cfg.Fields = []config.TotalField{{Field: "sales", Total: true, Average: true}}
	got, err := Footer(context.Background(), nil, cfg, config.DefaultRuntime())
	if err != nil {
		t.Fatalf("Footer: %v", err)
	}
	s := got["sales"]
	if !s.HasTotal || s.Total != 0 || s.Average != 0 || s.FormattedTotal != "0.00" {
		t.Fatalf("empty summary=%+v", s)
	}
}

// TestFooter_BatchingDoesNotChangeResult compares a single-batch run with a
// many-batch, many-worker run over the same rows.
func TestFooter_BatchingDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	rows := make([]records.Record, 1000)
	for i := range rows {
		rows[i] = records.Record{"n": float64(i % 17), "m": float64(i)}
	}
	cfg := config.DefaultTotals()
	cfg.Fields = []config.TotalField{
		{Field: "n", Total: true, Average: true, Count: true},
		{Field: "m", Total: true},
	}

	one, err := Footer(context.Background(), rows, cfg, config.Runtime{BatchSize: 0, Workers: 1})
	if err != nil {
		t.Fatalf("single batch: %v", err)
	}
	many, err := Footer(context.Background(), rows, cfg, config.Runtime{BatchSize: 7, Workers: 4})
	if err != nil {
		t.Fatalf("many batches: %v", err)
	}
	if !reflect.DeepEqual(one, many) {
		t.Fatalf("batched result differs:\n one=%+v\nmany=%+v", one, many)
	}
	if one["m"].Total != 499500 {
		t.Fatalf("m total=%v want 499500", one["m"].Total)
	}
}

func TestFooter_AutoDetectsNumericFields(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{"name": "x", "amt": 1.0, "code": "0042", "flag": true},
		{"name": "y", "amt": 2.0, "code": "7", "mixed": 1.0},
		{"mixed": "abc"},
	}
	got, err := Footer(context.Background(), rows, config.DefaultTotals(), config.DefaultRuntime())
	if err != nil {
		t.Fatalf("Footer: %v", err)
	}
	if len(got) != 1 || !got["amt"].HasTotal || got["amt"].Total != 3 {
		t.Fatalf("auto footer=%+v", got)
	}
	if got["amt"].HasAverage {
		t.Fatalf("auto-detected fields only carry totals")
	}
}

// TestFooter_FilteredSubset checks the footer against a hand-computed sum
// of exactly the rows that pass a filter.
func TestFooter_FilteredSubset(t *testing.T) {
	t.Parallel()

	var onlyA []records.Record
	for _, r := range salesRows() {
		if r["team"] == "A" {
			onlyA = append(onlyA, r)
		}
	}
	cfg := config.DefaultTotals()
	cfg.Fields = []config.TotalField{{Field: "sales", Total: true}}
	got, err := Footer(context.Background(), onlyA, cfg, config.DefaultRuntime())
	if err != nil {
		t.Fatalf("Footer: %v", err)
	}
	if got["sales"].Total != 40 {
		t.Fatalf("filtered total=%v want 40", got["sales"].Total)
	}
}

func TestFooter_CurrencyField(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultTotals()
	cfg.Currency = "USD"
	cfg.Fields = []config.TotalField{{Field: "sales", Total: true, Currency: true}}
	got, err := Footer(context.Background(), salesRows(), cfg, config.DefaultRuntime())
	if err != nil {
		t.Fatalf("Footer: %v", err)
	}
	if got["sales"].FormattedTotal != "USD 60.00" {
		t.Fatalf("currency total=%q", got["sales"].FormattedTotal)
	}
}

func TestFooter_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := config.DefaultTotals()
	cfg.Fields = []config.TotalField{{Field: "sales", Total: true}}
	if _, err := Footer(ctx, salesRows(), cfg, config.DefaultRuntime()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestDynamicGrandTotal_Idempotent(t *testing.T) {
	t.Parallel()

	source := []records.Record{
		{"team": "A", "sales": 10.0},
		{"team": "A", "sales": 20.0},
		{"team": "B", "sales": 5.0},
	}
	cfg := config.DefaultPivot()
	cfg.Enabled = true
	cfg.Rows = []string{"team"}
	cfg.Values = []config.Value{{Field: "sales", Aggregation: "sum"}}
	visible := []records.Record{{"team": "B", "sales_total": 5.0}}

	first, err := DynamicGrandTotal(context.Background(), source, visible, cfg, nil)
	if err != nil {
		t.Fatalf("DynamicGrandTotal: %v", err)
	}
	second, _ := DynamicGrandTotal(context.Background(), source, visible, cfg, nil)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("not idempotent: %#v vs %#v", first, second)
	}
	if first["sales_total"] != 5.0 {
		t.Fatalf("filtered grand total=%v want 5", first["sales_total"])
	}
}
