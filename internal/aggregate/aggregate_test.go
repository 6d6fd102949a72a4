package aggregate

import (
	"testing"

	"gridengine/pkg/records"
)

/*
TestBuiltins_EmptySet locks the documented empty-set results: numeric
reducers yield 0, first/last yield "".
*/
func TestBuiltins_EmptySet(t *testing.T) {
	t.Parallel()

	want := map[string]any{
		Sum:     float64(0),
		Count:   float64(0),
		Average: float64(0),
		Min:     float64(0),
		Max:     float64(0),
		First:   "",
		Last:    "",
	}
	for name, w := range want {
		fn := Resolve(name, nil)
		if got := fn(nil); got != w {
			t.Fatalf("%s([])=%#v want %#v", name, got, w)
		}
	}
}

func TestBuiltins_Values(t *testing.T) {
	t.Parallel()

	vs := []float64{10, 20, -5}
	cases := []struct {
		name string
		want any
	}{
		{Sum, float64(25)},
		{Count, float64(3)},
		{Average, float64(25) / 3},
		{Min, float64(-5)},
		{Max, float64(20)},
		{First, float64(10)},
		{Last, float64(-5)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Resolve(c.name, nil)(vs); got != c.want {
				t.Fatalf("%s(%v)=%#v want %#v", c.name, vs, got, c.want)
			}
		})
	}
}

func TestResolve_AliasesAndFallback(t *testing.T) {
	t.Parallel()

	if got := Resolve("AVG", nil)([]float64{2, 4}); got != float64(3) {
		t.Fatalf("AVG alias=%v want 3", got)
	}
	if got := Resolve("mean", nil)([]float64{1, 2}); got != 1.5 {
		t.Fatalf("mean alias=%v want 1.5", got)
	}
	if Known("median", nil) {
		t.Fatalf("median should not be a known reducer")
	}
	// Unknown names fall back to sum.
	if got := Resolve("median", nil)([]float64{1, 2}); got != float64(3) {
		t.Fatalf("fallback=%v want 3", got)
	}
}

func TestRegistry_ExtraShadowsBuiltin(t *testing.T) {
	t.Parallel()

	extra := Registry{
		"range": func(vs []float64) any {
			if len(vs) == 0 {
				return float64(0)
			}
			return maxOf(vs).(float64) - minOf(vs).(float64)
		},
		"Sum": func([]float64) any { return "custom" },
	}
	if got := Resolve("range", extra)([]float64{3, 9, 1}); got != float64(8) {
		t.Fatalf("range=%v want 8", got)
	}
	if got := Resolve("sum", extra)(nil); got != "custom" {
		t.Fatalf("shadowed sum=%v want custom", got)
	}
}

func TestValues_SkipsNonNumeric(t *testing.T) {
	t.Parallel()

	rows := []records.Record{
		{"v": 1.0},
		{"v": nil},
		{"v": "abc"},
		{"v": "2"},
		{"other": 99},
		{"v": true},
	}
	got := Values(rows, "v")
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Values=%v want [1 2]", got)
	}
	if s := Apply(Resolve(Sum, nil), rows, "v"); s != float64(3) {
		t.Fatalf("Apply(sum)=%v want 3", s)
	}
}

/*
TestState_CombineMatchesSequential verifies that combining per-batch states in
order gives the same results as folding every value into one state.
*/
func TestState_CombineMatchesSequential(t *testing.T) {
	t.Parallel()

	vs := []float64{4, -2, 7, 0, 3}
	var seq State
	for _, v := range vs {
		seq.Add(v)
	}

	var a, b, combined State
	for _, v := range vs[:2] {
		a.Add(v)
	}
	for _, v := range vs[2:] {
		b.Add(v)
	}
	combined.Combine(a)
	combined.Combine(b)

	for _, name := range Names() {
		if got, want := combined.Result(name), seq.Result(name); got != want {
			t.Fatalf("%s: combined=%v sequential=%v", name, got, want)
		}
	}
	if got := (State{}).Result(First); got != "" {
		t.Fatalf("empty first=%#v want \"\"", got)
	}
}
