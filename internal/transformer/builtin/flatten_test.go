package builtin

import (
	"reflect"
	"testing"

	"gridengine/pkg/records"
)

func TestFlattenApply(t *testing.T) {
	in := []records.Record{
		{"id": "1", "doctor": map[string]any{"name": "Ana", "region": map[string]any{"code": "EU"}}, "tags": []any{"a", 1.0}},
		{"id": "2", "plain": true},
	}
	got := Flatten{}.Apply(in)
	want := []records.Record{
		{"id": "1", "doctor.name": "Ana", "doctor.region.code": "EU", "tags": `["a",1]`},
		{"id": "2", "plain": true},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v\nwant %#v", got, want)
	}
	if _, nested := in[0]["doctor"].(map[string]any); !nested {
		t.Fatalf("input row rewritten")
	}
}

func TestFlattenApply_CustomSeparator(t *testing.T) {
	got := Flatten{Separator: "__"}.Apply([]records.Record{{"m": records.Record{"sales": 1.0}}})
	if !reflect.DeepEqual(got[0], records.Record{"m__sales": 1.0}) {
		t.Fatalf("got %#v", got[0])
	}
}
