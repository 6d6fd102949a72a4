package csv_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	pcsv "gridengine/internal/parser/csv"
	"gridengine/pkg/records"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		opt         pcsv.Options
		want        []records.Record
		wantSkipped int
	}{
		{
			name: "header and rows",
			in:   "drCode,sales\n1,10\n2,20\n",
			want: []records.Record{{"drCode": "1", "sales": "10"}, {"drCode": "2", "sales": "20"}},
		},
		{
			name: "bom, trim and header map",
			in:   "\uFEFF Kód , Prodej\n 1 , 10 \n",
			opt:  pcsv.Options{TrimSpace: true, HeaderMap: map[string]string{"Kód": "drCode", "Prodej": "sales"}},
			want: []records.Record{{"drCode": "1", "sales": "10"}},
		},
		{
			name: "tab separated with empty as null",
			in:   "team\tsales\nA\t\n",
			opt:  pcsv.Options{Comma: '\t', EmptyAsNull: true},
			want: []records.Record{{"team": "A", "sales": nil}},
		},
		{
			name:        "ragged rows skipped",
			in:          "a,b\n1,2\n3\n4,5,6\n7,8\n",
			want:        []records.Record{{"a": "1", "b": "2"}, {"a": "7", "b": "8"}},
			wantSkipped: 2,
		},
		{
			name: "blank header synthesized",
			in:   "a,\n1,2\n",
			want: []records.Record{{"a": "1", "col_1": "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, skipped, err := pcsv.Parse(strings.NewReader(tt.in), tt.opt)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if skipped != tt.wantSkipped {
				t.Fatalf("skipped = %d, want %d", skipped, tt.wantSkipped)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	if _, _, err := pcsv.Parse(strings.NewReader(""), pcsv.Options{}); !errors.Is(err, pcsv.ErrNoHeader) {
		t.Fatalf("err = %v, want ErrNoHeader", err)
	}
}
