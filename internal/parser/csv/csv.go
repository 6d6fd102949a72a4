// Package csv decodes delimited text with a header row into records. Cells
// stay strings; the engine coerces numerics where it aggregates.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"gridengine/pkg/records"
)

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// maxSkipLogs bounds per-row skip logging.
const maxSkipLogs = 20

// ErrNoHeader is returned for empty input.
var ErrNoHeader = errors.New("csv: missing header row")

// Options configures the decoder. The zero value reads comma separated
// input and keeps cells verbatim.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims surrounding whitespace from every cell.
	TrimSpace bool

	// HeaderMap renames source headers (after trimming) to field names.
	HeaderMap map[string]string

	// EmptyAsNull stores empty cells as nil instead of "".
	EmptyAsNull bool
}

// Parse reads every row of r. Rows whose width differs from the header are
// skipped and counted; the result keeps source order.
func Parse(r io.Reader, opt Options) ([]records.Record, int, error) {
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	h, err := cr.Read()
	if err == io.EOF {
		return nil, 0, ErrNoHeader
	}
	if err != nil {
		return nil, 0, fmt.Errorf("csv: read header: %w", err)
	}
	headers := headerKeys(h, opt.HeaderMap)

	var (
		out     []records.Record
		skipped int
	)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < maxSkipLogs {
				log.Printf("csv: skipping line %d: %v", line, err)
			}
			skipped++
			continue
		}
		if len(row) != len(headers) {
			if skipped < maxSkipLogs {
				log.Printf("csv: skipping line %d: expected %d fields, got %d", line, len(headers), len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			if val == "" && opt.EmptyAsNull {
				rec[headers[i]] = nil
				continue
			}
			rec[headers[i]] = val
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// headerKeys trims header cells, strips a leading BOM and applies m. Blank
// headers become col_N.
func headerKeys(h []string, m map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		c := strings.TrimSpace(col)
		if alias, ok := m[c]; ok {
			c = alias
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		res[i] = c
	}
	return res
}
