// Package datasource opens engine input from a local file, stdin or an HTTP
// endpoint and decodes it into records.Input. JSON is the native format;
// CSV and TSV exports with a header row are read as a single array.
package datasource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"gridengine/internal/datasource/file"
	"gridengine/internal/datasource/httpds"
	pcsv "gridengine/internal/parser/csv"
	"gridengine/pkg/records"
)

// MaxInputBytes caps how much input ReadInput will buffer.
const MaxInputBytes = 256 << 20

// Input formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
)

type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// ForRef picks a Source for ref: http(s) URLs are fetched with hc, "-" is
// stdin, anything else is a local path.
func ForRef(ref string, hc httpds.Config) Source {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return httpds.NewSource(ref, httpds.NewClient(hc))
	}
	return file.NewLocal(ref)
}

// FormatFor guesses the format of ref from its extension, ignoring any URL
// query. Unknown extensions are JSON.
func FormatFor(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 && strings.Contains(ref, "://") {
		ref = ref[:i]
	}
	switch strings.ToLower(path.Ext(ref)) {
	case ".csv":
		return FormatCSV
	case ".tsv", ".tab":
		return FormatTSV
	}
	return FormatJSON
}

// ReadInput opens src and decodes an array of rows or an object of named
// arrays.
func ReadInput(ctx context.Context, src Source) (records.Input, error) {
	return ReadInputAs(ctx, src, FormatJSON)
}

// ReadInputAs is ReadInput for an explicit format.
func ReadInputAs(ctx context.Context, src Source, format string) (records.Input, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return records.Input{}, err
	}
	defer rc.Close()

	b, err := io.ReadAll(io.LimitReader(rc, MaxInputBytes+1))
	if err != nil {
		return records.Input{}, fmt.Errorf("datasource: read: %w", err)
	}
	if len(b) > MaxInputBytes {
		return records.Input{}, fmt.Errorf("datasource: input exceeds %d bytes", MaxInputBytes)
	}
	var comma rune
	switch strings.ToLower(format) {
	case "", FormatJSON:
	case FormatCSV:
		comma = ','
	case FormatTSV:
		comma = '\t'
	default:
		return records.Input{}, fmt.Errorf("datasource: unknown format %q", format)
	}
	if comma != 0 {
		rows, skipped, err := pcsv.Parse(bytes.NewReader(b), pcsv.Options{Comma: comma, TrimSpace: true})
		if err != nil {
			return records.Input{}, fmt.Errorf("datasource: %w", err)
		}
		if skipped > 0 {
			log.Printf("datasource: skipped %d malformed %s rows", skipped, format)
		}
		return records.FromRows(rows), nil
	}

	in, err := records.ParseInput(b)
	if in, err = records.OrEmpty("datasource", in, err); err != nil {
		return records.Input{}, fmt.Errorf("datasource: %w", err)
	}
	return in, nil
}
