package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// ErrInvalidInput is returned when engine input is neither a JSON array of
// rows nor a JSON object of named row arrays. Callers feeding the engine
// degrade it to an empty Input with OrEmpty.
var ErrInvalidInput = errors.New("records: input must be an array of rows or an object of named arrays")

// Input is the raw engine input. Exactly one shape is active: Rows when the
// caller supplied a flat array, Tables (in source key order) when the caller
// supplied a mapping that still needs merging.
type Input struct {
	Rows   []Record
	Tables []Table
	// IsArray is true when the input was a flat array (even an empty one).
	IsArray bool
}

// FromRows wraps an already-flat row set.
func FromRows(rows []Record) Input { return Input{Rows: rows, IsArray: true} }

// FromTables wraps an ordered set of named arrays.
func FromTables(tables ...Table) Input { return Input{Tables: tables} }

// ParseInput decodes data into an Input. It is a thin wrapper over
// UnmarshalJSON for callers holding raw bytes.
func ParseInput(data []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, err
	}
	return in, nil
}

// OrEmpty maps ErrInvalidInput to an empty row set, logging the warning
// under component. Other errors are returned unchanged.
func OrEmpty(component string, in Input, err error) (Input, error) {
	if errors.Is(err, ErrInvalidInput) {
		log.Printf("%s: invalid input (%v); using empty rows", component, err)
		return FromRows([]Record{}), nil
	}
	return in, err
}

// UnmarshalJSON accepts an array of rows or an object of named arrays; null
// is an empty array. Object key order is preserved because merge output
// order depends on it. Non-object array elements and non-array table values
// are dropped and logged.
func (in *Input) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return ErrInvalidInput
	}
	if bytes.Equal(trimmed, []byte("null")) {
		*in = FromRows([]Record{})
		return nil
	}
	switch trimmed[0] {
	case '[':
		rows, err := decodeRows(trimmed)
		if err != nil {
			return err
		}
		*in = Input{Rows: rows, IsArray: true}
		return nil
	case '{':
		tables, err := decodeTables(trimmed)
		if err != nil {
			return err
		}
		*in = Input{Tables: tables}
		return nil
	default:
		return ErrInvalidInput
	}
}

// MarshalJSON writes the active shape back out, keeping table order.
func (in Input) MarshalJSON() ([]byte, error) {
	if in.IsArray || len(in.Tables) == 0 {
		rows := in.Rows
		if rows == nil {
			rows = []Record{}
		}
		return json.Marshal(rows)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range in.Tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(t.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		rows := t.Rows
		if rows == nil {
			rows = []Record{}
		}
		body, err := json.Marshal(rows)
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeRows decodes a JSON array keeping only object elements.
func decodeRows(b []byte) ([]Record, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("records: decode rows: %w", err)
	}
	out := make([]Record, 0, len(raw))
	dropped := 0
	for _, el := range raw {
		el = bytes.TrimSpace(el)
		if len(el) == 0 || el[0] != '{' {
			dropped++
			continue
		}
		var r Record
		if err := json.Unmarshal(el, &r); err != nil {
			return nil, fmt.Errorf("records: decode row: %w", err)
		}
		out = append(out, r)
	}
	if dropped > 0 {
		log.Printf("records: dropped %d non-object row(s)", dropped)
	}
	return out, nil
}

// decodeTables walks an object token by token so that key order survives.
func decodeTables(b []byte) ([]Table, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	if _, err := dec.Token(); err != nil { // opening '{'
		return nil, fmt.Errorf("records: decode tables: %w", err)
	}
	var tables []Table
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("records: decode tables: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("records: decode tables: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("records: decode table %q: %w", name, err)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			log.Printf("records: table %q is not an array; skipping it", name)
			continue
		}
		rows, err := decodeRows(raw)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Rows: rows})
	}
	return tables, nil
}
