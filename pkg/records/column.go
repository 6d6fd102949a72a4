package records

// ColumnKind classifies a column for the renderer.
type ColumnKind string

const (
	KindData      ColumnKind = "data"      // pass-through source field
	KindDimension ColumnKind = "dimension" // pivot row field
	KindValue     ColumnKind = "value"     // aggregated pivot cell
	KindRowTotal  ColumnKind = "row_total" // aggregate across all column values
)

// Column describes one rendered column. Pivot output fills the value
// metadata; the column group detector fills SubHeader.
type Column struct {
	Key         string     `json:"key"`
	Title       string     `json:"title"`
	Kind        ColumnKind `json:"kind,omitempty"`
	Field       string     `json:"field,omitempty"`
	Aggregation string     `json:"aggregation,omitempty"`
	ColumnValue string     `json:"column_value,omitempty"`
	SubHeader   string     `json:"sub_header,omitempty"`
	Format      string     `json:"format,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	Precision   int        `json:"precision,omitempty"`
}

// InferColumns derives data columns from rows. Field names within a row are
// taken in sorted order (maps carry no order); across rows the first
// appearance wins.
func InferColumns(rows []Record) []Column {
	seen := make(map[string]struct{})
	var cols []Column
	for _, r := range rows {
		for _, k := range r.SortedKeys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, Column{Key: k, Title: k, Kind: KindData, Field: k})
		}
	}
	return cols
}
