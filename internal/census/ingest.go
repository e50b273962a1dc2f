package census

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoNameColumn is returned for an extract without the identifier column.
var ErrNoNameColumn = errors.New("extract has no name column")

// Extract is one fetched table: column names then positionally aligned rows.
type Extract struct {
	Columns []string
	Rows    [][]string
}

// Ingest converts an extract into one record per data row. Columns are
// matched by name, so their order in the extract does not matter. Fields
// whose columns are all missing from the extract stay absent.
func Ingest(x Extract, cat *Catalog) ([]Record, error) {
	index := make(map[string]int, len(x.Columns))
	for i, c := range x.Columns {
		c = strings.TrimSpace(c)
		if _, dup := index[c]; !dup {
			index[c] = i
		}
	}
	nameIdx, ok := index[cat.NameCode]
	if !ok {
		return nil, fmt.Errorf("ingest: %w (%s)", ErrNoNameColumn, cat.NameCode)
	}

	type binding struct {
		field Field
		cols  []int
		sum   bool
	}
	var binds []binding
	for _, s := range cat.specs {
		b := binding{field: s.Field, sum: s.Aggregate()}
		for _, code := range s.SourceCodes {
			if i, ok := index[code]; ok {
				b.cols = append(b.cols, i)
			}
		}
		if len(b.cols) > 0 {
			binds = append(binds, b)
		}
	}

	out := make([]Record, 0, len(x.Rows))
	for _, row := range x.Rows {
		rec := NewRecord(cell(row, nameIdx))
		for _, b := range binds {
			if !b.sum {
				rec.Set(b.field, ParseNum(cell(row, b.cols[0])))
				continue
			}
			total := 0.0
			for _, i := range b.cols {
				total += ParseNum(cell(row, i)).Or(0)
			}
			rec.Set(b.field, Some(total))
		}
		out = append(out, rec)
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
