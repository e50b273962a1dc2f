package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/KaramelBytes/census-cli/internal/census"
)

// Header returns the export header row.
func Header() []string {
	h := make([]string, 0, len(Columns)+1)
	h = append(h, NameTitle)
	for _, c := range Columns {
		h = append(h, c.Title)
	}
	return h
}

// Cells returns the display cells of r in Header order.
func Cells(r census.Record) []string {
	out := make([]string, 0, len(Columns)+1)
	out = append(out, r.Name)
	for _, c := range Columns {
		out = append(out, FormatNum(r.Get(c.Field), c.Format))
	}
	return out
}

// WriteCSV writes the header and one display row per dataset row.
func WriteCSV(w io.Writer, ds census.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, r := range ds.Rows {
		if err := cw.Write(Cells(r)); err != nil {
			return fmt.Errorf("csv row %q: %w", r.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
