package report

import (
	"strconv"
	"strings"

	"github.com/KaramelBytes/census-cli/internal/census"
	"github.com/mattn/go-runewidth"
)

// tableColumns is the compact terminal layout.
var tableColumns = []census.Field{
	census.HispanicPop,
	census.HispanicPct,
	census.Hispanic18to64,
	census.HispanicShare18to64,
	census.HispanicMedianIncome,
	census.CumulativeShare,
}

// Table renders ds as an aligned plain-text table. Region names may hold
// wide runes, so widths are measured in terminal cells.
func Table(ds census.Dataset) string {
	header := []string{"#", census.NameField}
	for _, f := range tableColumns {
		header = append(header, f.String())
	}
	rows := [][]string{header}
	for i, r := range ds.Rows {
		rank := strconv.Itoa(i)
		if i == 0 {
			rank = "-"
		}
		row := []string{rank, r.Name}
		for _, f := range tableColumns {
			row = append(row, FormatNum(r.Get(f), FormatOf(f)))
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	for n, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteString("  ")
			}
			// Names left, numbers right.
			if i == 1 {
				b.WriteString(runewidth.FillRight(cell, widths[i]))
			} else {
				b.WriteString(runewidth.FillLeft(cell, widths[i]))
			}
		}
		b.WriteString("\n")
		if n == 0 {
			total := len(widths)*2 - 2
			for _, w := range widths {
				total += w
			}
			b.WriteString(strings.Repeat("-", total))
			b.WriteString("\n")
		}
	}
	return b.String()
}
