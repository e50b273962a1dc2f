// Package report renders a census dataset for people: display strings,
// CSV and XLSX exports, a SQLite snapshot, Markdown and a terminal table.
package report

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/census-cli/internal/census"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Format selects how a field is shown.
type Format int

const (
	FormatCount Format = iota
	FormatPercent
	FormatCurrency
	FormatDecimal
	// FormatShare is a 0..1 fraction shown as a percentage.
	FormatShare
)

// Column is one exported column.
type Column struct {
	Field  census.Field
	Title  string
	Format Format
}

// Columns is the export layout after the name column, in output order.
var Columns = []Column{
	{census.HispanicPop, "Hispanic Population", FormatCount},
	{census.HispanicPct, "Hispanic %", FormatPercent},
	{census.SpanishPop, "Spanish Speakers", FormatCount},
	{census.SpanishPct, "Spanish %", FormatPercent},
	{census.TotalPop, "Total Population", FormatCount},
	{census.Pop18to64, "Population 18-64", FormatCount},
	{census.Hispanic18to64, "Hispanic 18-64", FormatCount},
	{census.Spanish18to64, "Spanish Speakers 18-64", FormatCount},
	{census.MedianIncome, "Median Income", FormatCurrency},
	{census.AvgHouseholdSize, "Avg Household Size", FormatDecimal},
	{census.HispanicMedianIncome, "Hispanic Median Income", FormatCurrency},
	{census.HispanicHHSize, "Hispanic Household Size", FormatDecimal},
	{census.Hispanic18to64Pct, "Hispanic 18-64 %", FormatPercent},
	{census.Pop18to64Pct, "Population 18-64 %", FormatPercent},
	{census.HispanicShare18to64, "Hispanic Share of 18-64", FormatPercent},
	{census.Spanish18to64Pct, "Spanish Speakers 18-64 %", FormatPercent},
}

// NameTitle heads the region name column.
const NameTitle = "State"

var formats = map[census.Field]Format{
	census.TotalHouseholds: FormatCount,
	census.NonHispanicPct:  FormatPercent,
	census.CumulativeShare: FormatShare,
}

func init() {
	for _, c := range Columns {
		formats[c.Field] = c.Format
	}
}

// FormatOf returns the display format of f.
func FormatOf(f census.Field) Format {
	if ft, ok := formats[f]; ok {
		return ft
	}
	return FormatDecimal
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatNum renders n for display. Absent values render empty.
func FormatNum(n census.Num, ft Format) string {
	if !n.Valid {
		return ""
	}
	v := n.Value
	switch ft {
	case FormatCount:
		return printer.Sprintf("%d", int64(math.Round(v)))
	case FormatCurrency:
		return "$" + printer.Sprintf("%d", int64(math.Round(v)))
	case FormatPercent:
		return fmt.Sprintf("%.2f%%", v)
	case FormatShare:
		return fmt.Sprintf("%.2f%%", v*100)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// DisplayRow maps logical field names, plus NAME, to display strings.
type DisplayRow map[string]string

// Display formats every row of ds. The dataset is not modified.
func Display(ds census.Dataset) []DisplayRow {
	out := make([]DisplayRow, 0, len(ds.Rows))
	for _, r := range ds.Rows {
		row := DisplayRow{census.NameField: r.Name}
		for _, f := range census.Fields() {
			row[f.String()] = FormatNum(r.Get(f), FormatOf(f))
		}
		out = append(out, row)
	}
	return out
}
