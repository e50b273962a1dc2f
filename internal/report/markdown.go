package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/census-cli/internal/census"
)

// Markdown renders a compact report with bracketed sections, suitable for
// prompts or standalone docs.
func Markdown(ds census.Dataset, narrative string) string {
	var b strings.Builder
	regions := ds.Regions()
	b.WriteString("[DATASET SUMMARY]\n")
	b.WriteString(fmt.Sprintf("Regions selected: %d\n", len(regions)))
	if n := len(regions); n > 0 {
		b.WriteString(fmt.Sprintf("Coverage of %s: %s\n", census.HispanicPop,
			FormatNum(regions[n-1].Get(census.CumulativeShare), FormatShare)))
	}
	b.WriteString("\n")

	if nat, ok := ds.National(); ok {
		b.WriteString("[NATIONAL]\n")
		b.WriteString(fmt.Sprintf("Name: %s\n", nat.Name))
		for _, c := range Columns {
			v := FormatNum(nat.Get(c.Field), c.Format)
			if v == "" {
				v = "n/a"
			}
			b.WriteString(fmt.Sprintf("- %s: %s\n", c.Title, v))
		}
		b.WriteString("\n")
	}

	if len(regions) > 0 {
		b.WriteString("[REGIONS]\n")
		header := Header()
		b.WriteString("| " + strings.Join(header, " | ") + " |\n")
		b.WriteString("|" + strings.Repeat(" --- |", len(header)) + "\n")
		for _, r := range regions {
			cells := Cells(r)
			for i, c := range cells {
				cells[i] = strings.ReplaceAll(c, "|", "\\|")
			}
			b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}
		b.WriteString("\n")
	}

	if strings.TrimSpace(narrative) != "" {
		b.WriteString("[ANALYSIS]\n")
		b.WriteString(strings.TrimSpace(narrative))
		b.WriteString("\n")
	}
	return b.String()
}
