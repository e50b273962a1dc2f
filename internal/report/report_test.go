package report

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/census-cli/internal/census"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() census.Dataset {
	nat := census.NewRecord("United States")
	nat.Set(census.HispanicPop, census.Some(1234567.4))
	nat.Set(census.HispanicPct, census.Some(18.756))
	nat.Set(census.MedianIncome, census.Some(74580.6))
	nat.Set(census.AvgHouseholdSize, census.Some(2.5))

	ca := census.NewRecord("California")
	ca.Set(census.HispanicPop, census.Some(15600000))
	ca.Set(census.HispanicPct, census.Some(39.4))
	ca.Set(census.CumulativeShare, census.Some(0.2512))

	tx := census.NewRecord("Texas")
	tx.Set(census.HispanicPop, census.Some(11800000))
	tx.Set(census.CumulativeShare, census.Some(0.4411))
	return census.Dataset{Rows: []census.Record{nat, ca, tx}}
}

func TestFormatNum(t *testing.T) {
	cases := []struct {
		n    census.Num
		ft   Format
		want string
	}{
		{census.Some(1234567.4), FormatCount, "1,234,567"},
		{census.Some(999.5), FormatCount, "1,000"},
		{census.Some(18.756), FormatPercent, "18.76%"},
		{census.Some(74580.6), FormatCurrency, "$74,581"},
		{census.Some(2.5), FormatDecimal, "2.50"},
		{census.Some(0.8), FormatShare, "80.00%"},
		{census.Null, FormatCount, ""},
		{census.Null, FormatPercent, ""},
	}
	for _, c := range cases {
		if got := FormatNum(c.n, c.ft); got != c.want {
			t.Fatalf("FormatNum(%v, %d) = %q, want %q", c.n, c.ft, got, c.want)
		}
	}
}

func TestDisplayDoesNotModifyDataset(t *testing.T) {
	ds := sampleDataset()
	rows := Display(ds)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0]["NAME"] != "United States" || rows[0]["Hispanic_Pop"] != "1,234,567" {
		t.Fatalf("unexpected national row: %v", rows[0])
	}
	if rows[1]["Cumulative_Hisp_%"] != "25.12%" || rows[2]["Hispanic_%"] != "" {
		t.Fatalf("unexpected region rows: %v %v", rows[1], rows[2])
	}
	if v := ds.Rows[0].Get(census.HispanicPop); v.Value != 1234567.4 {
		t.Fatalf("dataset mutated: %v", v)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleDataset()); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	recs, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(recs))
	}
	if recs[0][0] != "State" || recs[0][1] != "Hispanic Population" || recs[0][16] != "Spanish Speakers 18-64 %" {
		t.Fatalf("unexpected header: %v", recs[0])
	}
	if recs[1][1] != "1,234,567" || recs[1][9] != "$74,581" || recs[1][10] != "2.50" {
		t.Fatalf("unexpected national cells: %v", recs[1])
	}
	if recs[3][0] != "Texas" || recs[3][2] != "" {
		t.Fatalf("unexpected Texas cells: %v", recs[3])
	}
}

func TestSaveXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := SaveXLSX(path, sampleDataset(), "Three states dominate."); err != nil {
		t.Fatalf("SaveXLSX: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(StatsSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 || rows[0][0] != "State" || rows[2][0] != "California" {
		t.Fatalf("unexpected stats sheet: %v", rows)
	}
	got, err := f.GetCellValue(AnalysisSheet, "A2")
	if err != nil || got != "Three states dominate." {
		t.Fatalf("analysis cell = %q, %v", got, err)
	}
}

func TestWriteSQLiteKeepsNulls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.db")
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := WriteSQLite(context.Background(), path, sampleDataset(), "text", now); err != nil {
		t.Fatalf("WriteSQLite: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM regions`).Scan(&n); err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	var pct sql.NullFloat64
	if err := db.QueryRow(`SELECT "Hispanic_%" FROM regions WHERE name = 'Texas'`).Scan(&pct); err != nil {
		t.Fatalf("select: %v", err)
	}
	if pct.Valid {
		t.Fatalf("expected NULL, got %v", pct.Float64)
	}
	var pop float64
	if err := db.QueryRow(`SELECT Hispanic_Pop FROM regions WHERE row_num = 0`).Scan(&pop); err != nil || pop != 1234567.4 {
		t.Fatalf("national pop = %v, %v", pop, err)
	}
	var text, created string
	if err := db.QueryRow(`SELECT text, created_at FROM analysis`).Scan(&text, &created); err != nil {
		t.Fatalf("analysis: %v", err)
	}
	if text != "text" || created != "2025-01-02T03:04:05Z" {
		t.Fatalf("unexpected analysis row: %q %q", text, created)
	}
}

func TestMarkdownSections(t *testing.T) {
	md := Markdown(sampleDataset(), "Narrative here.")
	for _, want := range []string{"[DATASET SUMMARY]", "Regions selected: 2", "Coverage of Hispanic_Pop: 44.11%", "[NATIONAL]", "[REGIONS]", "| California |", "[ANALYSIS]\nNarrative here."} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(Markdown(sampleDataset(), "  "), "[ANALYSIS]") {
		t.Fatalf("blank narrative should omit the analysis section")
	}
}

func TestTableAlignsWideNames(t *testing.T) {
	ds := sampleDataset()
	ds.Rows[1].Name = "Puerto Rico 波"
	out := Table(ds)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header, rule and 3 rows, got %d:\n%s", len(lines), out)
	}
	w := len([]rune(lines[0]))
	if !strings.HasPrefix(lines[1], "---") {
		t.Fatalf("missing rule: %q", lines[1])
	}
	if strings.Contains(lines[3], "波") {
		// one wide rune takes two cells, so the line is one rune shorter
		if got := len([]rune(lines[3])); got != w-1 {
			t.Fatalf("wide row not aligned: %d vs %d\n%s", got, w, out)
		}
	}
	if got := len([]rune(lines[4])); got != w {
		t.Fatalf("row not aligned: %d vs %d\n%s", got, w, out)
	}
}

func TestExportWritesRequestedFormats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "output")
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	paths, err := Export(context.Background(), dir, []string{"csv", "excel", "csv", "md", "json"}, sampleDataset(), "n", now)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := []string{
		"hispanic_stats_2025-01-01T00-00-00.csv",
		"hispanic_stats_with_summary_2025-01-01T00-00-00.xlsx",
		"hispanic_stats_2025-01-01T00-00-00.md",
		"hispanic_stats_2025-01-01T00-00-00.json",
	}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range paths {
		if filepath.Base(p) != want[i] {
			t.Fatalf("path %d = %s, want %s", i, p, want[i])
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	if _, err := Export(context.Background(), t.TempDir(), []string{"pdf"}, sampleDataset(), "", time.Now()); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
