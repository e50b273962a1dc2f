package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/census-cli/internal/census"
	"github.com/KaramelBytes/census-cli/internal/utils"
)

// Export formats.
const (
	ExportCSV      = "csv"
	ExportXLSX     = "xlsx"
	ExportSQLite   = "sqlite"
	ExportMarkdown = "md"
	ExportJSON     = "json"
)

// DefaultFormats are written when none are requested.
var DefaultFormats = []string{ExportCSV, ExportXLSX}

// NormalizeFormat maps aliases to a known format.
func NormalizeFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return ExportCSV, nil
	case "xlsx", "excel":
		return ExportXLSX, nil
	case "sqlite", "db":
		return ExportSQLite, nil
	case "md", "markdown":
		return ExportMarkdown, nil
	case "json":
		return ExportJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want csv, xlsx, sqlite, md, json)", s)
	}
}

// Timestamp renders t as a filename-safe ISO stamp, e.g. 2025-01-01T00-00-00.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15-04-05")
}

// FileName returns the export file name for format at t.
func FileName(format string, t time.Time) string {
	ts := Timestamp(t)
	switch format {
	case ExportXLSX:
		return "hispanic_stats_with_summary_" + ts + ".xlsx"
	case ExportSQLite:
		return "hispanic_stats_" + ts + ".db"
	default:
		return "hispanic_stats_" + ts + "." + format
	}
}

// Export writes ds in each format under dir and returns the written paths
// in request order. Duplicate formats are written once.
func Export(ctx context.Context, dir string, formats []string, ds census.Dataset, narrative string, now time.Time) ([]string, error) {
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	var want []string
	seen := map[string]bool{}
	for _, f := range formats {
		nf, err := NormalizeFormat(f)
		if err != nil {
			return nil, err
		}
		if !seen[nf] {
			seen[nf] = true
			want = append(want, nf)
		}
	}
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	var written []string
	for _, f := range want {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := filepath.Join(dir, FileName(f, now))
		if err := exportOne(ctx, f, path, ds, narrative, now); err != nil {
			return written, fmt.Errorf("export %s: %w", f, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func exportOne(ctx context.Context, format, path string, ds census.Dataset, narrative string, now time.Time) error {
	switch format {
	case ExportCSV:
		return utils.SafeWrite(path, func(f *os.File) error { return WriteCSV(f, ds) })
	case ExportXLSX:
		return SaveXLSX(path, ds, narrative)
	case ExportSQLite:
		return WriteSQLite(ctx, path, ds, narrative, now)
	case ExportMarkdown:
		return utils.SafeWriteFile(path, []byte(Markdown(ds, narrative)))
	case ExportJSON:
		b, err := utils.PrettyJSON(struct {
			Data     census.Dataset `json:"data"`
			Analysis string         `json:"analysis"`
		}{ds, narrative})
		if err != nil {
			return err
		}
		return utils.SafeWriteFile(path, b)
	}
	return fmt.Errorf("unknown format %q", format)
}
