package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

// runCLI is a helper to execute the root command with args.
func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func execCmd(args ...string) (string, error) {
	// Reset sticky flags that may persist Changed state across invocations
	for _, c := range []struct {
		name string
		val  string
	}{{"output-dir", ""}, {"no-export", "false"}, {"no-narrative", "false"}, {"json", "false"}} {
		if fl := runCmd.Flags().Lookup(c.name); fl != nil {
			_ = fl.Value.Set(c.val)
			fl.Changed = false
		}
	}
	if fl := runCmd.Flags().Lookup("format"); fl != nil {
		fl.Changed = false
	}
	runFormats = nil
	if fl := configShowCmd.Flags().Lookup("reveal"); fl != nil {
		_ = fl.Value.Set("false")
		fl.Changed = false
	}
	cfgFile = ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{"CENSUS_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY", "GEMINI_API_KEY", "PORT"} {
		t.Setenv(k, "")
	}
	return home
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "census.yaml")

	runCLI(t, "config", "set", "threshold", "0.9", "--config", path)
	runCLI(t, "config", "set", "anthropic_api_key", "sk-ant-1234567890", "--config", path)
	out := runCLI(t, "config", "show", "--config", path)
	if !strings.Contains(out, "threshold: 0.9") {
		t.Fatalf("threshold not persisted:\n%s", out)
	}
	if strings.Contains(out, "sk-ant-1234567890") || !strings.Contains(out, "anthropic_api_key: sk-****890") {
		t.Fatalf("secret not masked:\n%s", out)
	}
	if _, err := execCmd("config", "set", "threshold", "1.5", "--config", path); err == nil {
		t.Fatalf("expected invalid threshold to fail")
	}
	if _, err := execCmd("config", "set", "nope", "1", "--config", path); err == nil {
		t.Fatalf("expected unknown key to fail")
	}
}

func TestCLI_FieldsListsCatalog(t *testing.T) {
	isolateHome(t)
	out := runCLI(t, "fields")
	for _, want := range []string{"Hispanic_Pop", "B03001_003E", "Median_Income", "weighted by Total_Households", "USH_share", "derived", "50 provider columns"} {
		if !strings.Contains(out, want) {
			t.Fatalf("fields output missing %q:\n%s", want, out)
		}
	}
}

// fakeACS answers any variable list with one row per state. Unnamed codes
// read 1000; the Hispanic population code carries the per-state value.
func fakeACS(t *testing.T) string {
	t.Helper()
	states := []struct {
		name     string
		hispanic int
	}{{"Texas", 12000000}, {"Vermont", 20000}, {"California", 15000000}, {"Florida", 6000000}}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := strings.Split(r.URL.Query().Get("get"), ",")
		rows := [][]string{append(append([]string{}, vars...), "state")}
		for i, s := range states {
			row := make([]string, 0, len(vars)+1)
			for _, v := range vars {
				switch v {
				case "NAME":
					row = append(row, s.name)
				case "B03001_003E":
					row = append(row, fmt.Sprint(s.hispanic))
				default:
					row = append(row, "1000")
				}
			}
			rows = append(rows, append(row, fmt.Sprintf("%02d", i+1)))
		}
		var b strings.Builder
		b.WriteString("[")
		for i, row := range rows {
			if i > 0 {
				b.WriteString(",\n")
			}
			b.WriteString(`["` + strings.Join(row, `","`) + `"]`)
		}
		b.WriteString("]")
		_, _ = w.Write([]byte(b.String()))
	})

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			t.Skipf("skipping test: cannot open local listener (%v)", err)
		}
		t.Fatalf("listen tcp4: %v", err)
	}
	srv := &http.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "http://" + ln.Addr().String()
}

func TestCLI_RunExportsSelection(t *testing.T) {
	home := isolateHome(t)
	t.Setenv("CENSUS_CENSUS_BASE_URL", fakeACS(t))
	t.Setenv("CENSUS_RETRY_MAX_ATTEMPTS", "1")
	outDir := filepath.Join(home, "out")

	out := runCLI(t, "run", "--no-narrative", "--format", "csv,sqlite", "--output-dir", outDir)
	if !strings.Contains(out, "California") || strings.Contains(out, "Florida") {
		t.Fatalf("unexpected table:\n%s", out)
	}

	csvs, _ := filepath.Glob(filepath.Join(outDir, "hispanic_stats_*.csv"))
	dbs, _ := filepath.Glob(filepath.Join(outDir, "hispanic_stats_*.db"))
	if len(csvs) != 1 || len(dbs) != 1 {
		t.Fatalf("expected one csv and one db, got %v %v", csvs, dbs)
	}
	f, err := os.Open(csvs[0])
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// header, national, California, Texas
	if len(recs) != 4 {
		t.Fatalf("expected 4 csv records, got %d: %v", len(recs), recs)
	}
	if recs[1][0] != "United States" || recs[1][1] != "33,020,000" {
		t.Fatalf("unexpected national row: %v", recs[1])
	}
	if recs[2][0] != "California" || recs[3][0] != "Texas" {
		t.Fatalf("unexpected selection order: %v", recs[1:])
	}
}

func TestCLI_RunJSONNoExport(t *testing.T) {
	home := isolateHome(t)
	t.Setenv("CENSUS_CENSUS_BASE_URL", fakeACS(t))
	t.Chdir(home)

	out := runCLI(t, "run", "--no-narrative", "--no-export", "--json")
	if !strings.Contains(out, `"runId"`) || !strings.Contains(out, `"Cumulative_Hisp_%"`) {
		t.Fatalf("unexpected json output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(home, "output")); !os.IsNotExist(err) {
		t.Fatalf("--no-export should not create the output dir: %v", err)
	}
}
