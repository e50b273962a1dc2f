package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/census-cli/internal/ai"
	"github.com/KaramelBytes/census-cli/internal/census"
	"github.com/KaramelBytes/census-cli/internal/narrative"
	"github.com/KaramelBytes/census-cli/internal/report"
	"github.com/KaramelBytes/census-cli/internal/utils"
)

var (
	runOutputDir   string
	runFormats     []string
	runNoExport    bool
	runNoNarrative bool
	runJSON        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, rank and narrate the census data once, then export it",
	Example: `  census run
  census run --format csv,xlsx,sqlite --output-dir ./out
  census run --no-narrative --no-export --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		a, err := newApp(c, !runNoNarrative)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		entry, err := a.pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("census run: %w", err)
		}
		entry.CreatedAt = time.Now()
		out := cmd.OutOrStdout()

		if runJSON {
			b, err := utils.PrettyJSON(entry)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		} else {
			fmt.Fprint(out, report.Table(entry.Dataset))
			if entry.Narrative != "" {
				fmt.Fprintln(out)
				if narrative.IsPlaceholder(entry.Narrative) {
					fmt.Fprintf(out, "⚠ %s\n", entry.Narrative)
				} else {
					fmt.Fprintln(out, entry.Narrative)
					printCost(cmd, a.model, c.SummaryMaxRows, entry.Dataset, entry.Narrative)
				}
			}
		}

		if runNoExport {
			return nil
		}
		dir := c.OutputDir
		if cmd.Flags().Changed("output-dir") {
			dir = runOutputDir
		}
		formats := c.ExportFormats
		if cmd.Flags().Changed("format") {
			formats = runFormats
		}
		paths, err := report.Export(ctx, dir, formats, entry.Dataset, entry.Narrative, entry.CreatedAt)
		for _, p := range paths {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", p)
		}
		return err
	},
}

// printCost estimates the narrative's spend from prompt and output token
// counts. Unknown models print nothing.
func printCost(cmd *cobra.Command, model string, maxRows int, ds census.Dataset, text string) {
	prompt, err := narrative.BuildPrompt(narrative.SummaryRows(ds, maxRows))
	if err != nil {
		return
	}
	in, out := utils.CountTokens(prompt), utils.CountTokens(text)
	if cost, ok := ai.EstimateCostUSD(model, in, out); ok {
		fmt.Fprintf(cmd.ErrOrStderr(), "Estimated cost: ~$%.4f (model=%s, prompt≈%d, output≈%d tokens)\n", cost, model, in, out)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "directory for exported files (overrides config)")
	runCmd.Flags().StringSliceVar(&runFormats, "format", nil, "export formats: csv, xlsx, sqlite, md, json (overrides config)")
	runCmd.Flags().BoolVar(&runNoExport, "no-export", false, "do not write export files")
	runCmd.Flags().BoolVar(&runNoNarrative, "no-narrative", false, "skip the language model write-up")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON instead of a table")
}
