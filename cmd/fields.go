package cmd

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/KaramelBytes/census-cli/internal/census"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fetched and derived census fields",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := census.DefaultCatalog()
		out := cmd.OutOrStdout()
		width := runewidth.StringWidth(census.NameField)
		for _, f := range census.Fields() {
			if w := runewidth.StringWidth(f.String()); w > width {
				width = w
			}
		}
		fmt.Fprintf(out, "%s  %-10s %s\n", runewidth.FillRight(census.NameField, width), census.KindIdentifier, cat.NameCode)
		for _, f := range census.Fields() {
			kind, source := census.KindDerived, "-"
			if s, ok := cat.Spec(f); ok {
				kind, source = s.Kind, strings.Join(s.SourceCodes, ",")
				if s.Kind == census.KindRate {
					source += " (weighted by " + s.Weight.String() + ")"
				}
			}
			fmt.Fprintf(out, "%s  %-10s %s\n", runewidth.FillRight(f.String(), width), kind, source)
		}
		fmt.Fprintf(out, "\n%d provider columns per region\n", len(cat.SourceCodes())+1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd)
}
