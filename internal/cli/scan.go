package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sentinelscan/sentinel/internal/config"
	"github.com/sentinelscan/sentinel/internal/pipeline"
	"github.com/sentinelscan/sentinel/internal/secrets"
)

var scanCmd = &cobra.Command{
	Use:   "scan [paths...]",
	Short: "Scan one or more paths for leaked secrets",
	Long: `Recursively walk the given paths (or --dir if none are given), apply the
discovery filter chain, and run the detection pipeline over every eligible
file. Exits non-zero if --fail-on-findings is set and at least one secret
was found.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	roots := args
	if len(roots) == 0 {
		roots = []string{flagValues.Dir}
	}

	resolved, err := config.Resolve(config.ResolveOptions{
		TargetDir: flagValues.Dir,
		CLIFlags:  config.FlagValuesToMap(flagValues, cmd.Flags()),
	})
	if err != nil {
		return pipeline.NewError("resolving config", err)
	}

	lib, warnings := secrets.LoadLibrary(resolved.Scanner.CustomPatterns)
	for _, w := range warnings {
		cmd.PrintErrln(color.YellowString("warning: %s: %s", w.Path, w.Message))
	}

	scanner := secrets.NewScanner(resolved.Scanner, lib)

	result, err := scanner.Scan(cmd.Context(), roots)
	if err != nil {
		return pipeline.NewError("scan failed", err)
	}

	if err := renderResult(cmd, result, flagValues.Format); err != nil {
		return pipeline.NewError("rendering result", err)
	}

	if flagValues.FailOnFindings && len(result.Matches) > 0 {
		return pipeline.NewFindingsError(fmt.Sprintf("%d secret(s) found", len(result.Matches)))
	}
	return nil
}

func renderResult(cmd *cobra.Command, result *secrets.ScanResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return renderText(cmd, result)
}

func renderText(cmd *cobra.Command, result *secrets.ScanResult) error {
	out := cmd.OutOrStdout()

	if len(result.Matches) == 0 {
		fmt.Fprintln(out, color.GreenString("no secrets found"))
	} else {
		red := color.New(color.FgRed, color.Bold)
		for _, m := range result.Matches {
			fmt.Fprintf(out, "%s:%d:%d: %s %s\n",
				m.FilePath, m.Line, m.ColumnStart,
				red.Sprint(m.PatternID), m.Description)
		}
	}

	fmt.Fprintf(out, "\n%d file(s) scanned, %d match(es), %d filtered by comment, %d filtered by entropy\n",
		result.Stats.FilesScanned, len(result.Matches),
		result.Stats.MatchesFilteredComment, result.Stats.MatchesFilteredEntropy)

	for _, w := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("warning: %s: %s", w.Path, w.Message))
	}

	return nil
}
