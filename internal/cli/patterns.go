package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sentinelscan/sentinel/internal/secrets"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List the loaded secret pattern library",
	Long:  "Print every pattern in the embedded base library plus any custom patterns from config.",
	RunE:  runPatterns,
}

func init() {
	patternsCmd.Flags().Bool("json", false, "output pattern list as JSON")
	rootCmd.AddCommand(patternsCmd)
}

func runPatterns(cmd *cobra.Command, args []string) error {
	lib, warnings := secrets.LoadLibrary(nil)
	for _, w := range warnings {
		cmd.PrintErrln("warning:", w.Path, w.Message)
	}

	jsonFlag, _ := cmd.Flags().GetBool("json")
	if jsonFlag {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(lib.Patterns())
	}

	out := cmd.OutOrStdout()
	for _, p := range lib.Patterns() {
		entropyNote := ""
		if p.Entropy != nil {
			entropyNote = " [entropy-gated]"
		}
		fmt.Fprintf(out, "%-28s %-12s priority=%-2d%s\n  %s\n", p.ID, p.Class, p.Priority, entropyNote, p.Description)
	}
	return nil
}
