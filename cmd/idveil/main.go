package main

import (
	"fmt"
	"os"

	"github.com/arden-health/idveil/cmd/idveil/commands"
	"github.com/arden-health/idveil/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "idveil",
	Short: "idveil - consent-aware identifier anonymization",
	Long: `idveil - consent-aware anonymization of identifiers in tabular data.

idveil rewrites the source files named by a mapping configuration: each file
gains a consent_status column, and a training extract with SHA-256 hashed
identifiers is written beside it. Hashes are kept stable across runs through
a persistent lookup table, and interrupted runs resume where they left off.

Available commands:
  run     - Anonymize the files listed in a mapping configuration
  hash    - Hash identifiers ad hoc, reusing lookup-table hashes
  lookup  - Inspect a persisted lookup table
  version - Show version information

Examples:
  idveil run mapping.csv             # Process every unprocessed row
  idveil hash MRN-12345              # Print an identifier's hash
  idveil lookup id_lookup_table.csv  # Summarize consent outcomes`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if err := logger.Initialize(jsonOutput); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json", false, "Emit structured JSON instead of terminal output")

	rootCmd.AddCommand(commands.RunCmd)
	rootCmd.AddCommand(commands.HashCmd)
	rootCmd.AddCommand(commands.LookupCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Cleanup()
		os.Exit(1)
	}
}
