package commands

import (
	"encoding/json"
	"fmt"

	"github.com/arden-health/idveil/engine"
	"github.com/arden-health/idveil/hashid"
	"github.com/arden-health/idveil/tabular"
	"github.com/spf13/cobra"
)

// HashCmd hashes identifiers ad hoc, outside a full run.
var HashCmd = &cobra.Command{
	Use:   "hash <identifier>...",
	Short: "Hash identifiers ad hoc, reusing lookup-table hashes",
	Long: `Print the SHA-256 hash of each identifier.

With --lookup, hashes previously issued by a run are reused instead of
recomputed, so the output matches what a training extract contains. An input
that already looks like a hash is passed through unchanged.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hasher := hashid.New()

		if lookupPath, _ := cmd.Flags().GetString("lookup"); lookupPath != "" {
			store := engine.NewLookupStore(tabular.NewStore(), lookupPath, tabular.ReplaceOptions{})
			store.Load(hasher)
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			out := make(map[string]string, len(args))
			for _, id := range args {
				out[id] = hasher.Hash(id)
			}
			encoded, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		}

		for _, id := range args {
			fmt.Printf("%s\t%s\n", id, hasher.Hash(id))
		}
		return nil
	},
}

func init() {
	HashCmd.Flags().String("lookup", "", "Lookup table whose issued hashes take precedence")
}
