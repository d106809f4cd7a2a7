package commands

import (
	"encoding/json"
	"fmt"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/tabular"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// lookupEntry is one lookup-table row for display.
type lookupEntry struct {
	PersonID      string `json:"person_id,omitempty"`
	OriginalID    string `json:"original_id"`
	HashedID      string `json:"hashed_id,omitempty"`
	ConsentStatus string `json:"consent_status"`
	FromMapping   string `json:"from_mapping"`
	IDType        string `json:"id_type,omitempty"`
	SourceContext string `json:"source_context,omitempty"`
}

// LookupCmd inspects a persisted lookup table.
var LookupCmd = &cobra.Command{
	Use:   "lookup <lookup-file> [original-id]",
	Short: "Inspect a persisted lookup table",
	Long: `Summarize a lookup table, or show one identifier's entry.

Without an identifier argument, prints row counts per consent status. With
one, prints that identifier's person, hash, and consent outcome.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := tabular.NewStore().Read(args[0])
		if err != nil {
			return errors.Wrapf(err, "could not read lookup table %s", args[0])
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")

		if len(args) == 2 {
			return showEntry(t, args[1], jsonOutput)
		}
		return showSummary(t, jsonOutput)
	},
}

func showEntry(t *tabular.Table, originalID string, jsonOutput bool) error {
	for i := range t.Rows {
		v, err := t.Cell(i, "original_id")
		if err != nil || v != originalID {
			continue
		}
		entry := lookupEntry{
			PersonID:      cellOrEmpty(t, i, "person_id"),
			OriginalID:    v,
			HashedID:      cellOrEmpty(t, i, "hashed_id"),
			ConsentStatus: cellOrEmpty(t, i, "consent_status"),
			FromMapping:   cellOrEmpty(t, i, "from_mapping"),
			IDType:        cellOrEmpty(t, i, "id_type"),
			SourceContext: cellOrEmpty(t, i, "source_context"),
		}
		if jsonOutput {
			encoded, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(encoded))
			return nil
		}
		pterm.Printf("%s %s\n", pterm.LightCyan("original_id:"), entry.OriginalID)
		if entry.PersonID != "" {
			pterm.Printf("%s %s\n", pterm.LightCyan("person_id:"), entry.PersonID)
		}
		if entry.HashedID != "" {
			pterm.Printf("%s %s\n", pterm.LightCyan("hashed_id:"), entry.HashedID)
		}
		pterm.Printf("%s %s\n", pterm.LightCyan("consent_status:"), entry.ConsentStatus)
		return nil
	}
	return errors.NewNotFoundError("identifier %q not found in lookup table", originalID)
}

func showSummary(t *tabular.Table, jsonOutput bool) error {
	counts := make(map[string]int)
	hashed := 0
	for i := range t.Rows {
		status := cellOrEmpty(t, i, "consent_status")
		counts[status]++
		if cellOrEmpty(t, i, "hashed_id") != "" {
			hashed++
		}
	}

	if jsonOutput {
		encoded, err := json.MarshalIndent(map[string]interface{}{
			"rows":      len(t.Rows),
			"hashed":    hashed,
			"by_status": counts,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	}

	pterm.Printf("%s %d rows, %d hashed\n", pterm.LightCyan("Lookup table:"), len(t.Rows), hashed)
	for status, n := range counts {
		pterm.Printf("  %s: %d\n", status, n)
	}
	return nil
}

func cellOrEmpty(t *tabular.Table, row int, column string) string {
	v, err := t.Cell(row, column)
	if err != nil {
		return ""
	}
	return v
}
