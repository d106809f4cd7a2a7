package engine

import (
	"strings"

	"github.com/arden-health/idveil/errors"
	"github.com/arden-health/idveil/internal/util"
	"github.com/arden-health/idveil/tabular"
)

// Mapping-configuration column names.
const (
	colMappingFile = "mapping_file"
	colMappingID   = "mapping_id"
	colSourceFile  = "source_file"
	colSourceID    = "source_id"
	colProcessed   = "processed"
)

// requiredMappingColumns must all be present in the mapping configuration.
var requiredMappingColumns = []string{
	colMappingFile, colMappingID, colSourceFile, colSourceID,
}

// MappingRow is one row of the mapping configuration: which source file to
// rewrite, which of its columns carries identifiers, and which relationship
// table correlates them.
type MappingRow struct {
	Index         int // row position in the configuration table
	MappingFile   string
	MappingID     string
	SourceFile    string
	SourceID      string
	IDType        string
	SourceContext string
	Processed     bool
}

// parseMappingTable validates the mapping configuration and decodes its rows.
// A missing processed column is appended (all false) so the caller can persist
// per-row progress; truthy string/numeric encodings are tolerated.
func parseMappingTable(t *tabular.Table) ([]MappingRow, error) {
	var missing []string
	for _, c := range requiredMappingColumns {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingColumnError(
			"mapping file is missing required columns: %s", strings.Join(missing, ", "))
	}

	if !t.HasColumn(colProcessed) {
		t.AppendColumn(colProcessed, nil)
		for i := range t.Rows {
			t.SetCell(i, colProcessed, "false")
		}
	}

	rows := make([]MappingRow, 0, len(t.Rows))
	for i := range t.Rows {
		row := MappingRow{
			Index:       i,
			MappingFile: cell(t, i, colMappingFile),
			MappingID:   cell(t, i, colMappingID),
			SourceFile:  cell(t, i, colSourceFile),
			SourceID:    cell(t, i, colSourceID),
			Processed:   util.Truthy(cell(t, i, colProcessed)),
		}
		if t.HasColumn(colIDType) {
			row.IDType = strings.TrimSpace(cell(t, i, colIDType))
		}
		if t.HasColumn(colSourceContext) {
			row.SourceContext = strings.TrimSpace(cell(t, i, colSourceContext))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// mappingIDColumns returns the distinct mapping_id values in row order; these
// name the legacy relationship table's identifier columns.
func mappingIDColumns(rows []MappingRow) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range rows {
		id := strings.TrimSpace(r.MappingID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cols = append(cols, id)
	}
	return cols
}

// cell reads a named cell, returning empty on any shape mismatch. The table
// was validated up front, so errors here only mean a ragged optional column.
func cell(t *tabular.Table, row int, column string) string {
	v, err := t.Cell(row, column)
	if err != nil {
		return ""
	}
	return v
}
