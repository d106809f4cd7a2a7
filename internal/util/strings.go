package util

import "strings"

// Truthy reports whether a cell value encodes boolean true.
// Mapping files come from spreadsheets, so the processed flag may arrive as
// "true", "TRUE", "1", "1.0", "yes", "y" or "t". Anything unrecognized is false.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "1.0", "yes", "y":
		return true
	default:
		return false
	}
}

// Blank reports whether a cell value is empty after trimming, or one of the
// textual null markers spreadsheet exports produce.
func Blank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none", "n/a":
		return true
	default:
		return false
	}
}
