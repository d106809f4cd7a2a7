package engine

import "strings"

// ConsentStatus is the per-person decision controlling whether an identifier
// may be replaced by a hash.
type ConsentStatus string

const (
	// ConsentGranted allows hashing into the shared mapping
	ConsentGranted ConsentStatus = "granted"

	// ConsentRevoked tags identifiers whose consent was withdrawn
	ConsentRevoked ConsentStatus = "revoked"

	// ConsentNone is the default for missing or unrecognized values
	ConsentNone ConsentStatus = "none"

	// ConsentIDNotFound tags identifiers seen in source data with no
	// relationship-table entry at all
	ConsentIDNotFound ConsentStatus = "ID not found"
)

// NormalizeConsent folds a raw cell value into the consent enum.
// Unrecognized and missing values normalize to none.
func NormalizeConsent(s string) ConsentStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "granted":
		return ConsentGranted
	case "revoked":
		return ConsentRevoked
	case "id not found":
		return ConsentIDNotFound
	default:
		return ConsentNone
	}
}
