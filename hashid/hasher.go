// Package hashid assigns deterministic SHA-256 hashes to identifiers.
package hashid

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashLength is the length of a hex-encoded SHA-256 digest.
const HashLength = 64

// Hasher maps identifier strings to stable SHA-256 hex hashes. The cache
// makes repeated calls idempotent within a process; seeding the cache from a
// persisted lookup table extends that guarantee across processes.
//
// Hasher is not safe for concurrent use. The engine runs a single logical
// worker, so assignment order stays deterministic.
type Hasher struct {
	cache map[string]string
}

// New creates a Hasher with an empty cache.
func New() *Hasher {
	return &Hasher{cache: make(map[string]string)}
}

// Hash returns the hash for an identifier, computing and caching it on first
// use. An input that already looks like a hash is returned unchanged and
// recorded as its own hash, so a re-run over already-anonymized data never
// double-hashes.
func (h *Hasher) Hash(id string) string {
	if cached, ok := h.cache[id]; ok {
		return cached
	}

	var hashed string
	if IsHash(id) {
		hashed = id
	} else {
		sum := sha256.Sum256([]byte(id))
		hashed = hex.EncodeToString(sum[:])
	}

	h.cache[id] = hashed
	return hashed
}

// Seed records a previously issued hash without computing anything, keeping
// hashes stable across runs (the lookup table wins over fresh computation).
func (h *Hasher) Seed(original, hashed string) {
	if original == "" || hashed == "" {
		return
	}
	h.cache[original] = hashed
}

// Cached returns the hash previously issued for an identifier, if any.
func (h *Hasher) Cached(id string) (string, bool) {
	hashed, ok := h.cache[id]
	return hashed, ok
}

// Snapshot returns a copy of the cache for lookup-table rebuilds.
func (h *Hasher) Snapshot() map[string]string {
	out := make(map[string]string, len(h.cache))
	for k, v := range h.cache {
		out[k] = v
	}
	return out
}

// IsHash reports whether a value matches the hash format: exactly 64
// lowercase hex characters.
func IsHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
