// Package domain id.go contains functions to generate and validate record IDs
package domain

import "github.com/google/uuid"

// NewID generates a new random identifier for recipes and image records.
// IDs are UUIDv4 strings, matching the format of every historical export.
func NewID() string { return uuid.NewString() }

// ValidID reports whether s is usable as a record identifier. Any
// non-empty string without control characters is accepted: imports must
// keep whatever ids the backup file carried, and early revisions did not
// constrain the format.
func ValidID(s string) bool {
	if s == "" || len(s) > 128 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return false
		}
	}
	return true
}
