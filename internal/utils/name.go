// Package utils provides small validation helpers shared across the core.
package utils

// MaxResourceNameLength bounds folder and CLI token names so they stay
// readable in the terminal flash / dashboard banner surfaces.
const MaxResourceNameLength = 64

// IsValidResourceName reports whether name is non-empty and within
// MaxResourceNameLength. Folder and CLI token names are checked against it.
func IsValidResourceName(name string) bool {
	return len(name) > 0 && len(name) <= MaxResourceNameLength
}
