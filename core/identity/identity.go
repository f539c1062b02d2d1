// Package identity canonicalizes external subscriber identifiers into the
// stable keys used throughout the registry, history, and prompt stores.
package identity

import "strings"

// Normalize reduces an external identifier to its digits. Formatting
// characters, country-code prefixes like "+", and transport suffixes such as
// "@c.us" are all discarded, so "+1 (555) 123-4567" and "15551234567@c.us"
// normalize to the same key. An empty result means the identifier carries no
// digits and is unusable as a registry key.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
