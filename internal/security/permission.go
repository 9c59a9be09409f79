package security

import "strings"

// HasPermission reports whether held grants required, following the
// gateway's wildcard-prefix matching rules:
//
//  1. a literal "*" entry in held grants everything.
//  2. an exact match between an entry in held and required grants it.
//  3. an entry in held ending in ":*" grants required if required shares
//     that entry's prefix up to and including the colon.
func HasPermission(held []string, required string) bool {
	for _, grant := range held {
		if grant == "*" {
			return true
		}
		if grant == required {
			return true
		}
		if strings.HasSuffix(grant, ":*") {
			prefix := strings.TrimSuffix(grant, "*")
			if strings.HasPrefix(required, prefix) {
				return true
			}
		}
	}
	return false
}
