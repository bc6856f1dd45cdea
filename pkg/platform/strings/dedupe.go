// Package strings holds list helpers for query parameters and form input.
package strings

import (
	"strings"
)

// SplitList parses a comma-separated or repeated query value into a
// deduplicated, lowercased list with blanks dropped.
//
//	SplitList([]string{"Active, revoked", "active"})
//	// []string{"active", "revoked"}
func SplitList(raw []string) []string {
	var parts []string
	for _, r := range raw {
		parts = append(parts, strings.Split(r, ",")...)
	}
	return DedupeLower(parts)
}

// DedupeLower trims and lowercases each value, then drops blanks and
// repeats. First-seen order wins.
func DedupeLower(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
