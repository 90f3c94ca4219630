// Package strings normalizes string lists taken from tokens and query strings.
package strings

import "strings"

// NormalizeList trims and lowercases values, drops empty ones and keeps the
// first occurrence of each. Comma separated entries are split first.
func NormalizeList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, raw := range values {
		for part := range strings.SplitSeq(raw, ",") {
			v := strings.ToLower(strings.TrimSpace(part))
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
