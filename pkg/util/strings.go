package util

import "strings"

// SplitNonEmpty splits s on sep, trimming blanks and dropping empty parts.
func SplitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
