// Package strings holds list helpers for query parameters and environment
// variables.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and keeps the first occurrence of every
// non-empty result, in input order. Comparison is case sensitive.
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// SplitList accepts both "a,b" and repeated values ("a", "b") and returns the
// combined list through DedupeAndTrim.
func SplitList(values ...string) []string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strings.Split(v, ",")...)
	}
	return DedupeAndTrim(parts)
}
