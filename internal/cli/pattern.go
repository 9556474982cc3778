// Package cli provides shared utilities for vaultctl commands.
package cli

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// ExpandPattern expands a glob pattern against absolute entry paths.
// If the pattern contains glob characters (*?[), it performs glob matching.
// Otherwise, it performs exact matching. A pattern without a leading slash
// is taken relative to the root.
func ExpandPattern(pattern string, availablePaths []string) ([]string, error) {
	// Validate pattern syntax
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}

	if !strings.ContainsAny(pattern, "*?[") {
		for _, p := range availablePaths {
			if p == pattern {
				return []string{pattern}, nil
			}
		}
		return nil, fmt.Errorf("entry '%s' not found", pattern)
	}

	var matches []string
	for _, p := range availablePaths {
		matched, err := path.Match(pattern, p)
		if err != nil {
			return nil, err
		}
		if matched {
			matches = append(matches, p)
		}
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("no entries match pattern '%s'", pattern)
	}

	return matches, nil
}

// ExpandPatterns expands multiple glob patterns against available paths.
// Returns unique matching paths preserving order of first match.
func ExpandPatterns(patterns []string, availablePaths []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		matches, err := ExpandPattern(pattern, availablePaths)
		if err != nil {
			return nil, err
		}
		for _, p := range matches {
			if !seen[p] {
				seen[p] = true
				result = append(result, p)
			}
		}
	}

	return result, nil
}

// MapKeys extracts keys from a map and returns them sorted.
func MapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatSize renders a byte count for listings.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
