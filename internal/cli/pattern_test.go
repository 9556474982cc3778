package cli

import (
	"testing"
)

func TestExpandPattern(t *testing.T) {
	availablePaths := []string{
		"/aws/access",
		"/aws/secret",
		"/db/password",
		"/api",
		"/work/aws/console",
	}

	tests := []struct {
		name     string
		pattern  string
		expected []string
		wantErr  bool
	}{
		{
			name:     "exact match",
			pattern:  "/api",
			expected: []string{"/api"},
		},
		{
			name:     "exact match without leading slash",
			pattern:  "db/password",
			expected: []string{"/db/password"},
		},
		{
			name:     "wildcard name",
			pattern:  "/aws/*",
			expected: []string{"/aws/access", "/aws/secret"},
		},
		{
			name:    "wildcard does not cross folders",
			pattern: "/*/console",
			wantErr: true,
		},
		{
			name:     "wildcard folder",
			pattern:  "*/aws/*",
			expected: []string{"/work/aws/console"},
		},
		{
			name:     "question mark",
			pattern:  "/db/pass????",
			expected: []string{"/db/password"},
		},
		{
			name:     "match top level",
			pattern:  "*",
			expected: []string{"/api"},
		},
		{
			name:    "no match glob",
			pattern: "/nonexistent/*",
			wantErr: true,
		},
		{
			name:    "no match exact",
			pattern: "/aws",
			wantErr: true,
		},
		{
			name:    "invalid pattern",
			pattern: "[invalid",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ExpandPattern(tc.pattern, availablePaths)

			if tc.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", result)
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tc.expected) {
				t.Errorf("got %v, want %v", result, tc.expected)
				return
			}

			for i, exp := range tc.expected {
				if result[i] != exp {
					t.Errorf("position %d: got %s, want %s", i, result[i], exp)
				}
			}
		})
	}
}

func TestExpandPatterns(t *testing.T) {
	availablePaths := []string{"/a", "/b", "/c", "/ab", "/bc"}

	tests := []struct {
		name     string
		patterns []string
		expected []string
		wantErr  bool
	}{
		{
			name:     "single pattern",
			patterns: []string{"a"},
			expected: []string{"/a"},
		},
		{
			name:     "multiple patterns",
			patterns: []string{"/a", "b"},
			expected: []string{"/a", "/b"},
		},
		{
			name:     "overlapping patterns",
			patterns: []string{"a*", "ab"},
			expected: []string{"/a", "/ab"},
		},
		{
			name:     "glob pattern",
			patterns: []string{"*b"},
			expected: []string{"/b", "/ab"},
		},
		{
			name:     "one pattern fails",
			patterns: []string{"a", "zzz"},
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ExpandPatterns(tc.patterns, availablePaths)

			if tc.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if len(result) != len(tc.expected) {
				t.Errorf("got %v, want %v", result, tc.expected)
			}
		})
	}
}

func TestMapKeys(t *testing.T) {
	m := map[string]int{"z": 1, "a": 2, "m": 3}
	result := MapKeys(m)

	expected := []string{"a", "m", "z"}
	if len(result) != len(expected) {
		t.Errorf("got %d keys, want %d", len(result), len(expected))
	}

	for i, v := range result {
		if v != expected[i] {
			t.Errorf("position %d: got %s, want %s", i, v, expected[i])
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range tests {
		if got := FormatSize(tc.n); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}
