package cli

import (
	"strings"
	"testing"
)

func TestGeneratorOptionsValidate(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		count       int
		exclude     string
		expectError bool
	}{
		{"valid defaults", DefaultPasswordLength, 1, "", false},
		{"minimum length", MinPasswordLength, 1, "", false},
		{"maximum length", MaxPasswordLength, 1, "", false},
		{"length too short", MinPasswordLength - 1, 1, "", true},
		{"length too long", MaxPasswordLength + 1, 1, "", true},
		{"count zero", 24, 0, "", true},
		{"count too high", 24, MaxPasswordCount + 1, "", true},
		{"maximum count", 24, MaxPasswordCount, "", false},
		{"exclude too long", 24, 1, strings.Repeat("a", maxExcludeLength+1), true},
		{"valid exclude", 24, 1, "0O1lI", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := GeneratorOptions{Length: tt.length, Count: tt.count, Exclude: tt.exclude}
			err := o.Validate()
			if tt.expectError && err == nil {
				t.Errorf("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCharset(t *testing.T) {
	tests := []struct {
		name        string
		opts        GeneratorOptions
		expectError bool
		contains    string
		notContains string
	}{
		{
			name:     "all character types",
			contains: "aA0!",
		},
		{
			name:        "no symbols",
			opts:        GeneratorOptions{NoSymbols: true},
			contains:    "aA0",
			notContains: "!@#",
		},
		{
			name:        "no numbers",
			opts:        GeneratorOptions{NoNumbers: true},
			contains:    "aA!",
			notContains: "0123",
		},
		{
			name:        "no uppercase",
			opts:        GeneratorOptions{NoUppercase: true},
			contains:    "a0!",
			notContains: "ABC",
		},
		{
			name:        "no lowercase",
			opts:        GeneratorOptions{NoLowercase: true},
			contains:    "A0!",
			notContains: "abc",
		},
		{
			name:        "exclude ambiguous",
			opts:        GeneratorOptions{Exclude: "0O1lI"},
			contains:    "a2!",
			notContains: "0O1lI",
		},
		{
			name:        "empty charset",
			opts:        GeneratorOptions{NoLowercase: true, NoUppercase: true, NoNumbers: true, NoSymbols: true},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charset, err := tt.opts.Charset()

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for _, c := range tt.contains {
				if !strings.ContainsRune(charset, c) {
					t.Errorf("charset should contain '%c'", c)
				}
			}
			for _, c := range tt.notContains {
				if strings.ContainsRune(charset, c) {
					t.Errorf("charset should not contain '%c'", c)
				}
			}
		})
	}
}

func TestRemoveChars(t *testing.T) {
	tests := []struct {
		input    string
		exclude  string
		expected string
	}{
		{"abcdef", "c", "abdef"},
		{"abcdef", "ace", "bdf"},
		{"abcdef", "xyz", "abcdef"},
		{"abcdef", "", "abcdef"},
		{"aaa", "a", ""},
	}

	for _, tt := range tests {
		if result := removeChars(tt.input, tt.exclude); result != tt.expected {
			t.Errorf("removeChars(%q, %q) = %q, want %q", tt.input, tt.exclude, result, tt.expected)
		}
	}
}

func TestGeneratePasswords(t *testing.T) {
	o := GeneratorOptions{Length: 32, Count: 50, NoSymbols: true}
	passwords, err := GeneratePasswords(o)
	if err != nil {
		t.Fatalf("GeneratePasswords() error = %v", err)
	}
	if len(passwords) != 50 {
		t.Fatalf("got %d passwords, want 50", len(passwords))
	}

	charset, _ := o.Charset()
	seen := make(map[string]bool)
	for _, p := range passwords {
		if len(p) != 32 {
			t.Errorf("password length = %d, want 32", len(p))
		}
		for _, c := range p {
			if !strings.ContainsRune(charset, c) {
				t.Errorf("password contains unexpected character: %c", c)
			}
		}
		if seen[p] {
			t.Errorf("duplicate password generated: %s", p)
		}
		seen[p] = true
	}

	if _, err := GeneratePasswords(GeneratorOptions{Length: 4, Count: 1}); err == nil {
		t.Error("GeneratePasswords() should reject short lengths")
	}
}
