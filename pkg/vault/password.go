package vault

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Master password length limits, in characters.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 256

	// passphraseWords is the word count from which a long password is
	// treated as a passphrase and needs no character mix.
	passphraseWords = 4
)

// PasswordStrength is the estimated strength of a master password.
type PasswordStrength int

const (
	PasswordWeak PasswordStrength = iota
	PasswordFair
	PasswordGood
	PasswordStrong
)

func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "weak"
	case PasswordFair:
		return "fair"
	case PasswordGood:
		return "good"
	case PasswordStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// PasswordValidationResult is returned by ValidateMasterPassword.
type PasswordValidationResult struct {
	Valid    bool             // length limits met
	Strength PasswordStrength // estimate
	Warnings []string         // advice, never errors
}

// ValidateMasterPassword checks a new vault password. Only the length limits
// make it invalid; everything else produces warnings.
func ValidateMasterPassword(password string) *PasswordValidationResult {
	n := utf8.RuneCountInString(password)
	switch {
	case n < MinPasswordLength:
		return &PasswordValidationResult{
			Strength: PasswordWeak,
			Warnings: []string{fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)},
		}
	case n > MaxPasswordLength:
		return &PasswordValidationResult{
			Strength: PasswordWeak,
			Warnings: []string{fmt.Sprintf("Password must be at most %d characters", MaxPasswordLength)},
		}
	}

	classes := characterClasses(password)
	passphrase := len(strings.Fields(password)) >= passphraseWords

	result := &PasswordValidationResult{Valid: true}
	switch {
	case n >= 20, passphrase && n >= 16, classes >= 3 && n >= 16:
		result.Strength = PasswordStrong
	case classes >= 2 && n >= 12:
		result.Strength = PasswordGood
	case classes >= 2 || n >= 12:
		result.Strength = PasswordFair
	default:
		result.Strength = PasswordWeak
	}

	if classes < 2 && !passphrase {
		result.Warnings = append(result.Warnings,
			"Mix letters, digits and symbols, or use a passphrase of four or more words")
	}
	if n < 12 {
		result.Warnings = append(result.Warnings,
			"Longer passwords (12+ characters) are harder to guess")
	}
	if strings.TrimSpace(password) != password {
		result.Warnings = append(result.Warnings,
			"Leading or trailing spaces are easy to leave out when unlocking")
	}
	return result
}

// characterClasses counts which of upper case, lower case, digits and
// other printable characters appear in s.
func characterClasses(s string) int {
	var upper, lower, digit, other bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			other = true
		}
	}
	n := 0
	for _, ok := range []bool{upper, lower, digit, other} {
		if ok {
			n++
		}
	}
	return n
}
