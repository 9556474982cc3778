package cli

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os/exec"
	"runtime"
	"strings"
)

// Character set constants
const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	MinPasswordLength     = 8
	MaxPasswordLength     = 256
	DefaultPasswordLength = 24
	MaxPasswordCount      = 100
	maxExcludeLength      = 256
)

// GeneratorOptions selects the character classes of generated passwords.
type GeneratorOptions struct {
	Length      int
	Count       int
	NoSymbols   bool
	NoNumbers   bool
	NoUppercase bool
	NoLowercase bool
	Exclude     string
}

// DefaultGeneratorOptions returns one 24-character password from all classes.
func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{Length: DefaultPasswordLength, Count: 1}
}

// Validate checks length, count and exclude bounds.
func (o GeneratorOptions) Validate() error {
	if o.Length < MinPasswordLength {
		return fmt.Errorf("password length must be at least %d characters", MinPasswordLength)
	}
	if o.Length > MaxPasswordLength {
		return fmt.Errorf("password length must be at most %d characters", MaxPasswordLength)
	}
	if o.Count < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if o.Count > MaxPasswordCount {
		return fmt.Errorf("count must be at most %d", MaxPasswordCount)
	}
	if len(o.Exclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

// Charset builds the character set based on the options
func (o GeneratorOptions) Charset() (string, error) {
	var charset strings.Builder

	if !o.NoLowercase {
		charset.WriteString(charsetLowercase)
	}
	if !o.NoUppercase {
		charset.WriteString(charsetUppercase)
	}
	if !o.NoNumbers {
		charset.WriteString(charsetDigits)
	}
	if !o.NoSymbols {
		charset.WriteString(charsetSymbols)
	}

	result := charset.String()
	if o.Exclude != "" {
		result = removeChars(result, o.Exclude)
	}

	if result == "" {
		return "", fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}
	return result, nil
}

// GeneratePasswords returns o.Count passwords.
func GeneratePasswords(o GeneratorOptions) ([]string, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	charset, err := o.Charset()
	if err != nil {
		return nil, err
	}
	passwords := make([]string, o.Count)
	for i := range passwords {
		if passwords[i], err = generatePassword(charset, o.Length); err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
	}
	return passwords, nil
}

// removeChars removes specified characters from a string
func removeChars(s, chars string) string {
	excludeSet := make(map[rune]bool)
	for _, c := range chars {
		excludeSet[c] = true
	}

	var result strings.Builder
	for _, c := range s {
		if !excludeSet[c] {
			result.WriteRune(c)
		}
	}
	return result.String()
}

// generatePassword generates a cryptographically secure random password
func generatePassword(charset string, length int) (string, error) {
	charsetLen := big.NewInt(int64(len(charset)))
	password := make([]byte, length)

	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		password[i] = charset[idx.Int64()]
	}

	return string(password), nil
}

// CopyToClipboard copies text to the system clipboard
func CopyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		// Try xclip first, then xsel
		if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else if _, err := exec.LookPath("xsel"); err == nil {
			cmd = exec.Command("xsel", "--clipboard", "--input")
		} else {
			return fmt.Errorf("clipboard tool not found: install xclip or xsel")
		}
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}

	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}
