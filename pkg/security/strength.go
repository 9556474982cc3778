// Package security scores the passwords stored in a vault: strength, reuse,
// age and second-factor coverage.
package security

import "unicode/utf8"

// PasswordStrength is the rating of one stored password.
type PasswordStrength int

const (
	PasswordWeak PasswordStrength = iota
	PasswordFair
	PasswordGood
	PasswordStrong
)

var strengthNames = [...]string{"Weak", "Fair", "Good", "Strong"}

// strengthPoints is each level's share of the 25-point strength component.
var strengthPoints = [...]int{0, 8, 17, 25}

// strengthLengths are the minimum lengths, in characters, of Fair, Good and
// Strong.
var strengthLengths = [...]int{8, 14, 20}

func (s PasswordStrength) String() string {
	if s < 0 || int(s) >= len(strengthNames) {
		return "Unknown"
	}
	return strengthNames[s]
}

// Points returns the strength component points for s.
func (s PasswordStrength) Points() int {
	if s < 0 || int(s) >= len(strengthPoints) {
		return 0
	}
	return strengthPoints[s]
}

// CalculateStrength rates a password by its length in characters. A
// password that is one repeated character or one ascending or descending
// run ("aaaa", "123456") is rated a level lower.
func CalculateStrength(password string) PasswordStrength {
	n := utf8.RuneCountInString(password)
	s := PasswordWeak
	for i, length := range strengthLengths {
		if n >= length {
			s = PasswordStrength(i + 1)
		}
	}
	if s > PasswordWeak && isRun(password) {
		s--
	}
	return s
}

// isRun reports whether every rune of s equals, or is one above or one
// below, the previous one, with the same step throughout.
func isRun(s string) bool {
	var prev, step rune
	for i, r := range []rune(s) {
		switch {
		case i == 1:
			step = r - prev
			if step < -1 || step > 1 {
				return false
			}
		case i > 1 && r-prev != step:
			return false
		}
		prev = r
	}
	return true
}
