package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DuplicateGroup represents a group of credentials sharing the same password.
type DuplicateGroup struct {
	// Keys contains the credentials with the shared password.
	Keys []string `json:"keys,omitempty"`
	// Count is the number of duplicates.
	Count int `json:"count"`
}

// FindDuplicates groups credentials whose normalized passwords are equal.
// Passwords are compared through HMAC-SHA256 under a key generated for this
// calculator and never persisted, so the grouping leaks nothing offline.
// Groups are sorted by count, most duplicated first.
func (c *Calculator) FindDuplicates(creds []Credential, includeKeys bool, limit int) ([]DuplicateGroup, error) {
	hashGroups := make(map[string][]string)
	var order []string
	for _, cred := range creds {
		value := normalizeValue(cred.Password)
		if value == "" {
			continue
		}
		hash, err := c.valueHash(value)
		if err != nil {
			return nil, err
		}
		if _, ok := hashGroups[hash]; !ok {
			order = append(order, hash)
		}
		hashGroups[hash] = append(hashGroups[hash], cred.Key)
	}

	var groups []DuplicateGroup
	for _, hash := range order {
		keys := hashGroups[hash]
		if len(keys) <= 1 {
			continue
		}
		group := DuplicateGroup{Count: len(keys)}
		if includeKeys {
			group.Keys = append([]string(nil), keys...)
			sort.Strings(group.Keys)
		}
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

func (c *Calculator) valueHash(value string) (string, error) {
	if c.hmacKey == nil {
		c.hmacKey = make([]byte, 32)
		if _, err := rand.Read(c.hmacKey); err != nil {
			return "", fmt.Errorf("security: failed to generate comparison key: %w", err)
		}
	}
	h := hmac.New(sha256.New, c.hmacKey)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// normalizeValue trims surrounding whitespace and applies Unicode NFC.
func normalizeValue(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

// FindWeakPasswords returns an issue per credential rated PasswordWeak.
func (c *Calculator) FindWeakPasswords(creds []Credential, includeKeys bool, limit int) []SecurityIssue {
	var issues []SecurityIssue
	for _, cred := range creds {
		if cred.Password == "" || CalculateStrength(cred.Password) != PasswordWeak {
			continue
		}
		issue := SecurityIssue{
			Type:        IssueWeakPassword,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("Password has insufficient strength (%s)", formatLength(len([]rune(cred.Password)))),
			Suggestion:  "Use a longer password (14+ characters)",
		}
		if includeKeys {
			issue.Key = cred.Key
		}
		issues = append(issues, issue)
		if limit > 0 && len(issues) == limit {
			break
		}
	}
	return issues
}

func formatLength(n int) string {
	if n == 1 {
		return "1 character"
	}
	return fmt.Sprintf("%d characters", n)
}
