package security

import (
	"fmt"
	"time"
)

// SecurityScore represents the overall security assessment of a vault.
type SecurityScore struct {
	// Overall is the total score (0-100).
	Overall int `json:"overall"`
	// Components breaks down the score into categories.
	Components ScoreComponents `json:"components"`
	// Issues contains the detected security issues.
	Issues []SecurityIssue `json:"issues"`
	// Suggestions provides actionable recommendations.
	Suggestions []string `json:"suggestions"`
	// Limited indicates issues were dropped by the calculator's Limits.
	Limited bool `json:"limited"`
}

// ScoreComponents breaks down the security score into categories.
// Each component contributes up to 25 points (total: 100).
type ScoreComponents struct {
	// StrengthScore is based on average password strength (0-25).
	StrengthScore int `json:"strength"`
	// UniquenessScore is based on percentage of unique passwords (0-25).
	UniquenessScore int `json:"uniqueness"`
	// FreshnessScore is based on percentage of passwords changed within MaxAge (0-25).
	FreshnessScore int `json:"freshness"`
	// CoverageScore is based on percentage of logins with a TOTP secret (0-25).
	CoverageScore int `json:"coverage"`
}

// IssueType identifies the type of security issue.
type IssueType string

const (
	// IssueWeakPassword indicates a password with insufficient strength.
	IssueWeakPassword IssueType = "weak"
	// IssueDuplicatePassword indicates passwords reused across logins.
	IssueDuplicatePassword IssueType = "duplicate"
	// IssueStalePassword indicates a password unchanged for longer than MaxAge.
	IssueStalePassword IssueType = "stale"
)

// Severity indicates the urgency of a security issue.
type Severity string

const (
	// SeverityCritical requires immediate attention.
	SeverityCritical Severity = "critical"
	// SeverityWarning should be addressed soon.
	SeverityWarning Severity = "warning"
	// SeverityInfo is informational only.
	SeverityInfo Severity = "info"
)

// SecurityIssue represents a detected security problem.
type SecurityIssue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	// Key is the affected credential (empty unless keys are included).
	Key string `json:"key,omitempty"`
	// Keys is used for duplicate issues (multiple credentials).
	Keys        []string `json:"keys,omitempty"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
}

// Calculator computes security scores over a set of credentials.
type Calculator struct {
	limits  Limits
	maxAge  time.Duration
	now     func() time.Time
	hmacKey []byte // session-local key for duplicate detection
}

// NewCalculator creates a calculator that caps listed issues by limits.
func NewCalculator(limits Limits) *Calculator {
	return &Calculator{
		limits: limits,
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
}

// WithMaxAge sets how long a password may stay unchanged before it is stale.
func (c *Calculator) WithMaxAge(d time.Duration) *Calculator {
	c.maxAge = d
	return c
}

// WithClock sets the time source used for staleness.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c.now = now
	return c
}

// CalculateScore computes the full security score for creds. With
// includeKeys unset, issues do not name the credentials they concern.
func (c *Calculator) CalculateScore(creds []Credential, includeKeys bool) (*SecurityScore, error) {
	var withPassword []Credential
	for _, cred := range creds {
		if cred.Password != "" {
			withPassword = append(withPassword, cred)
		}
	}

	// Nothing to assess: perfect score
	if len(withPassword) == 0 {
		return &SecurityScore{
			Overall: 100,
			Components: ScoreComponents{
				StrengthScore:   25,
				UniquenessScore: 25,
				FreshnessScore:  25,
				CoverageScore:   25,
			},
			Issues:      []SecurityIssue{},
			Suggestions: []string{},
		}, nil
	}

	strengthScore, weakIssues := c.calculateStrengthScore(withPassword, includeKeys)
	uniquenessScore, dupIssues, err := c.calculateUniquenessScore(withPassword, includeKeys)
	if err != nil {
		return nil, err
	}
	freshnessScore, staleIssues := c.calculateFreshnessScore(withPassword, includeKeys)
	coverageScore := calculateCoverageScore(withPassword)

	allIssues := make([]SecurityIssue, 0, len(weakIssues)+len(dupIssues)+len(staleIssues))
	allIssues = append(allIssues, weakIssues...)
	allIssues = append(allIssues, dupIssues...)
	allIssues = append(allIssues, staleIssues...)

	limited := false
	if c.limits.IsLimited() {
		allIssues, limited = c.limits.apply(allIssues)
	}

	return &SecurityScore{
		Overall: strengthScore + uniquenessScore + freshnessScore + coverageScore,
		Components: ScoreComponents{
			StrengthScore:   strengthScore,
			UniquenessScore: uniquenessScore,
			FreshnessScore:  freshnessScore,
			CoverageScore:   coverageScore,
		},
		Issues:      allIssues,
		Suggestions: generateSuggestions(allIssues, coverageScore),
		Limited:     limited,
	}, nil
}

// calculateStrengthScore averages strength points over creds (0-25).
func (c *Calculator) calculateStrengthScore(creds []Credential, includeKeys bool) (int, []SecurityIssue) {
	total := 0
	for _, cred := range creds {
		total += CalculateStrength(cred.Password).Points()
	}
	score := total / len(creds)
	if score > 25 {
		score = 25
	}
	return score, c.FindWeakPasswords(creds, includeKeys, 0)
}

// calculateUniquenessScore scales the share of distinct passwords to 0-25.
func (c *Calculator) calculateUniquenessScore(creds []Credential, includeKeys bool) (int, []SecurityIssue, error) {
	duplicates, err := c.FindDuplicates(creds, includeKeys, 0)
	if err != nil {
		return 0, nil, err
	}

	reused := 0
	var issues []SecurityIssue
	for _, dup := range duplicates {
		reused += dup.Count - 1
		issue := SecurityIssue{
			Type:        IssueDuplicatePassword,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%d logins share the same password", dup.Count),
			Suggestion:  "Use unique passwords for each login",
		}
		if includeKeys {
			issue.Keys = dup.Keys
		}
		issues = append(issues, issue)
	}

	unique := len(creds) - reused
	return unique * 25 / len(creds), issues, nil
}

// calculateFreshnessScore scales the share of passwords changed within
// maxAge to 0-25. A zero maxAge disables the check.
func (c *Calculator) calculateFreshnessScore(creds []Credential, includeKeys bool) (int, []SecurityIssue) {
	if c.maxAge <= 0 {
		return 25, nil
	}
	now := c.now()
	var issues []SecurityIssue
	fresh := 0
	for _, cred := range creds {
		age := now.Sub(cred.UpdatedAt)
		if cred.UpdatedAt.IsZero() || age <= c.maxAge {
			fresh++
			continue
		}
		severity := SeverityInfo
		if age > 2*c.maxAge {
			severity = SeverityWarning
		}
		issue := SecurityIssue{
			Type:        IssueStalePassword,
			Severity:    severity,
			Description: "Password unchanged for " + formatDays(int(age.Hours()/24)),
			Suggestion:  "Rotate long-lived passwords",
		}
		if includeKeys {
			issue.Key = cred.Key
		}
		issues = append(issues, issue)
	}
	return fresh * 25 / len(creds), issues
}

// calculateCoverageScore scales the share of logins with a TOTP secret to 0-25.
func calculateCoverageScore(creds []Credential) int {
	covered := 0
	for _, cred := range creds {
		if cred.HasTOTP {
			covered++
		}
	}
	return covered * 25 / len(creds)
}

func generateSuggestions(issues []SecurityIssue, coverageScore int) []string {
	var hasWeak, hasDuplicate, hasStale bool
	for _, issue := range issues {
		switch issue.Type {
		case IssueWeakPassword:
			hasWeak = true
		case IssueDuplicatePassword:
			hasDuplicate = true
		case IssueStalePassword:
			hasStale = true
		}
	}

	suggestions := []string{}
	if hasWeak {
		suggestions = append(suggestions, "Update weak passwords with stronger alternatives (14+ characters)")
	}
	if hasDuplicate {
		suggestions = append(suggestions, "Replace duplicate passwords with unique values")
	}
	if hasStale {
		suggestions = append(suggestions, "Rotate passwords that have not changed in a long time")
	}
	if coverageScore < 13 {
		suggestions = append(suggestions, "Add TOTP secrets for sites that support two-factor codes")
	}
	return suggestions
}

func formatDays(days int) string {
	switch days {
	case 0:
		return "less than a day"
	case 1:
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
