package security

import "time"

// Limits caps how many issues of each kind a report lists. Scores are always
// computed over every credential.
type Limits struct {
	// DuplicateLimit is the max duplicate groups to show (0 = unlimited).
	DuplicateLimit int
	// WeakLimit is the max weak passwords to show (0 = unlimited).
	WeakLimit int
	// StaleLimit is the max stale passwords to show (0 = unlimited).
	StaleLimit int
}

// DefaultMaxAge is how long a password may go unchanged before it is
// reported as stale.
const DefaultMaxAge = 365 * 24 * time.Hour

// IsLimited returns true if any issue kind is capped.
func (l Limits) IsLimited() bool {
	return l.DuplicateLimit > 0 || l.WeakLimit > 0 || l.StaleLimit > 0
}

// apply drops issues past their kind's cap and reports whether any were dropped.
func (l Limits) apply(issues []SecurityIssue) ([]SecurityIssue, bool) {
	limited := false
	counts := make(map[IssueType]int)
	caps := map[IssueType]int{
		IssueWeakPassword:      l.WeakLimit,
		IssueDuplicatePassword: l.DuplicateLimit,
		IssueStalePassword:     l.StaleLimit,
	}

	result := make([]SecurityIssue, 0, len(issues))
	for _, issue := range issues {
		if limit := caps[issue.Type]; limit > 0 && counts[issue.Type] >= limit {
			limited = true
			continue
		}
		counts[issue.Type]++
		result = append(result, issue)
	}
	return result, limited
}
