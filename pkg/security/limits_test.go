package security

import "testing"

func TestLimits_IsLimited(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		want   bool
	}{
		{"unlimited", Limits{}, false},
		{"weak_only", Limits{WeakLimit: 1}, true},
		{"duplicate_only", Limits{DuplicateLimit: 2}, true},
		{"stale_only", Limits{StaleLimit: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.limits.IsLimited(); got != tt.want {
				t.Errorf("Limits.IsLimited() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLimits_apply(t *testing.T) {
	issues := []SecurityIssue{
		{Type: IssueWeakPassword},
		{Type: IssueWeakPassword},
		{Type: IssueDuplicatePassword},
		{Type: IssueWeakPassword},
		{Type: IssueStalePassword},
	}

	got, limited := Limits{WeakLimit: 2}.apply(issues)
	if !limited {
		t.Error("apply() limited = false, want true")
	}
	if len(got) != 4 {
		t.Fatalf("apply() kept %d issues, want 4", len(got))
	}
	weak := 0
	for _, issue := range got {
		if issue.Type == IssueWeakPassword {
			weak++
		}
	}
	if weak != 2 {
		t.Errorf("apply() kept %d weak issues, want 2", weak)
	}

	if _, limited := (Limits{WeakLimit: 5}).apply(issues); limited {
		t.Error("apply() under the cap reported limited")
	}
}
