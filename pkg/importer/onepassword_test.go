package importer

import (
	"strings"
	"testing"
)

func TestOnePasswordParser_Source(t *testing.T) {
	p := &OnePasswordParser{}
	if p.Source() != Source1Password {
		t.Errorf("Source() = %q, want %q", p.Source(), Source1Password)
	}
}

func TestOnePasswordParser_Parse(t *testing.T) {
	csvData := `Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
GitHub,https://github.com,johndoe,pass123,otpauth://totp/GitHub:johndoe?secret=JBSWY3DPEHPK3PXP&issuer=GitHub,true,false,"Work, Dev",My notes
Old Bank,bank.example,jd,pw,,false,true,,
,,,,,false,false,,`

	result, err := (&OnePasswordParser{}).Parse([]byte(csvData), ParseOptions{Folder: "/1p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Logins) != 2 {
		t.Fatalf("Logins count = %d, want 2", len(result.Logins))
	}
	if len(result.Skipped) != 1 {
		t.Errorf("Skipped = %v, want 1", result.Skipped)
	}

	gh := result.Logins[0]
	if gh.Path() != "/1p/Work/GitHub" {
		t.Errorf("Path() = %q, want %q", gh.Path(), "/1p/Work/GitHub")
	}
	if !strings.HasPrefix(gh.Login.TOTP, "otpauth://") {
		t.Errorf("TOTP = %q", gh.Login.TOTP)
	}
	if !strings.Contains(gh.Login.Comments, "My notes") || !strings.Contains(gh.Login.Comments, "Tags: Dev") {
		t.Errorf("Comments = %q", gh.Login.Comments)
	}

	bank := result.Logins[1]
	if bank.Login.Website != "https://bank.example" {
		t.Errorf("Website = %q", bank.Login.Website)
	}
	if !strings.Contains(bank.Login.Comments, "Archived") {
		t.Errorf("Comments = %q", bank.Login.Comments)
	}
}

func TestOnePasswordParser_MissingTitle(t *testing.T) {
	if _, err := (&OnePasswordParser{}).Parse([]byte("Website,Username\na,b"), ParseOptions{}); err == nil {
		t.Error("expected error for missing Title column")
	}
}
