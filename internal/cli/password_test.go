package cli

import (
	"bytes"
	"testing"
)

func TestReadPasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "correct horse battery")

	var out bytes.Buffer
	pw, err := ReadPassword(&out, "Enter master password: ")
	if err != nil {
		t.Fatalf("ReadPassword() error = %v", err)
	}
	if pw != "correct horse battery" {
		t.Errorf("ReadPassword() = %q", pw)
	}
	if out.Len() != 0 {
		t.Errorf("ReadPassword() prompted %q with %s set", out.String(), PasswordEnv)
	}

	pw, err = ReadNewPassword(&out)
	if err != nil {
		t.Fatalf("ReadNewPassword() error = %v", err)
	}
	if pw != "correct horse battery" {
		t.Errorf("ReadNewPassword() = %q", pw)
	}
}

func TestReadPasswordEmptyEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "")

	pw, err := ReadPassword(&bytes.Buffer{}, "")
	if err != nil {
		t.Fatalf("ReadPassword() error = %v", err)
	}
	if pw != "" {
		t.Errorf("ReadPassword() = %q, want empty", pw)
	}
}
