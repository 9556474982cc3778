package totp

import (
	"errors"
	"testing"
	"time"
)

// RFC 6238 Appendix B, SHA1 column.
func TestGenerateRFCVectors(t *testing.T) {
	key := []byte("12345678901234567890")
	tests := []struct {
		unix int64
		want string
	}{
		{59, "94287082"},
		{1111111109, "07081804"},
		{1111111111, "14050471"},
		{1234567890, "89005924"},
		{2000000000, "69279037"},
		{20000000000, "65353130"},
	}
	for _, tt := range tests {
		got, err := Generate(key, time.Unix(tt.unix, 0), Params{Digits: 8})
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("Generate(%d) = %s, want %s", tt.unix, got, tt.want)
		}
	}

	six, _ := Generate(key, time.Unix(59, 0), Params{})
	if six != "287082" {
		t.Errorf("Generate() with default digits = %s, want 287082", six)
	}
}

func TestCodeAndVerify(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	now := time.Unix(1700000000, 0)
	code, err := Code(secret, now, Params{})
	if err != nil {
		t.Fatalf("Code() error = %v", err)
	}
	if len(code) != DefaultDigits {
		t.Errorf("Code() length = %d", len(code))
	}
	if !Verify(code, secret, now.Add(29*time.Second), Params{}) {
		t.Error("Verify() rejected code within the skew window")
	}
	if Verify(code, secret, now.Add(5*time.Minute), Params{}) {
		t.Error("Verify() accepted an expired code")
	}
	if Verify("12345", secret, now, Params{}) {
		t.Error("Verify() accepted a short code")
	}
}

func TestDecodeSecret(t *testing.T) {
	a, err := DecodeSecret("jbsw y3dp ehpk 3pxp")
	if err != nil {
		t.Fatalf("DecodeSecret() error = %v", err)
	}
	b, err := DecodeSecret("JBSWY3DPEHPK3PXP====")
	if err != nil {
		t.Fatalf("DecodeSecret() error = %v", err)
	}
	if string(a) != string(b) {
		t.Error("DecodeSecret() differs for equivalent inputs")
	}
	if _, err := DecodeSecret("not-base32!"); !errors.Is(err, ErrInvalidSecret) {
		t.Errorf("DecodeSecret() error = %v, want %v", err, ErrInvalidSecret)
	}
}

func TestParseURI(t *testing.T) {
	secret, p, err := ParseURI("otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example&digits=8&period=60")
	if err != nil {
		t.Fatalf("ParseURI() error = %v", err)
	}
	if secret != "JBSWY3DPEHPK3PXP" || p.Digits != 8 || p.Period != 60 {
		t.Errorf("ParseURI() = %q, %+v", secret, p)
	}

	if _, _, err := ParseURI("otpauth://hotp/x?secret=JBSWY3DPEHPK3PXP"); !errors.Is(err, ErrInvalidURI) {
		t.Errorf("ParseURI(hotp) error = %v", err)
	}
	if _, _, err := ParseURI("otpauth://totp/x?secret=JBSWY3DPEHPK3PXP&algorithm=SHA512"); !errors.Is(err, ErrInvalidURI) {
		t.Errorf("ParseURI(SHA512) error = %v", err)
	}
	if _, _, err := ParseURI("otpauth://totp/x?secret=JBSWY3DPEHPK3PXP&digits=4"); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("ParseURI(digits=4) error = %v", err)
	}
	if s, _, err := ParseURI("JBSWY3DPEHPK3PXP"); err != nil || s != "JBSWY3DPEHPK3PXP" {
		t.Errorf("ParseURI(bare) = %q, %v", s, err)
	}
}

func TestRemaining(t *testing.T) {
	if got := Remaining(time.Unix(65, 0), Params{}); got != 25*time.Second {
		t.Errorf("Remaining() = %v, want 25s", got)
	}
}
