// Package totp generates and verifies RFC 6238 time-based one-time passwords
// for login entries.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPeriod = 30
	DefaultDigits = 6
	MaxDigits     = 8
	secretSize    = 20 // 160-bit secret
)

// TOTP errors
var (
	ErrInvalidSecret = errors.New("totp: invalid base32 secret")
	ErrInvalidParams = errors.New("totp: invalid digits or period")
	ErrInvalidURI    = errors.New("totp: invalid otpauth URI")
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Params are the per-entry code settings. Zero values mean the defaults.
type Params struct {
	Digits int
	Period int
}

func (p Params) withDefaults() (Params, error) {
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if p.Period == 0 {
		p.Period = DefaultPeriod
	}
	if p.Digits < 6 || p.Digits > MaxDigits || p.Period < 0 {
		return p, fmt.Errorf("%w: digits=%d period=%d", ErrInvalidParams, p.Digits, p.Period)
	}
	return p, nil
}

// GenerateSecret returns a new random secret in unpadded base32.
func GenerateSecret() (string, error) {
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	return b32.EncodeToString(secret), nil
}

// DecodeSecret parses a base32 secret, tolerating spaces, padding and lower case.
func DecodeSecret(secret string) ([]byte, error) {
	secret = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	secret = strings.TrimRight(secret, "=")
	b, err := b32.DecodeString(secret)
	if err != nil || len(b) == 0 {
		return nil, ErrInvalidSecret
	}
	return b, nil
}

// Generate returns the code for key at time t.
func Generate(key []byte, t time.Time, p Params) (string, error) {
	p, err := p.withDefaults()
	if err != nil {
		return "", err
	}
	return computeCode(key, uint64(t.Unix()/int64(p.Period)), p.Digits), nil
}

// Code decodes a base32 secret and returns the code at time t.
func Code(secret string, t time.Time, p Params) (string, error) {
	key, err := DecodeSecret(secret)
	if err != nil {
		return "", err
	}
	defer zero(key)
	return Generate(key, t, p)
}

// Verify checks code against the previous, current and next time steps.
func Verify(code, secret string, t time.Time, p Params) bool {
	p, err := p.withDefaults()
	if err != nil {
		return false
	}
	code = strings.TrimSpace(code)
	if len(code) != p.Digits {
		return false
	}
	key, err := DecodeSecret(secret)
	if err != nil {
		return false
	}
	defer zero(key)

	counter := t.Unix() / int64(p.Period)
	for i := int64(-1); i <= 1; i++ {
		cur := counter + i
		if cur < 0 {
			continue
		}
		if hmac.Equal([]byte(computeCode(key, uint64(cur), p.Digits)), []byte(code)) {
			return true
		}
	}
	return false
}

// Remaining returns how long the code at t stays valid.
func Remaining(t time.Time, p Params) time.Duration {
	p, err := p.withDefaults()
	if err != nil {
		return 0
	}
	period := int64(p.Period)
	return time.Duration(period-t.Unix()%period) * time.Second
}

// ParseURI extracts the secret and parameters from an otpauth://totp/ URI.
// A bare base32 secret is accepted as well.
func ParseURI(s string) (string, Params, error) {
	if !strings.HasPrefix(strings.ToLower(s), "otpauth://") {
		if _, err := DecodeSecret(s); err != nil {
			return "", Params{}, err
		}
		return s, Params{}, nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Host != "totp" {
		return "", Params{}, ErrInvalidURI
	}
	q := u.Query()
	secret := q.Get("secret")
	if _, err := DecodeSecret(secret); err != nil {
		return "", Params{}, err
	}
	if alg := q.Get("algorithm"); alg != "" && !strings.EqualFold(alg, "SHA1") {
		return "", Params{}, fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidURI, alg)
	}
	var p Params
	if d := q.Get("digits"); d != "" {
		if p.Digits, err = strconv.Atoi(d); err != nil {
			return "", Params{}, ErrInvalidURI
		}
	}
	if d := q.Get("period"); d != "" {
		if p.Period, err = strconv.Atoi(d); err != nil {
			return "", Params{}, ErrInvalidURI
		}
	}
	if _, err := p.withDefaults(); err != nil {
		return "", Params{}, err
	}
	return secret, p, nil
}

func computeCode(key []byte, counter uint64, digits int) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0F
	trunc := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7FFFFFFF
	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, trunc%mod)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
