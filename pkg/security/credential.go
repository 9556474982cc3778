package security

import (
	"time"

	"github.com/forest6511/vaultfs/pkg/secrets"
)

// Credential is one password under analysis.
type Credential struct {
	Key       string // display name, the entry path for vault logins
	Password  string
	HasTOTP   bool
	UpdatedAt time.Time
}

// CredentialsFromStore opens every login's password in s. Entries without a
// password are skipped.
func CredentialsFromStore(s *secrets.Store) ([]Credential, error) {
	var out []Credential
	for _, e := range s.All() {
		pw, err := s.RevealPassword(e.ID)
		if err != nil {
			return nil, err
		}
		if pw == "" {
			continue
		}
		out = append(out, Credential{
			Key:       e.Path(),
			Password:  pw,
			HasTOTP:   e.TOTP != nil,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return out, nil
}
