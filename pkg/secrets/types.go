// Package secrets implements the login store kept in a vault.
//
// Entries are grouped by slash-separated folder paths. Passwords and TOTP
// secrets never sit in the store in plaintext: they are sealed with the
// feature key of the store and bound to the entry id.
package secrets

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// FeatureID tags secrets records in the log.
	FeatureID = "secrets"

	// WireVersion is the version of the JSON delta and snapshot format.
	WireVersion uint16 = 1

	// Field limits
	MaxNameLength   = 256
	MaxFieldLength  = 1024
	MaxURLLength    = 2048
	MaxCommentsSize = 10 * 1024 // 10KB
)

// Secrets errors
var (
	ErrNotFound         = errors.New("secrets: entry not found")
	ErrDuplicateEntry   = errors.New("secrets: an entry with this name already exists in the folder")
	ErrInvalidFolder    = errors.New("secrets: invalid folder path")
	ErrInvalidName      = errors.New("secrets: invalid entry name")
	ErrInvalidField     = errors.New("secrets: invalid field")
	ErrURLInvalid       = errors.New("secrets: invalid website url")
	ErrCommentsTooLarge = errors.New("secrets: comments too large")
	ErrNoTOTP           = errors.New("secrets: entry has no TOTP secret")
)

// TOTPConfig holds a sealed TOTP secret and its code parameters.
type TOTPConfig struct {
	EncryptedSecret []byte `json:"encrypted_secret"`
	Digits          int    `json:"digits"`
	Period          int    `json:"period"`
}

// LoginEntry is one stored login.
type LoginEntry struct {
	ID                uuid.UUID   `json:"id"`
	Folder            string      `json:"folder"`
	Name              string      `json:"name"`
	Username          string      `json:"username,omitempty"`
	EncryptedPassword []byte      `json:"encrypted_password,omitempty"`
	Website           string      `json:"website,omitempty"`
	Comments          string      `json:"comments,omitempty"`
	TOTP              *TOTPConfig `json:"totp,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Path returns the entry's folder joined with its name.
func (e LoginEntry) Path() string {
	if e.Folder == RootFolder {
		return RootFolder + e.Name
	}
	return e.Folder + "/" + e.Name
}

// NewLogin is the plaintext input to Add.
type NewLogin struct {
	Folder   string
	Name     string
	Username string
	Password string
	Website  string
	Comments string
	// TOTP is a base32 secret or an otpauth:// URI. Empty means none.
	TOTP string
}

// Patch lists the fields Update changes; nil fields are kept.
// An empty TOTP removes the entry's TOTP secret.
type Patch struct {
	Folder   *string
	Name     *string
	Username *string
	Password *string
	Website  *string
	Comments *string
	TOTP     *string
}

// State is every entry, sorted by id.
type State struct {
	Entries []LoginEntry `json:"entries"`
}

// Op names a delta operation.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
)

// Delta is one recorded mutation.
type Delta struct {
	Op    Op          `json:"op"`
	Entry *LoginEntry `json:"entry,omitempty"`
	ID    uuid.UUID   `json:"id"`
}

// Sealer encrypts field values under the store's feature key.
type Sealer interface {
	Seal(plaintext, aad []byte) ([]byte, error)
	Open(sealed, aad []byte) ([]byte, error)
}
