package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// HKDF info strings for the key hierarchy.
const (
	hkdfInfoEnvelope      = "vaultfs/envelope/v1"
	hkdfInfoFeaturePrefix = "vaultfs/feature/v1/"
)

// Key is a fixed-size secret held in locked memory when the OS allows it.
// The zero value is not usable; keys come from DeriveMasterKey or Expand.
type Key struct {
	b      []byte
	locked bool
}

func newKey(b []byte) *Key {
	k := &Key{b: b}
	k.locked = lockMemory(b) == nil
	return k
}

// DeriveMasterKey derives the 32-byte master key from a password and the
// boot-header salt with Argon2id. The same inputs always produce the same key;
// a wrong password simply yields a different key.
func DeriveMasterKey(password, salt []byte, params KDFParams) (*Key, error) {
	b, err := deriveKey(password, salt, params)
	if err != nil {
		return nil, err
	}
	return newKey(b), nil
}

// NewKey copies raw key bytes into a new Key. The caller keeps ownership of b.
func NewKey(b []byte) (*Key, error) {
	if len(b) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	return newKey(append([]byte(nil), b...)), nil
}

// Bytes returns the key material. The slice is invalid after Wipe.
func (k *Key) Bytes() []byte {
	return k.b
}

// Expand derives an n-byte subkey with HKDF-SHA256 using info as the context.
func (k *Key) Expand(info string, n int) (*Key, error) {
	if k.b == nil {
		return nil, ErrKeyWiped
	}
	out := make([]byte, n)
	r := hkdf.Expand(sha256.New, k.b, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		SecureWipe(out)
		return nil, fmt.Errorf("crypto: failed to expand key: %w", err)
	}
	return newKey(out), nil
}

// Wipe zeroes the key and releases its page lock. Safe to call repeatedly.
func (k *Key) Wipe() {
	if k == nil || k.b == nil {
		return
	}
	SecureWipe(k.b)
	if k.locked {
		_ = unlockMemory(k.b)
	}
	k.b = nil
}

// Keyring is the key hierarchy of one open vault session:
// master key, envelope key and lazily expanded per-feature keys.
type Keyring struct {
	mu       sync.Mutex
	master   *Key
	envelope *Key
	features map[string]*Key
}

// NewKeyring takes ownership of master and expands the envelope key.
// On error the master key is wiped.
func NewKeyring(master *Key) (*Keyring, error) {
	env, err := master.Expand(hkdfInfoEnvelope, KeyLength)
	if err != nil {
		master.Wipe()
		return nil, err
	}
	return &Keyring{
		master:   master,
		envelope: env,
		features: make(map[string]*Key),
	}, nil
}

// Envelope returns the key used for all structural frames.
func (r *Keyring) Envelope() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.envelope == nil {
		return nil
	}
	return r.envelope.Bytes()
}

// Feature returns the key reserved for a feature's own payload protection.
func (r *Keyring) Feature(featureID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.master == nil {
		return nil, ErrKeyWiped
	}
	if k, ok := r.features[featureID]; ok {
		return k.Bytes(), nil
	}
	k, err := r.master.Expand(hkdfInfoFeaturePrefix+featureID, KeyLength)
	if err != nil {
		return nil, err
	}
	r.features[featureID] = k
	return k.Bytes(), nil
}

// Wipe zeroizes every key in the ring.
func (r *Keyring) Wipe() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, k := range r.features {
		k.Wipe()
		delete(r.features, id)
	}
	r.envelope.Wipe()
	r.master.Wipe()
	r.envelope = nil
	r.master = nil
}
