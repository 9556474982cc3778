package crypto

import "fmt"

// Envelope is the compress-then-encrypt wrapper around a plaintext payload.
type Envelope struct {
	Cipher      Cipher
	Compression Compression
}

// Validate reports whether both algorithm ids are known.
func (e Envelope) Validate() error {
	if !e.Cipher.Valid() {
		return fmt.Errorf("%w: cipher id %d", ErrUnknownAlgorithm, uint8(e.Cipher))
	}
	if !e.Compression.Valid() {
		return fmt.Errorf("%w: compression id %d", ErrUnknownAlgorithm, uint8(e.Compression))
	}
	return nil
}

// Seal compresses plaintext and encrypts it under key and nonce, binding aad
// into the authentication tag. The tag is appended to the ciphertext.
func (e Envelope) Seal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}
	if len(plaintext) > MaxPlaintextSize {
		return nil, ErrPlaintextTooLarge
	}
	aead, err := newAEAD(e.Cipher, key)
	if err != nil {
		return nil, err
	}
	packed, err := compress(e.Compression, plaintext)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, packed, aad), nil
}

// Open authenticates and decrypts ciphertext, then decompresses it.
// Any key, nonce, aad or ciphertext mismatch yields ErrDecryptionFailed.
func (e Envelope) Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}
	aead, err := newAEAD(e.Cipher, key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	packed, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return decompress(e.Compression, packed)
}

// Overhead returns the number of bytes the cipher adds to a payload.
func (e Envelope) Overhead() int {
	// Both supported AEADs use a 16-byte tag.
	return 16
}

// SealWithNonce draws a fresh nonce and returns nonce||ciphertext.
// It is used for small field-level secrets stored inside feature state.
func (e Envelope) SealWithNonce(key, plaintext, aad []byte) ([]byte, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	ct, err := e.Seal(key, nonce, plaintext, aad)
	if err != nil {
		return nil, err
	}
	return append(nonce, ct...), nil
}

// OpenWithNonce is the inverse of SealWithNonce.
func (e Envelope) OpenWithNonce(key, blob, aad []byte) ([]byte, error) {
	if len(blob) < NonceLength {
		return nil, ErrCiphertextTooShort
	}
	return e.Open(key, blob[:NonceLength], blob[NonceLength:], aad)
}

// FieldSealer seals small values under one feature key of a keyring.
// It looks the key up on every call, so it fails with ErrKeyWiped once the
// keyring is wiped.
type FieldSealer struct {
	ring    *Keyring
	feature string
	env     Envelope
}

// NewFieldSealer returns a sealer for featureID. Field values are never
// compressed.
func NewFieldSealer(ring *Keyring, featureID string, c Cipher) *FieldSealer {
	return &FieldSealer{ring: ring, feature: featureID, env: Envelope{Cipher: c, Compression: CompressionNone}}
}

// Seal returns nonce||ciphertext.
func (s *FieldSealer) Seal(plaintext, aad []byte) ([]byte, error) {
	key, err := s.ring.Feature(s.feature)
	if err != nil {
		return nil, err
	}
	return s.env.SealWithNonce(key, plaintext, aad)
}

// Open is the inverse of Seal.
func (s *FieldSealer) Open(sealed, aad []byte) ([]byte, error) {
	key, err := s.ring.Feature(s.feature)
	if err != nil {
		return nil, err
	}
	return s.env.OpenWithNonce(key, sealed, aad)
}
