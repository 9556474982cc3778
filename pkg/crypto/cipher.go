package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Cipher identifies the AEAD algorithm. The id is persisted in the boot header.
type Cipher uint8

const (
	// CipherXChaCha20Poly1305 is XChaCha20-Poly1305 with its native 24-byte nonce.
	CipherXChaCha20Poly1305 Cipher = 1
	// CipherAES256GCM is AES-256-GCM run with a 24-byte nonce.
	CipherAES256GCM Cipher = 2
)

// String returns the configuration name of the cipher.
func (c Cipher) String() string {
	switch c {
	case CipherXChaCha20Poly1305:
		return "xchacha20poly1305"
	case CipherAES256GCM:
		return "aes256gcm"
	default:
		return fmt.Sprintf("cipher(%d)", uint8(c))
	}
}

// ParseCipher resolves a configuration name to a Cipher.
func ParseCipher(s string) (Cipher, error) {
	switch s {
	case "xchacha20poly1305", "xchacha20-poly1305", "xchacha":
		return CipherXChaCha20Poly1305, nil
	case "aes256gcm", "aes-256-gcm", "aes":
		return CipherAES256GCM, nil
	default:
		return 0, fmt.Errorf("%w: cipher %q", ErrUnknownAlgorithm, s)
	}
}

// Valid reports whether c is a known cipher.
func (c Cipher) Valid() bool {
	return c == CipherXChaCha20Poly1305 || c == CipherAES256GCM
}

// newAEAD returns the AEAD for c keyed with key. Every variant takes NonceLength nonces.
func newAEAD(c Cipher, key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	switch c {
	case CipherXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: failed to create XChaCha20-Poly1305: %w", err)
		}
		return aead, nil
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
		}
		gcm, err := cipher.NewGCMWithNonceSize(block, NonceLength)
		if err != nil {
			return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
		}
		return gcm, nil
	default:
		return nil, fmt.Errorf("%w: cipher id %d", ErrUnknownAlgorithm, uint8(c))
	}
}
