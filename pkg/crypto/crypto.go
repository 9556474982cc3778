// Package crypto provides the cryptographic primitives for vaultfs.
//
// This package implements the password-derived key hierarchy and the
// compress-then-encrypt envelope used by every sealed region of a vault file.
//
// # Security Features
//
//   - Argon2id master key derivation (OWASP defaults: 64MB, 3 iterations, 4 threads)
//   - HKDF-SHA256 domain-separated subkeys (envelope key, per-feature keys)
//   - XChaCha20-Poly1305 or AES-256-GCM authenticated encryption with a
//     24-byte random nonce per seal
//   - Optional zstd, brotli or lz4 compression applied before encryption
//   - Secure memory wiping (and page locking where supported) for key material
//
// # Example Usage
//
//	master, err := crypto.DeriveMasterKey([]byte("password"), salt, crypto.DefaultKDFParams())
//	ring, err := crypto.NewKeyring(master)
//	defer ring.Wipe()
//
//	env := crypto.Envelope{Cipher: crypto.CipherXChaCha20Poly1305, Compression: crypto.CompressionZstd}
//	nonce, err := crypto.NewNonce()
//	ciphertext, err := env.Seal(ring.Envelope(), nonce, plaintext, aad)
//	plaintext, err := env.Open(ring.Envelope(), nonce, ciphertext, aad)
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters following OWASP recommendations.
const (
	// Argon2Memory is the memory cost in KiB (64MB).
	Argon2Memory = 64 * 1024

	// Argon2Time is the number of iterations.
	Argon2Time = 3

	// Argon2Threads is the degree of parallelism.
	Argon2Threads = 4

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// NonceLength is the length of every envelope nonce in bytes (192 bits).
	NonceLength = 24

	// SaltLength is the length of the KDF salt in bytes.
	SaltLength = 16

	// MaxPlaintextSize bounds the size of a decompressed payload.
	MaxPlaintextSize = 256 << 20
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidNonceLength indicates the nonce is not 24 bytes.
	ErrInvalidNonceLength = errors.New("crypto: invalid nonce length, must be 24 bytes")

	// ErrDecryptionFailed indicates decryption or authentication tag verification failed.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the ciphertext is shorter than the AEAD tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")

	// ErrInvalidKDFParams indicates unusable Argon2id parameters or salt.
	ErrInvalidKDFParams = errors.New("crypto: invalid key derivation parameters")

	// ErrUnknownAlgorithm indicates a cipher or compression id outside the known set.
	ErrUnknownAlgorithm = errors.New("crypto: unknown algorithm")

	// ErrPlaintextTooLarge indicates a payload exceeds MaxPlaintextSize.
	ErrPlaintextTooLarge = errors.New("crypto: plaintext too large")

	// ErrKeyWiped indicates a key was used after it was wiped.
	ErrKeyWiped = errors.New("crypto: key has been wiped")
)

// KDFParams holds the Argon2id cost parameters recorded in the vault boot header.
type KDFParams struct {
	Memory  uint32 // Memory in KiB
	Time    uint32 // Iterations
	Threads uint8  // Parallelism
}

// DefaultKDFParams returns the OWASP-recommended Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:  Argon2Memory,
		Time:    Argon2Time,
		Threads: Argon2Threads,
	}
}

// Validate reports whether the parameters can be used for derivation.
func (p KDFParams) Validate() error {
	if p.Memory == 0 || p.Time == 0 || p.Threads == 0 {
		return fmt.Errorf("%w: memory=%d time=%d threads=%d", ErrInvalidKDFParams, p.Memory, p.Time, p.Threads)
	}
	// argon2 requires at least 8 KiB per lane
	if p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("%w: memory %d KiB too small for %d threads", ErrInvalidKDFParams, p.Memory, p.Threads)
	}
	return nil
}

// GenerateSalt returns SaltLength bytes of cryptographically secure random data.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// NewNonce draws a fresh random nonce. Nonces are never derived from content.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// deriveKey runs Argon2id. The returned slice is owned by the caller.
func deriveKey(password, salt []byte, p KDFParams) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidKDFParams, SaltLength, len(salt))
	}
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, KeyLength), nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
