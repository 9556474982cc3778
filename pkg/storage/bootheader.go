package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/forest6511/vaultfs/pkg/crypto"
)

// Fixed layout constants.
const (
	// FormatVersion is the current on-disk format generation.
	FormatVersion uint16 = 1

	// MagicLength is the size of the file magic.
	MagicLength = 6

	// BootHeaderSize is the padded boot payload plus its CRC32 trailer.
	BootHeaderSize = bootPayloadSize + 4

	bootPayloadSize = 64
)

// Magic identifies a vaultfs file.
var Magic = [MagicLength]byte{'V', 'A', 'U', 'L', 'T', 'F'}

// BootHeader is the unencrypted, checksummed first region of the file.
// It carries everything needed before a key exists and is immutable after creation.
type BootHeader struct {
	FormatVersion uint16
	Salt          [crypto.SaltLength]byte
	Envelope      crypto.Envelope
	KDF           crypto.KDFParams
}

// MarshalBinary encodes the header including the CRC32 trailer.
func (h *BootHeader) MarshalBinary() ([]byte, error) {
	if err := h.Envelope.Validate(); err != nil {
		return nil, err
	}
	b := make([]byte, BootHeaderSize)
	copy(b[0:6], Magic[:])
	binary.LittleEndian.PutUint16(b[6:8], h.FormatVersion)
	copy(b[8:24], h.Salt[:])
	b[24] = byte(h.Envelope.Compression)
	b[25] = byte(h.Envelope.Cipher)
	binary.LittleEndian.PutUint32(b[26:30], h.KDF.Memory)
	binary.LittleEndian.PutUint32(b[30:34], h.KDF.Time)
	b[34] = h.KDF.Threads
	binary.LittleEndian.PutUint32(b[bootPayloadSize:], crc32.ChecksumIEEE(b[:bootPayloadSize]))
	return b, nil
}

// UnmarshalBinary verifies magic and CRC before trusting any other field.
func (h *BootHeader) UnmarshalBinary(b []byte) error {
	if len(b) < MagicLength || !bytes.Equal(b[:MagicLength], Magic[:]) {
		return ErrNotVault
	}
	if len(b) < BootHeaderSize {
		return fmt.Errorf("%w: truncated boot header (%d bytes)", ErrInvalidVault, len(b))
	}
	want := binary.LittleEndian.Uint32(b[bootPayloadSize:BootHeaderSize])
	if crc32.ChecksumIEEE(b[:bootPayloadSize]) != want {
		return ErrInvalidVault
	}

	h.FormatVersion = binary.LittleEndian.Uint16(b[6:8])
	if h.FormatVersion == 0 || h.FormatVersion > FormatVersion {
		return fmt.Errorf("%w: got %d, max supported %d", ErrUnsupportedVersion, h.FormatVersion, FormatVersion)
	}
	copy(h.Salt[:], b[8:24])
	h.Envelope = crypto.Envelope{
		Compression: crypto.Compression(b[24]),
		Cipher:      crypto.Cipher(b[25]),
	}
	h.KDF = crypto.KDFParams{
		Memory:  binary.LittleEndian.Uint32(b[26:30]),
		Time:    binary.LittleEndian.Uint32(b[30:34]),
		Threads: b[34],
	}
	if err := h.Envelope.Validate(); err != nil {
		return err
	}
	return h.KDF.Validate()
}

// ReadBootHeader reads the header at offset 0. No key is needed.
func ReadBootHeader(r io.ReaderAt) (*BootHeader, error) {
	b := make([]byte, BootHeaderSize)
	n, err := r.ReadAt(b, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("storage: failed to read boot header: %w", err)
	}
	var h BootHeader
	if err := h.UnmarshalBinary(b[:n]); err != nil {
		return nil, err
	}
	return &h, nil
}

// WriteBootHeader writes the header at offset 0.
func WriteBootHeader(w io.WriterAt, h *BootHeader) error {
	b, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := w.WriteAt(b, 0); err != nil {
		return fmt.Errorf("storage: failed to write boot header: %w", err)
	}
	return nil
}
