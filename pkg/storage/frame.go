// Package storage implements the vaultfs on-disk container: the plaintext
// boot header, the encrypted subheader holding the log root pointers, and the
// append-only log of authenticated, feature-tagged records and checkpoints.
//
// Every encrypted region is a frame:
//
//	[size u32 LE][nonce 24][ciphertext size bytes]
//
// The frame's associated data is never stored. It is derived from the frame's
// domain and absolute file offset, so a frame copied to another position (or
// into another vault with the same key) fails authentication.
package storage

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/forest6511/vaultfs/pkg/crypto"
)

const (
	// FrameHeaderSize is the size of the length prefix plus nonce.
	FrameHeaderSize = 4 + crypto.NonceLength

	// MaxFrameSize bounds the ciphertext length accepted by ReadFrame.
	MaxFrameSize = crypto.MaxPlaintextSize + 64*1024
)

// Domain separates the purposes of frames in the associated data.
type Domain uint8

const (
	DomainSubheader  Domain = 1
	DomainRecord     Domain = 2
	DomainPayload    Domain = 3
	DomainCheckpoint Domain = 4
	DomainBlob       Domain = 5
)

func (d Domain) String() string {
	switch d {
	case DomainSubheader:
		return "subheader"
	case DomainRecord:
		return "record"
	case DomainPayload:
		return "payload"
	case DomainCheckpoint:
		return "checkpoint"
	case DomainBlob:
		return "blob"
	default:
		return fmt.Sprintf("domain(%d)", uint8(d))
	}
}

// AAD returns the associated data binding a frame to its domain and offset.
func AAD(d Domain, offset int64) []byte {
	b := make([]byte, 9)
	b[0] = byte(d)
	binary.LittleEndian.PutUint64(b[1:], uint64(offset))
	return b
}

// File is the storage a vault lives in. *os.File satisfies it.
type File interface {
	io.ReaderAt
	io.WriterAt
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

// WriteFrame writes [size][nonce][ciphertext] to w.
func WriteFrame(w io.Writer, nonce, ciphertext []byte) error {
	if len(nonce) != crypto.NonceLength {
		return fmt.Errorf("%w: nonce must be %d bytes", ErrMalformedFrame, crypto.NonceLength)
	}
	if len(ciphertext) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum frame size", ErrMalformedFrame, len(ciphertext))
	}
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(ciphertext)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	if _, err := w.Write(nonce); err != nil {
		return err
	}
	_, err := w.Write(ciphertext)
	return err
}

// ReadFrame is the exact inverse of WriteFrame. A stream that ends before the
// whole frame is available yields io.ErrUnexpectedEOF; an empty stream yields io.EOF.
func ReadFrame(r io.Reader) (nonce, ciphertext []byte, err error) {
	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, nil, err
	}
	n := binary.LittleEndian.Uint32(size[:])
	if n > MaxFrameSize {
		return nil, nil, fmt.Errorf("%w: declared size %d exceeds maximum", ErrMalformedFrame, n)
	}

	nonce = make([]byte, crypto.NonceLength)
	if _, err := io.ReadFull(r, nonce); err != nil {
		return nil, nil, unexpected(err)
	}
	// Grow with the data actually present so a corrupt size cannot force a huge allocation.
	ciphertext, err = io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(ciphertext)) != n {
		return nil, nil, io.ErrUnexpectedEOF
	}
	return nonce, ciphertext, nil
}

// FrameSize returns the on-disk size of a frame carrying n ciphertext bytes.
func FrameSize(n int) int64 {
	return int64(FrameHeaderSize + n)
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// sealer seals and opens frames under one key and envelope.
type sealer struct {
	key []byte
	env crypto.Envelope
}

// seal encrypts plaintext for (d, offset) and returns the encoded frame.
func (s sealer) seal(d Domain, offset int64, plaintext []byte) ([]byte, error) {
	nonce, err := crypto.NewNonce()
	if err != nil {
		return nil, err
	}
	ct, err := s.env.Seal(s.key, nonce, plaintext, AAD(d, offset))
	if err != nil {
		return nil, &FrameError{Domain: d, Offset: offset, Err: err}
	}
	buf := make([]byte, 0, FrameSize(len(ct)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ct)))
	buf = append(buf, nonce...)
	buf = append(buf, ct...)
	return buf, nil
}

// openAt reads the frame at offset and authenticates it as domain d.
// It returns the plaintext and the offset just past the frame.
func (s sealer) openAt(r io.ReaderAt, d Domain, offset int64) ([]byte, int64, error) {
	sr := io.NewSectionReader(r, offset, MaxFrameSize+FrameHeaderSize)
	nonce, ct, err := ReadFrame(sr)
	if err != nil {
		return nil, 0, &FrameError{Domain: d, Offset: offset, Err: err}
	}
	pt, err := s.env.Open(s.key, nonce, ct, AAD(d, offset))
	if err != nil {
		return nil, 0, &FrameError{Domain: d, Offset: offset, Err: err}
	}
	return pt, offset + FrameSize(len(ct)), nil
}
