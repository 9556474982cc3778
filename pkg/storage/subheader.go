package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/forest6511/vaultfs/pkg/crypto"
)

const (
	// SubheaderOffset is the fixed position of the subheader frame.
	SubheaderOffset = int64(BootHeaderSize)

	subheaderPlainSize = 24

	// SubheaderFrameSize is constant because the subheader is never compressed.
	SubheaderFrameSize = FrameHeaderSize + subheaderPlainSize + 16

	// LogStart is the offset of the first log entry.
	LogStart = SubheaderOffset + SubheaderFrameSize
)

// Subheader holds the mutable root pointers of the log.
// Whoever wrote it last wins; there is no concurrent-writer reconciliation.
type Subheader struct {
	CheckpointOffset int64  // 0 when no checkpoint has been written
	TailRecordOffset int64  // 0 when the log holds no records
	LastSequence     uint64 // sequence of the last confirmed entry
}

func (s Subheader) marshal() []byte {
	b := make([]byte, subheaderPlainSize)
	binary.LittleEndian.PutUint64(b[0:8], uint64(s.CheckpointOffset))
	binary.LittleEndian.PutUint64(b[8:16], uint64(s.TailRecordOffset))
	binary.LittleEndian.PutUint64(b[16:24], s.LastSequence)
	return b
}

func (s *Subheader) unmarshal(b []byte) error {
	if len(b) != subheaderPlainSize {
		return fmt.Errorf("%w: subheader is %d bytes", ErrMalformedRecord, len(b))
	}
	s.CheckpointOffset = int64(binary.LittleEndian.Uint64(b[0:8]))
	s.TailRecordOffset = int64(binary.LittleEndian.Uint64(b[8:16]))
	s.LastSequence = binary.LittleEndian.Uint64(b[16:24])
	return nil
}

// subheaderSealer never compresses so the frame size stays fixed.
func subheaderSealer(key []byte, env crypto.Envelope) sealer {
	return sealer{key: key, env: crypto.Envelope{Cipher: env.Cipher, Compression: crypto.CompressionNone}}
}

// ReadSubheader opens the subheader frame with the envelope key.
// An authentication failure here means a wrong password or a corrupted vault,
// and is reported as ErrUnlockFailed.
func ReadSubheader(f File, h *BootHeader, envelopeKey []byte) (Subheader, error) {
	s := subheaderSealer(envelopeKey, h.Envelope)
	pt, _, err := s.openAt(f, DomainSubheader, SubheaderOffset)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			return Subheader{}, ErrUnlockFailed
		}
		return Subheader{}, err
	}
	var sub Subheader
	if err := sub.unmarshal(pt); err != nil {
		return Subheader{}, err
	}
	return sub, nil
}

// WriteSubheader re-seals the entire subheader at its fixed offset and syncs.
// This is the only in-place overwrite in the file.
func WriteSubheader(f File, h *BootHeader, envelopeKey []byte, sub Subheader) error {
	s := subheaderSealer(envelopeKey, h.Envelope)
	frame, err := s.seal(DomainSubheader, SubheaderOffset, sub.marshal())
	if err != nil {
		return err
	}
	if len(frame) != SubheaderFrameSize {
		return fmt.Errorf("%w: subheader frame is %d bytes, want %d", ErrMalformedFrame, len(frame), SubheaderFrameSize)
	}
	if _, err := f.WriteAt(frame, SubheaderOffset); err != nil {
		return fmt.Errorf("storage: failed to write subheader: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("storage: failed to sync subheader: %w", err)
	}
	return nil
}
