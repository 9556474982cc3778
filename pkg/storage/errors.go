package storage

import (
	"errors"
	"fmt"
)

// Format errors are fatal for the operation in progress and are never retried.
var (
	ErrNotVault           = errors.New("storage: not a vault file")
	ErrInvalidVault       = errors.New("storage: invalid vault: boot header checksum mismatch")
	ErrUnsupportedVersion = errors.New("storage: unsupported format version")
	ErrMalformedFrame     = errors.New("storage: malformed frame")
	ErrMalformedRecord    = errors.New("storage: malformed record")
)

var (
	// ErrUnlockFailed is the canonical "wrong password or corrupted vault" signal.
	// It does not reveal which byte failed to authenticate.
	ErrUnlockFailed = errors.New("storage: unlock failed: wrong password or corrupted vault")

	// ErrInconsistent reports a log that does not match its subheader,
	// such as a torn last write or a missing confirmed record.
	ErrInconsistent = errors.New("storage: vault log is inconsistent")
)

// FrameError adds the domain and absolute offset of the failing frame.
type FrameError struct {
	Domain Domain
	Offset int64
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("storage: %s frame at offset %d: %v", e.Domain, e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// TornTailError reports bytes after the last entry confirmed by the subheader.
// Truncating the file at ConfirmedEnd restores a consistent vault without
// dropping any confirmed write.
type TornTailError struct {
	ConfirmedEnd int64
	FileSize     int64
}

func (e *TornTailError) Error() string {
	return fmt.Sprintf("storage: vault log is inconsistent: %d unconfirmed bytes after offset %d (torn write)",
		e.FileSize-e.ConfirmedEnd, e.ConfirmedEnd)
}

// Is makes errors.Is(err, ErrInconsistent) hold for torn tails.
func (e *TornTailError) Is(target error) bool { return target == ErrInconsistent }
