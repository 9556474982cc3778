package storage

import (
	"errors"
	"fmt"
	"io"
)

// Log is the append-only chain of records and checkpoints of one vault file.
// It is not safe for concurrent use; the owning session serializes access.
type Log struct {
	f      File
	header *BootHeader
	key    []byte
	frames sealer
	end    int64 // where the next entry is written
}

// InitLog writes an empty subheader into a freshly created file.
func InitLog(f File, h *BootHeader, envelopeKey []byte) (*Log, error) {
	if err := WriteSubheader(f, h, envelopeKey, Subheader{}); err != nil {
		return nil, err
	}
	return newLog(f, h, envelopeKey, LogStart), nil
}

// OpenLog authenticates the subheader and positions the log end at EOF.
// It fails with ErrUnlockFailed when envelopeKey is wrong.
func OpenLog(f File, h *BootHeader, envelopeKey []byte) (*Log, error) {
	if _, err := ReadSubheader(f, h, envelopeKey); err != nil {
		return nil, err
	}
	size, err := fileSize(f)
	if err != nil {
		return nil, err
	}
	if size < LogStart {
		return nil, fmt.Errorf("%w: file is %d bytes, shorter than the fixed header", ErrInconsistent, size)
	}
	return newLog(f, h, envelopeKey, size), nil
}

func newLog(f File, h *BootHeader, key []byte, end int64) *Log {
	return &Log{
		f:      f,
		header: h,
		key:    key,
		frames: sealer{key: key, env: h.Envelope},
		end:    end,
	}
}

// Header returns the boot header the log was opened with.
func (l *Log) Header() *BootHeader { return l.header }

// End returns the offset at which the next entry will be written.
func (l *Log) End() int64 { return l.end }

// Subheader reads the current root pointers from disk.
func (l *Log) Subheader() (Subheader, error) {
	return ReadSubheader(l.f, l.header, l.key)
}

// AppendRecord seals h and payload back-to-back at the log end and then
// rewrites the subheader so the new entry is confirmed. The sequence number
// is assigned here and stored into h. It returns the entry's offset.
//
// This and WriteCheckpoint are the only writers past EOF.
func (l *Log) AppendRecord(h *RecordHeader, payload []byte) (int64, error) {
	if h.Kind == KindCheckpoint {
		return 0, fmt.Errorf("%w: checkpoints are written with WriteCheckpoint", ErrMalformedRecord)
	}
	return l.append(h, payload)
}

func (l *Log) append(h *RecordHeader, payload []byte) (int64, error) {
	sub, err := l.Subheader()
	if err != nil {
		return 0, err
	}
	bodyDomain, err := h.Kind.bodyDomain()
	if err != nil {
		return 0, err
	}

	h.Sequence = sub.LastSequence + 1
	hdr, err := h.MarshalBinary()
	if err != nil {
		return 0, err
	}

	off := l.end
	hdrFrame, err := l.frames.seal(DomainRecord, off, hdr)
	if err != nil {
		return 0, err
	}
	bodyOff := off + int64(len(hdrFrame))
	bodyFrame, err := l.frames.seal(bodyDomain, bodyOff, payload)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, 0, len(hdrFrame)+len(bodyFrame))
	buf = append(buf, hdrFrame...)
	buf = append(buf, bodyFrame...)
	if _, err := l.f.WriteAt(buf, off); err != nil {
		return 0, fmt.Errorf("storage: failed to append %s entry: %w", h.Kind, err)
	}
	if err := l.f.Sync(); err != nil {
		return 0, fmt.Errorf("storage: failed to sync %s entry: %w", h.Kind, err)
	}

	sub.LastSequence = h.Sequence
	if h.Kind == KindCheckpoint {
		sub.CheckpointOffset = off
	} else {
		sub.TailRecordOffset = off
	}
	if err := WriteSubheader(l.f, l.header, l.key, sub); err != nil {
		return 0, err
	}
	l.end = off + int64(len(buf))
	return off, nil
}

// ReadRecord opens the header frame at offset and returns the header and the
// offset of its body frame.
func (l *Log) ReadRecord(offset int64) (RecordHeader, int64, error) {
	pt, next, err := l.frames.openAt(l.f, DomainRecord, offset)
	if err != nil {
		return RecordHeader{}, 0, err
	}
	var h RecordHeader
	if err := h.UnmarshalBinary(pt); err != nil {
		return RecordHeader{}, 0, &FrameError{Domain: DomainRecord, Offset: offset, Err: err}
	}
	return h, next, nil
}

// ReadRecordPayload opens the body frame at offset for a header of kind.
func (l *Log) ReadRecordPayload(offset int64, kind Kind) ([]byte, int64, error) {
	d, err := kind.bodyDomain()
	if err != nil {
		return nil, 0, err
	}
	return l.frames.openAt(l.f, d, offset)
}

// ReadEntry reads and authenticates the complete entry at offset.
func (l *Log) ReadEntry(offset int64) (Entry, error) {
	h, bodyOff, err := l.ReadRecord(offset)
	if err != nil {
		return Entry{}, err
	}
	payload, end, err := l.ReadRecordPayload(bodyOff, h.Kind)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Offset: offset, End: end, Header: h, Payload: payload}, nil
}

// Truncate discards everything at and after offset. It is used to drop an
// unconfirmed torn tail reported by TornTailError.
func (l *Log) Truncate(offset int64) error {
	if offset < LogStart {
		return fmt.Errorf("storage: refusing to truncate into the fixed header at %d", offset)
	}
	if err := l.f.Truncate(offset); err != nil {
		return fmt.Errorf("storage: failed to truncate log: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("storage: failed to sync log: %w", err)
	}
	l.end = offset
	return nil
}

func fileSize(f File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("storage: failed to stat vault file: %w", err)
	}
	return fi.Size(), nil
}

// isTruncation reports whether err means the stream ended mid-structure.
func isTruncation(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
