package vault

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/forest6511/vaultfs/pkg/filesystem"
	"github.com/forest6511/vaultfs/pkg/storage"
)

// BlobFeatureID tags blob entries in the log. Blobs belong to no feature
// store and are never replayed into one.
const BlobFeatureID = "blob"

// BlobRef locates a blob written by PutBlob.
type BlobRef = filesystem.BlobRef

// PutBlob appends data as a blob entry and returns its reference. The blob
// is durable on return, independent of Commit; it becomes reachable once a
// committed file points at it.
func (s *Session) PutBlob(data []byte) (BlobRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return BlobRef{}, ErrClosed
	}
	if err := checkDiskSpaceForWrite(s.path, len(data), s.logger); err != nil {
		return BlobRef{}, err
	}

	id := uuid.New()
	body := make([]byte, 0, len(id)+len(data))
	body = append(body, id[:]...)
	body = append(body, data...)

	h := &storage.RecordHeader{Kind: storage.KindBlob, FeatureID: BlobFeatureID, WireVersion: 1}
	off, err := s.log.AppendRecord(h, body)
	if err != nil {
		return BlobRef{}, fmt.Errorf("vault: failed to write blob: %w", err)
	}
	s.blobs[id] = append([]byte(nil), data...)
	s.logger.Debug("blob written", slog.String("id", id.String()), slog.Int64("offset", off), slog.Int("bytes", len(data)))
	return BlobRef{ID: id, SizeBytes: int64(len(data)), ManifestOffset: off}, nil
}

// GetBlob returns the contents ref points at. The entry must be a blob with
// ref's id and size.
func (s *Session) GetBlob(ref BlobRef) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if b, ok := s.blobs[ref.ID]; ok && int64(len(b)) == ref.SizeBytes {
		return append([]byte(nil), b...), nil
	}
	if ref.ManifestOffset < storage.LogStart || ref.ManifestOffset >= s.log.End() {
		return nil, fmt.Errorf("%w: %s at offset %d", ErrBlobNotFound, ref.ID, ref.ManifestOffset)
	}

	e, err := s.log.ReadEntry(ref.ManifestOffset)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to read blob %s: %w", ref.ID, err)
	}
	if e.Header.Kind != storage.KindBlob || len(e.Payload) < len(ref.ID) {
		return nil, fmt.Errorf("%w: %s entry at offset %d is not a blob", ErrBlobNotFound, e.Header.Kind, ref.ManifestOffset)
	}
	if !bytes.Equal(e.Payload[:len(ref.ID)], ref.ID[:]) {
		return nil, fmt.Errorf("%w: blob at offset %d is not %s", ErrBlobNotFound, ref.ManifestOffset, ref.ID)
	}
	data := e.Payload[len(ref.ID):]
	if int64(len(data)) != ref.SizeBytes {
		return nil, fmt.Errorf("%w: blob %s has %d bytes, want %d", storage.ErrInconsistent, ref.ID, len(data), ref.SizeBytes)
	}
	s.blobs[ref.ID] = data
	return append([]byte(nil), data...), nil
}
