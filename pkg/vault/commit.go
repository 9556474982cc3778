package vault

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/forest6511/vaultfs/pkg/feature"
	"github.com/forest6511/vaultfs/pkg/storage"
)

// Commit appends every feature's pending changes to the log, one record per
// feature. It reports whether anything was written. When every feature's
// newest record is then a snapshot, a checkpoint is written after them.
func (s *Session) Commit() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}

	type pending struct {
		f   feature.Feature
		rec *feature.EncodedRecord
	}
	var todo []pending
	size := 0
	for _, f := range s.features {
		rec, err := f.Pending()
		if err != nil {
			return false, fmt.Errorf("vault: failed to encode %s changes: %w", f.ID(), err)
		}
		if rec != nil {
			todo = append(todo, pending{f, rec})
			size += len(rec.Payload)
		}
	}
	if len(todo) == 0 {
		return false, nil
	}
	if err := checkDiskSpaceForWrite(s.path, size, s.logger); err != nil {
		return false, err
	}

	for _, p := range todo {
		off, err := s.appendRecord(*p.rec)
		if err != nil {
			return false, err
		}
		p.f.ResetSyncState()
		s.logger.Debug("committed record",
			slog.String("feature", p.rec.FeatureID),
			slog.String("kind", p.rec.Kind.String()),
			slog.Int64("offset", off),
			slog.Int("bytes", len(p.rec.Payload)))
	}

	if s.allSnapshots() {
		if err := s.writeCheckpoint(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Compact writes a snapshot of every feature followed by a checkpoint, so the
// next open replays nothing older. Pending deltas are folded into the
// snapshots.
func (s *Session) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := checkDiskSpaceForWrite(s.path, 0, s.logger); err != nil {
		return err
	}

	for _, f := range s.features {
		rec, err := f.Snapshot()
		if err != nil {
			return fmt.Errorf("vault: failed to encode %s snapshot: %w", f.ID(), err)
		}
		if _, err := s.appendRecord(rec); err != nil {
			return err
		}
		f.ResetSyncState()
	}
	return s.writeCheckpoint()
}

func (s *Session) appendRecord(rec feature.EncodedRecord) (int64, error) {
	h := &storage.RecordHeader{
		Kind:        storage.Kind(rec.Kind),
		FeatureID:   rec.FeatureID,
		WireVersion: rec.Version,
		PrevOffset:  s.latest[rec.FeatureID].Offset,
	}
	off, err := s.log.AppendRecord(h, rec.Payload)
	if err != nil {
		return 0, fmt.Errorf("vault: failed to append %s %s: %w", rec.FeatureID, rec.Kind, err)
	}
	s.latest[rec.FeatureID] = storage.Entry{Offset: off, End: s.log.End(), Header: *h}
	return off, nil
}

func (s *Session) allSnapshots() bool {
	for _, e := range s.latest {
		if e.Header.Kind != storage.KindSnapshot {
			return false
		}
	}
	return true
}

func (s *Session) writeCheckpoint() error {
	cp := &storage.Checkpoint{}
	for _, f := range s.features {
		e, ok := s.latest[f.ID()]
		if !ok {
			continue
		}
		cp.Features = append(cp.Features, storage.CheckpointFeature{
			FeatureID:       f.ID(),
			WireVersion:     e.Header.WireVersion,
			SnapshotPointer: e.Offset,
		})
		if e.Header.Sequence > cp.LastDeltaSequence {
			cp.LastDeltaSequence = e.Header.Sequence
		}
	}
	off, err := s.log.WriteCheckpoint(cp)
	if err != nil {
		return fmt.Errorf("vault: failed to write checkpoint: %w", err)
	}
	s.logger.Info("checkpoint written",
		slog.Int64("offset", off),
		slog.Int("features", len(cp.Features)))
	return nil
}

// Stats describes the open vault.
type Stats struct {
	FileSize         int64  `json:"file_size"`
	LastSequence     uint64 `json:"last_sequence"`
	CheckpointOffset int64  `json:"checkpoint_offset"` // 0 before the first checkpoint
	Folders          int    `json:"folders"`
	Files            int    `json:"files"`
	Secrets          int    `json:"secrets"`
	PendingChanges   int    `json:"pending_changes"`
	CachedBlobs      int    `json:"cached_blobs"`
}

// Stats reports file and store counters. Folders excludes the root.
func (s *Session) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Stats{}, ErrClosed
	}
	sub, err := s.log.Subheader()
	if err != nil {
		return Stats{}, err
	}
	folders, files := s.fs.Len()
	return Stats{
		FileSize:         s.log.End(),
		LastSequence:     sub.LastSequence,
		CheckpointOffset: sub.CheckpointOffset,
		Folders:          folders,
		Files:            files,
		Secrets:          s.secrets.Len(),
		PendingChanges:   s.fs.PendingCount() + s.secrets.PendingCount(),
		CachedBlobs:      len(s.blobs),
	}, nil
}

// WriteTo copies the committed vault, from the boot header to the last
// confirmed entry, to w. Uncommitted changes and any torn tail are not
// included, so the copy opens as a consistent vault.
func (s *Session) WriteTo(w io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n, err := io.Copy(w, io.NewSectionReader(s.f, 0, s.log.End()))
	if err != nil {
		return n, fmt.Errorf("vault: failed to copy vault: %w", err)
	}
	return n, nil
}
