package storage

import (
	"fmt"
	"sort"
)

// Replay is everything needed to rebuild feature state.
type Replay struct {
	Subheader Subheader

	// Checkpoint is nil when the vault has none.
	Checkpoint      *Checkpoint
	CheckpointEntry Entry

	// Snapshots are the entries the checkpoint points at, in offset order.
	Snapshots []Entry

	// Entries follow the checkpoint (or the log start) in strictly
	// increasing offset and sequence order.
	Entries []Entry
}

// ReplaySinceCheckpoint is the single read path used to rebuild state:
// read the subheader, read the checkpoint and the snapshots it references
// if there is one, then every entry after it.
func (l *Log) ReplaySinceCheckpoint() (*Replay, error) {
	sub, err := l.Subheader()
	if err != nil {
		return nil, err
	}
	r := &Replay{Subheader: sub}

	start, after := LogStart, uint64(0)
	if sub.CheckpointOffset != 0 {
		cp, e, err := l.ReadCheckpoint(sub.CheckpointOffset)
		if err != nil {
			return nil, err
		}
		r.Checkpoint = cp
		r.CheckpointEntry = e
		start, after = e.End, e.Header.Sequence

		for _, f := range cp.Features {
			if f.SnapshotPointer >= sub.CheckpointOffset {
				return nil, fmt.Errorf("%w: snapshot of %q at %d is not before its checkpoint", ErrInconsistent, f.FeatureID, f.SnapshotPointer)
			}
			s, err := l.ReadEntry(f.SnapshotPointer)
			if err != nil {
				return nil, err
			}
			if s.Header.Kind != KindSnapshot || s.Header.FeatureID != f.FeatureID {
				return nil, fmt.Errorf("%w: checkpoint points at %s entry of %q, want snapshot of %q",
					ErrInconsistent, s.Header.Kind, s.Header.FeatureID, f.FeatureID)
			}
			r.Snapshots = append(r.Snapshots, s)
		}
		sort.Slice(r.Snapshots, func(i, j int) bool { return r.Snapshots[i].Offset < r.Snapshots[j].Offset })
	}

	r.Entries, err = l.ReplayFrom(start, after)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ReplayFrom walks forward from start to EOF decoding entries in order.
// after is the sequence number of the entry preceding start (0 at LogStart).
//
// It fails fast: any frame that does not authenticate, a stream that ends
// mid-structure, or a sequence gap aborts the whole replay. Bytes past the
// entry that carries the subheader's last sequence are a torn write and are
// reported as *TornTailError. The last non-checkpoint entry must sit at the
// subheader's tail_record_offset.
func (l *Log) ReplayFrom(start int64, after uint64) ([]Entry, error) {
	sub, err := l.Subheader()
	if err != nil {
		return nil, err
	}
	size, err := fileSize(l.f)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	off, seq := start, after
	tail := int64(-1)
	for off < size {
		if seq == sub.LastSequence {
			return nil, &TornTailError{ConfirmedEnd: off, FileSize: size}
		}
		e, err := l.ReadEntry(off)
		if err != nil {
			if isTruncation(err) {
				return nil, fmt.Errorf("%w: confirmed entry %d truncated: %w", ErrInconsistent, seq+1, err)
			}
			return nil, err
		}
		if e.Header.Sequence != seq+1 {
			return nil, fmt.Errorf("%w: entry at %d has sequence %d, want %d",
				ErrInconsistent, off, e.Header.Sequence, seq+1)
		}
		entries = append(entries, e)
		if e.Header.Kind != KindCheckpoint {
			tail = e.Offset
		}
		off, seq = e.End, e.Header.Sequence
	}
	if seq != sub.LastSequence {
		return nil, fmt.Errorf("%w: log ends at sequence %d, subheader confirms %d",
			ErrInconsistent, seq, sub.LastSequence)
	}
	switch {
	case tail >= 0 && tail != sub.TailRecordOffset:
		return nil, fmt.Errorf("%w: last record at %d, subheader tail is %d",
			ErrInconsistent, tail, sub.TailRecordOffset)
	case tail < 0 && sub.TailRecordOffset >= start:
		return nil, fmt.Errorf("%w: subheader tail %d is past the last record before %d",
			ErrInconsistent, sub.TailRecordOffset, start)
	}
	return entries, nil
}
