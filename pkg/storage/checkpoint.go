package storage

import (
	"encoding/json"
	"fmt"
)

// CheckpointVersion is the wire version of the checkpoint body.
const CheckpointVersion uint16 = 1

// CheckpointFeature points at the snapshot entry that captures a feature's
// complete state as of the checkpoint.
type CheckpointFeature struct {
	FeatureID       string `json:"feature_id"`
	WireVersion     uint16 `json:"wire_version"`
	SnapshotPointer int64  `json:"snapshot_pointer"`
}

// Checkpoint means "replay does not need anything before this". It is
// advisory: a vault without one replays from the start of the log.
type Checkpoint struct {
	Features          []CheckpointFeature `json:"features"`
	LastDeltaSequence uint64              `json:"last_delta_sequence"`
}

// WriteCheckpoint appends cp at the log end and points the subheader's
// checkpoint_offset at it. It returns the checkpoint's offset.
func (l *Log) WriteCheckpoint(cp *Checkpoint) (int64, error) {
	for _, f := range cp.Features {
		if f.SnapshotPointer < LogStart || f.SnapshotPointer >= l.end {
			return 0, fmt.Errorf("%w: snapshot pointer %d for %q outside the log", ErrMalformedRecord, f.SnapshotPointer, f.FeatureID)
		}
	}
	body, err := json.Marshal(cp)
	if err != nil {
		return 0, fmt.Errorf("storage: failed to marshal checkpoint: %w", err)
	}
	h := &RecordHeader{
		Kind:        KindCheckpoint,
		WireVersion: CheckpointVersion,
	}
	return l.append(h, body)
}

// ReadCheckpoint reads the checkpoint entry at offset.
func (l *Log) ReadCheckpoint(offset int64) (*Checkpoint, Entry, error) {
	e, err := l.ReadEntry(offset)
	if err != nil {
		return nil, Entry{}, err
	}
	if e.Header.Kind != KindCheckpoint {
		return nil, Entry{}, &FrameError{Domain: DomainCheckpoint, Offset: offset,
			Err: fmt.Errorf("%w: entry is a %s, not a checkpoint", ErrInconsistent, e.Header.Kind)}
	}
	cp, err := decodeCheckpoint(e.Header.WireVersion, e.Payload)
	if err != nil {
		return nil, Entry{}, &FrameError{Domain: DomainCheckpoint, Offset: offset, Err: err}
	}
	return cp, e, nil
}

func decodeCheckpoint(version uint16, body []byte) (*Checkpoint, error) {
	if version != CheckpointVersion {
		return nil, fmt.Errorf("%w: checkpoint version %d", ErrUnsupportedVersion, version)
	}
	var cp Checkpoint
	if err := json.Unmarshal(body, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return &cp, nil
}
