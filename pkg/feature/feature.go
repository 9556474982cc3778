// Package feature defines the contract between the record log and the
// application state layered on top of it.
//
// A feature owns a typed store and a codec. The session never looks inside a
// payload: it asks the feature for pending changes, appends the encoded
// records, and on open feeds every decoded record back through Apply.
package feature

import (
	"errors"
	"fmt"
)

// CompactionThreshold is the number of pending deltas at which a store asks
// for a snapshot instead.
const CompactionThreshold = 32

// Feature errors
var (
	ErrUnsupportedWireVersion = errors.New("feature: unsupported wire version")
	ErrKindMismatch           = errors.New("feature: payload kind does not match record kind")
	ErrInvalidChange          = errors.New("feature: invalid change")
)

// Kind mirrors the snapshot and delta record kinds of the log.
type Kind uint8

const (
	KindSnapshot Kind = 1
	KindDelta    Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindDelta:
		return "delta"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Change is one unit of state transfer: either a full snapshot or an ordered
// batch of deltas.
type Change[S, D any] struct {
	Kind     Kind
	Snapshot *S
	Deltas   []D
}

// Validate checks that the populated fields agree with Kind.
func (c Change[S, D]) Validate() error {
	switch c.Kind {
	case KindSnapshot:
		if c.Snapshot == nil {
			return fmt.Errorf("%w: snapshot change without state", ErrInvalidChange)
		}
	case KindDelta:
		if len(c.Deltas) == 0 {
			return fmt.Errorf("%w: delta change without deltas", ErrInvalidChange)
		}
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidChange, uint8(c.Kind))
	}
	return nil
}

// EncodedRecord is a change serialized by its feature's codec.
type EncodedRecord struct {
	FeatureID string
	Version   uint16
	Kind      Kind
	Payload   []byte
}

// Codec converts typed changes to and from their wire form.
type Codec[S, D any] interface {
	FeatureID() string
	WireVersion() uint16
	Encode(Change[S, D]) (EncodedRecord, error)
	Decode(version uint16, kind Kind, payload []byte) (Change[S, D], error)
}

// Store is the sync surface every feature store implements.
type Store[S, D any] interface {
	// PendingChanges returns nil when nothing changed since the last sync.
	PendingChanges() *Change[S, D]
	ResetSyncState()
	Snapshot() S
	// Apply applies a decoded change without recording deltas.
	Apply(Change[S, D]) error
	// Reset drops all state, leaving an empty store.
	Reset()
}

// Feature is the untyped view of a store and codec that the session drives.
type Feature interface {
	ID() string
	WireVersion() uint16
	// Pending encodes the store's pending changes, or returns nil.
	Pending() (*EncodedRecord, error)
	// Snapshot encodes the complete state as a snapshot record.
	Snapshot() (EncodedRecord, error)
	Apply(version uint16, kind Kind, payload []byte) error
	ResetSyncState()
	Reset()
}
