package feature

import "fmt"

// Binding adapts a typed store and its codec to Feature.
type Binding[S, D any] struct {
	store Store[S, D]
	codec Codec[S, D]
}

// Bind returns the Feature view of store.
func Bind[S, D any](store Store[S, D], codec Codec[S, D]) *Binding[S, D] {
	return &Binding[S, D]{store: store, codec: codec}
}

// ID returns the codec's feature id.
func (b *Binding[S, D]) ID() string { return b.codec.FeatureID() }

// WireVersion returns the codec's current wire version.
func (b *Binding[S, D]) WireVersion() uint16 { return b.codec.WireVersion() }

// Pending implements Feature.
func (b *Binding[S, D]) Pending() (*EncodedRecord, error) {
	c := b.store.PendingChanges()
	if c == nil {
		return nil, nil
	}
	rec, err := b.encode(*c)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Snapshot implements Feature.
func (b *Binding[S, D]) Snapshot() (EncodedRecord, error) {
	s := b.store.Snapshot()
	return b.encode(Change[S, D]{Kind: KindSnapshot, Snapshot: &s})
}

// Apply implements Feature.
func (b *Binding[S, D]) Apply(version uint16, kind Kind, payload []byte) error {
	c, err := b.codec.Decode(version, kind, payload)
	if err != nil {
		return fmt.Errorf("feature: failed to decode %s %s: %w", b.ID(), kind, err)
	}
	if err := b.store.Apply(c); err != nil {
		return fmt.Errorf("feature: failed to apply %s %s: %w", b.ID(), kind, err)
	}
	return nil
}

// ResetSyncState implements Feature.
func (b *Binding[S, D]) ResetSyncState() { b.store.ResetSyncState() }

// Reset implements Feature.
func (b *Binding[S, D]) Reset() { b.store.Reset() }

func (b *Binding[S, D]) encode(c Change[S, D]) (EncodedRecord, error) {
	if err := c.Validate(); err != nil {
		return EncodedRecord{}, err
	}
	rec, err := b.codec.Encode(c)
	if err != nil {
		return EncodedRecord{}, fmt.Errorf("feature: failed to encode %s %s: %w", b.ID(), c.Kind, err)
	}
	return rec, nil
}
