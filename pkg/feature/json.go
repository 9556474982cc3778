package feature

import (
	"encoding/json"
	"fmt"
)

// JSONCodec encodes changes as a JSON object that repeats the change kind,
// so a payload attached to the wrong record kind is detected on decode.
type JSONCodec[S, D any] struct {
	ID      string
	Version uint16
}

type jsonChange[S, D any] struct {
	Kind     Kind `json:"kind"`
	Snapshot *S   `json:"snapshot,omitempty"`
	Deltas   []D  `json:"deltas,omitempty"`
}

// FeatureID implements Codec.
func (c JSONCodec[S, D]) FeatureID() string { return c.ID }

// WireVersion implements Codec.
func (c JSONCodec[S, D]) WireVersion() uint16 { return c.Version }

// Encode implements Codec.
func (c JSONCodec[S, D]) Encode(ch Change[S, D]) (EncodedRecord, error) {
	if err := ch.Validate(); err != nil {
		return EncodedRecord{}, err
	}
	payload, err := json.Marshal(jsonChange[S, D](ch))
	if err != nil {
		return EncodedRecord{}, err
	}
	return EncodedRecord{
		FeatureID: c.ID,
		Version:   c.Version,
		Kind:      ch.Kind,
		Payload:   payload,
	}, nil
}

// Decode implements Codec.
func (c JSONCodec[S, D]) Decode(version uint16, kind Kind, payload []byte) (Change[S, D], error) {
	if version != c.Version {
		return Change[S, D]{}, fmt.Errorf("%w: %s got %d, supports %d", ErrUnsupportedWireVersion, c.ID, version, c.Version)
	}
	var jc jsonChange[S, D]
	if err := json.Unmarshal(payload, &jc); err != nil {
		return Change[S, D]{}, fmt.Errorf("%w: %v", ErrInvalidChange, err)
	}
	if jc.Kind != kind {
		return Change[S, D]{}, fmt.Errorf("%w: record is %s, payload is %s", ErrKindMismatch, kind, jc.Kind)
	}
	ch := Change[S, D](jc)
	if err := ch.Validate(); err != nil {
		return Change[S, D]{}, err
	}
	return ch, nil
}
