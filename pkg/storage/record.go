package storage

import (
	"encoding/binary"
	"fmt"
)

// Kind tags what a log entry's body holds.
type Kind uint8

const (
	KindSnapshot   Kind = 1
	KindDelta      Kind = 2
	KindCheckpoint Kind = 3
	KindBlob       Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindDelta:
		return "delta"
	case KindCheckpoint:
		return "checkpoint"
	case KindBlob:
		return "blob"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// bodyDomain returns the AAD domain of the frame following a header of kind k.
func (k Kind) bodyDomain() (Domain, error) {
	switch k {
	case KindSnapshot, KindDelta:
		return DomainPayload, nil
	case KindCheckpoint:
		return DomainCheckpoint, nil
	case KindBlob:
		return DomainBlob, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %d", ErrMalformedRecord, uint8(k))
	}
}

// MaxFeatureIDLength bounds the feature tag stored in a record header.
const MaxFeatureIDLength = 255

// RecordHeader is sealed as its own frame, immediately followed by the body frame.
type RecordHeader struct {
	Kind        Kind
	FeatureID   string
	WireVersion uint16
	Sequence    uint64 // monotonic across the whole log
	PrevOffset  int64  // previous entry of the same feature, 0 for none
}

// MarshalBinary encodes: kind u8, id len u8, id, wire_version u16, sequence u64, prev_offset u64.
func (h RecordHeader) MarshalBinary() ([]byte, error) {
	if len(h.FeatureID) > MaxFeatureIDLength {
		return nil, fmt.Errorf("%w: feature id too long", ErrMalformedRecord)
	}
	if _, err := h.Kind.bodyDomain(); err != nil {
		return nil, err
	}
	b := make([]byte, 0, 2+len(h.FeatureID)+2+8+8)
	b = append(b, byte(h.Kind), byte(len(h.FeatureID)))
	b = append(b, h.FeatureID...)
	b = binary.LittleEndian.AppendUint16(b, h.WireVersion)
	b = binary.LittleEndian.AppendUint64(b, h.Sequence)
	b = binary.LittleEndian.AppendUint64(b, uint64(h.PrevOffset))
	return b, nil
}

// UnmarshalBinary is the inverse of MarshalBinary and rejects trailing bytes.
func (h *RecordHeader) UnmarshalBinary(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("%w: header too short", ErrMalformedRecord)
	}
	kind := Kind(b[0])
	if _, err := kind.bodyDomain(); err != nil {
		return err
	}
	n := int(b[1])
	if len(b) != 2+n+2+8+8 {
		return fmt.Errorf("%w: header is %d bytes, want %d", ErrMalformedRecord, len(b), 2+n+18)
	}
	h.Kind = kind
	h.FeatureID = string(b[2 : 2+n])
	rest := b[2+n:]
	h.WireVersion = binary.LittleEndian.Uint16(rest[0:2])
	h.Sequence = binary.LittleEndian.Uint64(rest[2:10])
	h.PrevOffset = int64(binary.LittleEndian.Uint64(rest[10:18]))
	return nil
}

// Entry is one decoded log entry.
type Entry struct {
	Offset  int64 // offset of the header frame
	End     int64 // offset just past the body frame
	Header  RecordHeader
	Payload []byte
}
