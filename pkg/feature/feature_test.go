package feature

import (
	"errors"
	"testing"
)

type counterState struct {
	Total int `json:"total"`
}

type counterDelta struct {
	Add int `json:"add"`
}

type counterStore struct {
	state   counterState
	pending []counterDelta
}

func (s *counterStore) add(n int) {
	s.state.Total += n
	s.pending = append(s.pending, counterDelta{Add: n})
}

func (s *counterStore) PendingChanges() *Change[counterState, counterDelta] {
	switch {
	case len(s.pending) == 0:
		return nil
	case len(s.pending) >= CompactionThreshold:
		snap := s.state
		return &Change[counterState, counterDelta]{Kind: KindSnapshot, Snapshot: &snap}
	}
	return &Change[counterState, counterDelta]{Kind: KindDelta, Deltas: append([]counterDelta(nil), s.pending...)}
}

func (s *counterStore) ResetSyncState()       { s.pending = nil }
func (s *counterStore) Snapshot() counterState { return s.state }
func (s *counterStore) Reset()                 { *s = counterStore{} }

func (s *counterStore) Apply(c Change[counterState, counterDelta]) error {
	if c.Kind == KindSnapshot {
		s.state = *c.Snapshot
		return nil
	}
	for _, d := range c.Deltas {
		s.state.Total += d.Add
	}
	return nil
}

var counterCodec = JSONCodec[counterState, counterDelta]{ID: "counter", Version: 1}

func TestBindingRoundTrip(t *testing.T) {
	src := &counterStore{}
	b := Bind[counterState, counterDelta](src, counterCodec)

	rec, err := b.Pending()
	if err != nil || rec != nil {
		t.Fatalf("Pending() on clean store = %v, %v; want nil, nil", rec, err)
	}

	src.add(3)
	src.add(4)
	rec, err = b.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if rec.FeatureID != "counter" || rec.Version != 1 || rec.Kind != KindDelta {
		t.Errorf("Pending() = %+v", rec)
	}

	dst := &counterStore{}
	if err := Bind[counterState, counterDelta](dst, counterCodec).Apply(rec.Version, rec.Kind, rec.Payload); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if dst.state.Total != 7 {
		t.Errorf("Total after Apply() = %d, want 7", dst.state.Total)
	}
	if len(dst.pending) != 0 {
		t.Error("Apply() must not record deltas")
	}

	b.ResetSyncState()
	if rec, _ := b.Pending(); rec != nil {
		t.Error("Pending() after ResetSyncState() is not nil")
	}
}

func TestPendingSwitchesToSnapshot(t *testing.T) {
	s := &counterStore{}
	b := Bind[counterState, counterDelta](s, counterCodec)

	for i := 0; i < CompactionThreshold-1; i++ {
		s.add(1)
	}
	rec, err := b.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if rec.Kind != KindDelta {
		t.Errorf("Pending() with %d deltas kind = %s, want delta", CompactionThreshold-1, rec.Kind)
	}

	s.add(1)
	rec, err = b.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if rec.Kind != KindSnapshot {
		t.Errorf("Pending() with %d deltas kind = %s, want snapshot", CompactionThreshold, rec.Kind)
	}

	dst := &counterStore{}
	if err := Bind[counterState, counterDelta](dst, counterCodec).Apply(rec.Version, rec.Kind, rec.Payload); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if dst.state.Total != CompactionThreshold {
		t.Errorf("Total = %d, want %d", dst.state.Total, CompactionThreshold)
	}
}

func TestJSONCodecDecodeErrors(t *testing.T) {
	snap := counterState{Total: 5}
	rec, err := counterCodec.Encode(Change[counterState, counterDelta]{Kind: KindSnapshot, Snapshot: &snap})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name    string
		version uint16
		kind    Kind
		payload []byte
		wantErr error
	}{
		{"future version", 2, KindSnapshot, rec.Payload, ErrUnsupportedWireVersion},
		{"kind mismatch", 1, KindDelta, rec.Payload, ErrKindMismatch},
		{"garbage", 1, KindSnapshot, []byte("{not json"), ErrInvalidChange},
		{"empty delta", 1, KindDelta, []byte(`{"kind":2}`), ErrInvalidChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := counterCodec.Decode(tt.version, tt.kind, tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangeValidate(t *testing.T) {
	if err := (Change[counterState, counterDelta]{Kind: KindSnapshot}).Validate(); !errors.Is(err, ErrInvalidChange) {
		t.Errorf("Validate() snapshot without state error = %v", err)
	}
	if err := (Change[counterState, counterDelta]{Kind: 9}).Validate(); !errors.Is(err, ErrInvalidChange) {
		t.Errorf("Validate() unknown kind error = %v", err)
	}
}
