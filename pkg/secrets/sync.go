package secrets

import (
	"fmt"
	"sort"

	"github.com/forest6511/vaultfs/pkg/feature"
)

// Change is a secrets snapshot or delta batch.
type Change = feature.Change[State, Delta]

// PendingChanges returns the deltas recorded since the last sync, or a
// snapshot once feature.CompactionThreshold deltas have accumulated.
func (s *Store) PendingChanges() *Change {
	switch {
	case len(s.pending) == 0:
		return nil
	case len(s.pending) >= feature.CompactionThreshold:
		snap := s.Snapshot()
		return &Change{Kind: feature.KindSnapshot, Snapshot: &snap}
	}
	return &Change{Kind: feature.KindDelta, Deltas: append([]Delta(nil), s.pending...)}
}

// PendingCount returns the number of unsynced deltas.
func (s *Store) PendingCount() int { return len(s.pending) }

// ResetSyncState forgets the pending deltas after a successful commit.
func (s *Store) ResetSyncState() { s.pending = nil }

// Snapshot returns every entry sorted by id.
func (s *Store) Snapshot() State {
	st := State{Entries: make([]LoginEntry, 0, len(s.entries))}
	for _, e := range s.entries {
		st.Entries = append(st.Entries, *cloneEntry(e))
	}
	sort.Slice(st.Entries, func(i, j int) bool { return st.Entries[i].ID.String() < st.Entries[j].ID.String() })
	return st
}

// Apply replaces the store with a snapshot or replays deltas in order.
func (s *Store) Apply(c Change) error {
	switch c.Kind {
	case feature.KindSnapshot:
		s.Reset()
		for _, e := range c.Snapshot.Entries {
			if err := s.put(e); err != nil {
				return fmt.Errorf("secrets: snapshot entry %s: %w", e.ID, err)
			}
		}
		return nil
	case feature.KindDelta:
		for i, d := range c.Deltas {
			if err := s.applyDelta(d); err != nil {
				return fmt.Errorf("secrets: delta %d (%s %s): %w", i, d.Op, d.ID, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: kind %s", feature.ErrInvalidChange, c.Kind)
}

func (s *Store) applyDelta(d Delta) error {
	switch d.Op {
	case OpPut:
		if d.Entry == nil {
			return fmt.Errorf("%w: put without entry", feature.ErrInvalidChange)
		}
		return s.put(*d.Entry)
	case OpDelete:
		return s.remove(d.ID)
	}
	return fmt.Errorf("%w: unknown op %q", feature.ErrInvalidChange, d.Op)
}
