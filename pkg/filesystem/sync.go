package filesystem

import (
	"fmt"
	"sort"

	"github.com/forest6511/vaultfs/pkg/feature"
)

// Change is a filesystem snapshot or delta batch.
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

// Snapshot returns the complete tree sorted by id.
func (s *Store) Snapshot() State {
	st := State{
		Folders: make([]FolderMetadata, 0, len(s.folders)-1),
		Files:   make([]FileMetadata, 0, len(s.files)),
	}
	for id, f := range s.folders {
		if id != RootID {
			st.Folders = append(st.Folders, *cloneFolder(f))
		}
	}
	for _, f := range s.files {
		st.Files = append(st.Files, *f)
	}
	sort.Slice(st.Folders, func(i, j int) bool { return st.Folders[i].ID.String() < st.Folders[j].ID.String() })
	sort.Slice(st.Files, func(i, j int) bool { return st.Files[i].ID.String() < st.Files[j].ID.String() })
	return st
}

// Apply replaces the tree with a snapshot or replays deltas in order.
// Every invariant is re-checked; nothing is recorded as pending.
func (s *Store) Apply(c Change) error {
	switch c.Kind {
	case feature.KindSnapshot:
		return s.applySnapshot(c.Snapshot)
	case feature.KindDelta:
		for i, d := range c.Deltas {
			if err := s.applyDelta(d); err != nil {
				return fmt.Errorf("filesystem: delta %d (%s %s): %w", i, d.Op, d.ID, err)
			}
		}
		return nil
	}
	return fmt.Errorf("%w: kind %s", feature.ErrInvalidChange, c.Kind)
}

func (s *Store) applyDelta(d Delta) error {
	switch d.Op {
	case OpPutFolder:
		if d.Folder == nil {
			return fmt.Errorf("%w: put_folder without folder", feature.ErrInvalidChange)
		}
		return s.putFolder(*d.Folder)
	case OpPutFile:
		if d.File == nil {
			return fmt.Errorf("%w: put_file without file", feature.ErrInvalidChange)
		}
		return s.putFile(*d.File)
	case OpDeleteFolder:
		return s.removeFolder(d.ID)
	case OpDeleteFile:
		return s.removeFile(d.ID)
	}
	return fmt.Errorf("%w: unknown op %q", feature.ErrInvalidChange, d.Op)
}

// applySnapshot inserts folders parents-first so every put sees its parent.
func (s *Store) applySnapshot(st *State) error {
	s.Reset()

	byParent := make(map[string][]FolderMetadata)
	for _, f := range st.Folders {
		if f.ParentID == nil {
			return fmt.Errorf("filesystem: snapshot folder %s: %w", f.ID, ErrRootImmutable)
		}
		byParent[f.ParentID.String()] = append(byParent[f.ParentID.String()], f)
	}
	queue := []string{RootID.String()}
	inserted := 0
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, f := range byParent[parent] {
			if err := s.putFolder(f); err != nil {
				return fmt.Errorf("filesystem: snapshot folder %s: %w", f.ID, err)
			}
			inserted++
			queue = append(queue, f.ID.String())
		}
	}
	if inserted != len(st.Folders) {
		return fmt.Errorf("filesystem: snapshot has %d folders unreachable from the root: %w",
			len(st.Folders)-inserted, ErrParentNotFound)
	}
	for _, f := range st.Files {
		if err := s.putFile(f); err != nil {
			return fmt.Errorf("filesystem: snapshot file %s: %w", f.ID, err)
		}
	}
	return nil
}
