package filesystem

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forest6511/vaultfs/pkg/feature"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(WithClock(fixedClock()))
}

func mustFolder(t *testing.T, s *Store, parent uuid.UUID, name string) FolderMetadata {
	t.Helper()
	f, err := s.AddFolder(parent, name)
	if err != nil {
		t.Fatalf("AddFolder(%q) error = %v", name, err)
	}
	return f
}

func mustFile(t *testing.T, s *Store, parent uuid.UUID, name string) FileMetadata {
	t.Helper()
	f, err := s.AddFile(parent, name, BlobRef{ID: uuid.New(), SizeBytes: 3, ManifestOffset: 200})
	if err != nil {
		t.Fatalf("AddFile(%q) error = %v", name, err)
	}
	return f
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a.txt", "a.txt", false},
		{"  spaced  ", "spaced", false},
		{"café", "café", false},
		{"", "", true},
		{"   ", "", true},
		{"a/b", "", true},
		{"nul\x00", "", true},
		{"..", "", true},
		{strings.Repeat("x", MaxNameLength), strings.Repeat("x", MaxNameLength), false},
		{strings.Repeat("x", MaxNameLength+1), "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeName(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidName) {
			t.Errorf("NormalizeName(%q) error = %v, want ErrInvalidName", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddAndBrowse(t *testing.T) {
	s := newTestStore(t)
	docs := mustFolder(t, s, RootID, "docs")
	a := mustFile(t, s, docs.ID, "a.txt")

	folder, file, err := s.Browse("/docs/a.txt")
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if folder != nil || file == nil || file.ID != a.ID {
		t.Fatalf("Browse() = %v, %v; want file %s", folder, file, a.ID)
	}

	folder, file, err = s.Browse("docs/")
	if err != nil || file != nil || folder == nil || folder.ID != docs.ID {
		t.Fatalf("Browse(docs/) = %v, %v, %v", folder, file, err)
	}

	folder, _, err = s.Browse("/")
	if err != nil || !folder.IsRoot() || folder.Name != RootName {
		t.Fatalf("Browse(/) = %v, %v", folder, err)
	}

	if _, _, err := s.Browse("/docs/a.txt/x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Browse() through a file error = %v, want ErrNotFound", err)
	}
	if _, _, err := s.Browse("/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Browse() missing error = %v, want ErrNotFound", err)
	}

	p, err := s.Path(a.ID)
	if err != nil || p != "/docs/a.txt" {
		t.Errorf("Path() = %q, %v; want /docs/a.txt", p, err)
	}
	p, _ = s.Path(RootID)
	if p != "/" {
		t.Errorf("Path(root) = %q, want /", p)
	}
}

func TestNameConflicts(t *testing.T) {
	s := newTestStore(t)
	docs := mustFolder(t, s, RootID, "docs")
	mustFile(t, s, RootID, "readme")

	if _, err := s.AddFolder(RootID, "docs"); !errors.Is(err, ErrNameConflict) {
		t.Errorf("AddFolder() duplicate error = %v", err)
	}
	if _, err := s.AddFile(RootID, "docs", BlobRef{}); !errors.Is(err, ErrNameConflict) {
		t.Errorf("AddFile() with folder name error = %v", err)
	}
	if _, err := s.AddFolder(RootID, "readme"); !errors.Is(err, ErrNameConflict) {
		t.Errorf("AddFolder() with file name error = %v", err)
	}
	if err := s.RenameFolder(docs.ID, "readme"); !errors.Is(err, ErrNameConflict) {
		t.Errorf("RenameFolder() onto sibling error = %v", err)
	}
	if err := s.RenameFolder(docs.ID, " docs "); err != nil {
		t.Errorf("RenameFolder() to own name error = %v", err)
	}
	if _, err := s.AddFile(uuid.New(), "x", BlobRef{}); !errors.Is(err, ErrParentNotFound) {
		t.Errorf("AddFile() without parent error = %v", err)
	}
}

func TestMoveFolderCycle(t *testing.T) {
	s := newTestStore(t)
	a := mustFolder(t, s, RootID, "a")
	b := mustFolder(t, s, a.ID, "b")
	c := mustFolder(t, s, b.ID, "c")

	for _, target := range []uuid.UUID{a.ID, b.ID, c.ID} {
		if err := s.MoveFolder(a.ID, target); !errors.Is(err, ErrCycle) {
			t.Errorf("MoveFolder(a, %s) error = %v, want ErrCycle", target, err)
		}
	}
	if err := s.MoveFolder(c.ID, RootID); err != nil {
		t.Fatalf("MoveFolder(c, root) error = %v", err)
	}
	if p, _ := s.Path(c.ID); p != "/c" {
		t.Errorf("Path(c) = %q, want /c", p)
	}
	folders, _, _ := s.Children(b.ID)
	if len(folders) != 0 {
		t.Errorf("b still lists %d folders after move", len(folders))
	}
	if err := s.MoveFolder(RootID, a.ID); !errors.Is(err, ErrRootImmutable) {
		t.Errorf("MoveFolder(root) error = %v", err)
	}
}

func TestRelocate(t *testing.T) {
	s := newTestStore(t)
	a := mustFolder(t, s, RootID, "a")
	b := mustFolder(t, s, RootID, "b")
	x := mustFile(t, s, a.ID, "x.txt")
	mustFile(t, s, b.ID, "x.txt")
	sub := mustFolder(t, s, a.ID, "sub")
	mustFolder(t, s, b.ID, "sub")
	s.ResetSyncState()

	// The old name is taken in the target; only the new one matters.
	if err := s.RelocateFile(x.ID, b.ID, "y.txt"); err != nil {
		t.Fatalf("RelocateFile() error = %v", err)
	}
	if p, _ := s.Path(x.ID); p != "/b/y.txt" {
		t.Errorf("Path(x) = %q, want /b/y.txt", p)
	}
	if n := s.PendingCount(); n != 1 {
		t.Errorf("PendingCount() = %d, want 1", n)
	}
	if err := s.RelocateFolder(sub.ID, b.ID, "sub2"); err != nil {
		t.Fatalf("RelocateFolder() error = %v", err)
	}
	if p, _ := s.Path(sub.ID); p != "/b/sub2" {
		t.Errorf("Path(sub) = %q, want /b/sub2", p)
	}

	if err := s.RelocateFile(x.ID, a.ID, ""); err != nil {
		t.Fatalf("RelocateFile() keeping name error = %v", err)
	}
	if p, _ := s.Path(x.ID); p != "/a/y.txt" {
		t.Errorf("Path(x) = %q, want /a/y.txt", p)
	}
	mustFile(t, s, b.ID, "z.txt")
	if err := s.RelocateFile(x.ID, b.ID, "z.txt"); !errors.Is(err, ErrNameConflict) {
		t.Errorf("RelocateFile() onto taken name error = %v, want ErrNameConflict", err)
	}
	inner := mustFolder(t, s, a.ID, "inner")
	if err := s.RelocateFolder(a.ID, inner.ID, "loop"); !errors.Is(err, ErrCycle) {
		t.Errorf("RelocateFolder() below itself error = %v, want ErrCycle", err)
	}
}

func TestDeleteFolder(t *testing.T) {
	s := newTestStore(t)
	a := mustFolder(t, s, RootID, "a")
	b := mustFolder(t, s, a.ID, "b")
	mustFile(t, s, a.ID, "f1")
	mustFile(t, s, b.ID, "f2")

	if err := s.DeleteFolder(a.ID, false); !errors.Is(err, ErrFolderNotEmpty) {
		t.Fatalf("DeleteFolder(non-empty) error = %v", err)
	}
	if err := s.DeleteFolder(RootID, true); !errors.Is(err, ErrRootImmutable) {
		t.Errorf("DeleteFolder(root) error = %v", err)
	}

	s.ResetSyncState()
	if err := s.DeleteFolder(a.ID, true); err != nil {
		t.Fatalf("DeleteFolder(cascade) error = %v", err)
	}
	if folders, files := s.Len(); folders != 0 || files != 0 {
		t.Errorf("Len() after cascade = %d, %d", folders, files)
	}

	var ops []Op
	for _, d := range s.pending {
		ops = append(ops, d.Op)
	}
	want := []Op{OpDeleteFile, OpDeleteFile, OpDeleteFolder, OpDeleteFolder}
	if !reflect.DeepEqual(ops, want) {
		t.Errorf("cascade deltas = %v, want %v", ops, want)
	}
	if s.pending[2].ID != b.ID || s.pending[3].ID != a.ID {
		t.Error("cascade must delete the sub-folder before its parent")
	}
}

func TestChildrenSorted(t *testing.T) {
	s := newTestStore(t)
	for _, n := range []string{"c", "a", "b"} {
		mustFolder(t, s, RootID, n)
		mustFile(t, s, RootID, n+".txt")
	}
	folders, files, err := s.Children(RootID)
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	var names []string
	for _, f := range folders {
		names = append(names, f.Name)
	}
	for _, f := range files {
		names = append(names, f.Name)
	}
	want := []string{"a", "b", "c", "a.txt", "b.txt", "c.txt"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Children() names = %v, want %v", names, want)
	}
	if _, _, err := s.Children(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Children(missing) error = %v", err)
	}
}

func TestMkdirAll(t *testing.T) {
	s := newTestStore(t)
	f, err := s.MkdirAll("/x/y/z")
	if err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if p, _ := s.Path(f.ID); p != "/x/y/z" {
		t.Errorf("Path() = %q", p)
	}
	again, err := s.MkdirAll("x/y/z")
	if err != nil || again.ID != f.ID {
		t.Errorf("MkdirAll() second call = %v, %v; want existing folder", again.ID, err)
	}
	mustFile(t, s, f.ID, "leaf")
	if _, err := s.MkdirAll("/x/y/z/leaf/deeper"); !errors.Is(err, ErrNameConflict) {
		t.Errorf("MkdirAll() through file error = %v", err)
	}
}

// buildTree applies a varied sequence of mutations.
func buildTree(t *testing.T, s *Store) {
	t.Helper()
	docs := mustFolder(t, s, RootID, "docs")
	tmp := mustFolder(t, s, RootID, "tmp")
	sub := mustFolder(t, s, docs.ID, "sub")
	a := mustFile(t, s, docs.ID, "a.txt")
	b := mustFile(t, s, tmp.ID, "b.txt")
	if err := s.RenameFile(a.ID, "renamed.txt"); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveFile(b.ID, sub.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateFileBlob(b.ID, BlobRef{ID: uuid.New(), SizeBytes: 10, ManifestOffset: 999}); err != nil {
		t.Fatal(err)
	}
	if err := s.MoveFolder(sub.ID, tmp.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.RenameFolder(tmp.ID, "scratch"); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFolder(docs.ID, true); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshotDeltaEquivalence(t *testing.T) {
	src := newTestStore(t)
	buildTree(t, src)
	codec := Codec()

	deltas := src.PendingChanges()
	if deltas == nil || deltas.Kind != feature.KindDelta {
		t.Fatalf("PendingChanges() = %+v, want deltas", deltas)
	}
	viaDeltas := New()
	bd := feature.Bind[State, Delta](viaDeltas, codec)
	rec, err := codec.Encode(*deltas)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := bd.Apply(rec.Version, rec.Kind, rec.Payload); err != nil {
		t.Fatalf("Apply(deltas) error = %v", err)
	}

	viaSnapshot := New()
	srec, err := feature.Bind[State, Delta](src, codec).Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if err := feature.Bind[State, Delta](viaSnapshot, codec).Apply(srec.Version, srec.Kind, srec.Payload); err != nil {
		t.Fatalf("Apply(snapshot) error = %v", err)
	}

	want := src.Snapshot()
	if got := viaDeltas.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("state via deltas = %+v\nwant %+v", got, want)
	}
	if got := viaSnapshot.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("state via snapshot = %+v\nwant %+v", got, want)
	}
	if viaDeltas.PendingCount() != 0 || viaSnapshot.PendingCount() != 0 {
		t.Error("Apply() must not record pending deltas")
	}
}

func TestCompactionThreshold(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < feature.CompactionThreshold-1; i++ {
		mustFolder(t, s, RootID, "d"+strings.Repeat("x", i+1))
	}
	if c := s.PendingChanges(); c.Kind != feature.KindDelta || len(c.Deltas) != feature.CompactionThreshold-1 {
		t.Fatalf("PendingChanges() below threshold = %s with %d deltas", c.Kind, len(c.Deltas))
	}
	mustFolder(t, s, RootID, "last")
	c := s.PendingChanges()
	if c.Kind != feature.KindSnapshot || len(c.Snapshot.Folders) != feature.CompactionThreshold {
		t.Fatalf("PendingChanges() at threshold = %+v", c)
	}
	s.ResetSyncState()
	if s.PendingChanges() != nil {
		t.Error("PendingChanges() after ResetSyncState() is not nil")
	}
}

func TestApplyRejectsInvalidDeltas(t *testing.T) {
	s := newTestStore(t)
	orphan := uuid.New()
	tests := []struct {
		name    string
		delta   Delta
		wantErr error
	}{
		{"missing parent", Delta{Op: OpPutFolder, Folder: &FolderMetadata{ID: uuid.New(), ParentID: &orphan, Name: "x"}}, ErrParentNotFound},
		{"delete missing file", Delta{Op: OpDeleteFile, ID: uuid.New()}, ErrNotFound},
		{"delete root", Delta{Op: OpDeleteFolder, ID: RootID}, ErrRootImmutable},
		{"unknown op", Delta{Op: "chmod"}, feature.ErrInvalidChange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Apply(Change{Kind: feature.KindDelta, Deltas: []Delta{tt.delta}})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Apply() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("unreachable snapshot folder", func(t *testing.T) {
		st := State{Folders: []FolderMetadata{{ID: uuid.New(), ParentID: &orphan, Name: "lost"}}}
		if err := s.Apply(Change{Kind: feature.KindSnapshot, Snapshot: &st}); !errors.Is(err, ErrParentNotFound) {
			t.Errorf("Apply(snapshot) error = %v", err)
		}
	})
}
