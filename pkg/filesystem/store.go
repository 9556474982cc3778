package filesystem

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/vaultfs/pkg/feature"
)

// Store is the in-memory filesystem tree. It is not safe for concurrent use.
type Store struct {
	folders  map[uuid.UUID]*FolderMetadata
	files    map[uuid.UUID]*FileMetadata
	children map[uuid.UUID]map[uuid.UUID]struct{}
	pending  []Delta
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns an empty tree holding only the root folder.
func New(opts ...Option) *Store {
	s := &Store{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	s.Reset()
	return s
}

// Codec returns the wire codec for filesystem records.
func Codec() feature.Codec[State, Delta] {
	return feature.JSONCodec[State, Delta]{ID: FeatureID, Version: WireVersion}
}

// Reset drops every entry and pending delta.
func (s *Store) Reset() {
	s.folders = map[uuid.UUID]*FolderMetadata{
		RootID: {ID: RootID, Name: RootName},
	}
	s.files = make(map[uuid.UUID]*FileMetadata)
	s.children = make(map[uuid.UUID]map[uuid.UUID]struct{})
	s.pending = nil
}

// NormalizeName returns name in NFC form with surrounding space trimmed, or
// ErrInvalidName if it cannot be used as an entry name.
func NormalizeName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len(name) > MaxNameLength:
		return "", fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, MaxNameLength)
	case strings.ContainsAny(name, "/\x00"):
		return "", fmt.Errorf("%w: name cannot contain '/' or NUL", ErrInvalidName)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	}
	return name, nil
}

// AddFolder creates a folder named name under parent.
func (s *Store) AddFolder(parent uuid.UUID, name string) (FolderMetadata, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return FolderMetadata{}, err
	}
	now := s.now()
	p := parent
	f := FolderMetadata{ID: uuid.New(), ParentID: &p, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.putFolder(f); err != nil {
		return FolderMetadata{}, err
	}
	s.record(Delta{Op: OpPutFolder, Folder: cloneFolder(&f), ID: f.ID})
	return f, nil
}

// AddFile creates a file named name under parent whose content is blob.
func (s *Store) AddFile(parent uuid.UUID, name string, blob BlobRef) (FileMetadata, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return FileMetadata{}, err
	}
	now := s.now()
	f := FileMetadata{ID: uuid.New(), ParentID: parent, Name: name, Blob: blob, CreatedAt: now, UpdatedAt: now}
	if err := s.putFile(f); err != nil {
		return FileMetadata{}, err
	}
	s.record(Delta{Op: OpPutFile, File: &f, ID: f.ID})
	return f, nil
}

// RenameFolder changes a folder's name within its current parent.
func (s *Store) RenameFolder(id uuid.UUID, name string) error {
	return s.updateFolder(id, func(f *FolderMetadata) error {
		n, err := NormalizeName(name)
		f.Name = n
		return err
	})
}

// MoveFolder re-parents a folder. Moving a folder below itself fails with ErrCycle.
func (s *Store) MoveFolder(id, newParent uuid.UUID) error {
	return s.updateFolder(id, func(f *FolderMetadata) error {
		p := newParent
		f.ParentID = &p
		return nil
	})
}

// RenameFile changes a file's name within its current folder.
func (s *Store) RenameFile(id uuid.UUID, name string) error {
	return s.updateFile(id, func(f *FileMetadata) error {
		n, err := NormalizeName(name)
		f.Name = n
		return err
	})
}

// MoveFile moves a file into another folder.
func (s *Store) MoveFile(id, newParent uuid.UUID) error {
	return s.updateFile(id, func(f *FileMetadata) error {
		f.ParentID = newParent
		return nil
	})
}

// RelocateFile moves a file into parent under name in one step, so only the
// final (parent, name) must be free. An empty name keeps the current one.
func (s *Store) RelocateFile(id, parent uuid.UUID, name string) error {
	return s.updateFile(id, func(f *FileMetadata) error {
		f.ParentID = parent
		if name == "" {
			return nil
		}
		n, err := NormalizeName(name)
		f.Name = n
		return err
	})
}

// RelocateFolder is RelocateFile for folders. Moving a folder below itself
// fails with ErrCycle.
func (s *Store) RelocateFolder(id, parent uuid.UUID, name string) error {
	return s.updateFolder(id, func(f *FolderMetadata) error {
		p := parent
		f.ParentID = &p
		if name == "" {
			return nil
		}
		n, err := NormalizeName(name)
		f.Name = n
		return err
	})
}

// UpdateFileBlob points a file at new content.
func (s *Store) UpdateFileBlob(id uuid.UUID, blob BlobRef) error {
	return s.updateFile(id, func(f *FileMetadata) error {
		f.Blob = blob
		return nil
	})
}

func (s *Store) updateFolder(id uuid.UUID, mutate func(*FolderMetadata) error) error {
	if id == RootID {
		return ErrRootImmutable
	}
	cur, ok := s.folders[id]
	if !ok {
		return fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	f := *cloneFolder(cur)
	if err := mutate(&f); err != nil {
		return err
	}
	f.UpdatedAt = s.now()
	if err := s.putFolder(f); err != nil {
		return err
	}
	s.record(Delta{Op: OpPutFolder, Folder: cloneFolder(&f), ID: id})
	return nil
}

func (s *Store) updateFile(id uuid.UUID, mutate func(*FileMetadata) error) error {
	cur, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	f := *cur
	if err := mutate(&f); err != nil {
		return err
	}
	f.UpdatedAt = s.now()
	if err := s.putFile(f); err != nil {
		return err
	}
	s.record(Delta{Op: OpPutFile, File: &f, ID: id})
	return nil
}

// DeleteFile removes a file. Its blob stays in the log.
func (s *Store) DeleteFile(id uuid.UUID) error {
	if err := s.removeFile(id); err != nil {
		return err
	}
	s.record(Delta{Op: OpDeleteFile, ID: id})
	return nil
}

// DeleteFolder removes a folder. A non-empty folder is only removed when
// cascade is set, in which case its files go first and then its sub-folders,
// depth-first.
func (s *Store) DeleteFolder(id uuid.UUID, cascade bool) error {
	if id == RootID {
		return ErrRootImmutable
	}
	if _, ok := s.folders[id]; !ok {
		return fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	if len(s.children[id]) > 0 && !cascade {
		return fmt.Errorf("%w: %d entries", ErrFolderNotEmpty, len(s.children[id]))
	}
	return s.deleteTree(id)
}

func (s *Store) deleteTree(id uuid.UUID) error {
	folders, files := s.childEntries(id)
	for _, f := range files {
		if err := s.DeleteFile(f.ID); err != nil {
			return err
		}
	}
	for _, f := range folders {
		if err := s.deleteTree(f.ID); err != nil {
			return err
		}
	}
	if err := s.removeFolder(id); err != nil {
		return err
	}
	s.record(Delta{Op: OpDeleteFolder, ID: id})
	return nil
}

// MkdirAll resolves p, creating any missing folders, and returns the last one.
func (s *Store) MkdirAll(p string) (FolderMetadata, error) {
	cur := RootID
	for _, name := range splitPath(p) {
		if child, ok := s.lookupChild(cur, name); ok {
			if _, isFolder := s.folders[child]; !isFolder {
				return FolderMetadata{}, fmt.Errorf("%w: %q is a file", ErrNameConflict, name)
			}
			cur = child
			continue
		}
		f, err := s.AddFolder(cur, name)
		if err != nil {
			return FolderMetadata{}, err
		}
		cur = f.ID
	}
	return s.Folder(cur)
}

func (s *Store) record(d Delta) {
	s.pending = append(s.pending, d)
}

// putFolder inserts or replaces f after checking every tree invariant.
func (s *Store) putFolder(f FolderMetadata) error {
	if f.ID == RootID || f.ParentID == nil {
		return ErrRootImmutable
	}
	parent := *f.ParentID
	if _, ok := s.folders[parent]; !ok {
		return fmt.Errorf("%w: %s", ErrParentNotFound, parent)
	}
	if _, ok := s.files[f.ID]; ok {
		return fmt.Errorf("%w: id %s is a file", ErrNameConflict, f.ID)
	}
	for cur := parent; cur != RootID; cur = *s.folders[cur].ParentID {
		if cur == f.ID {
			return ErrCycle
		}
	}
	if err := s.checkName(parent, f.Name, f.ID); err != nil {
		return err
	}
	if old, ok := s.folders[f.ID]; ok {
		s.unlink(*old.ParentID, f.ID)
	}
	s.folders[f.ID] = cloneFolder(&f)
	s.link(parent, f.ID)
	return nil
}

func (s *Store) putFile(f FileMetadata) error {
	if _, ok := s.folders[f.ParentID]; !ok {
		return fmt.Errorf("%w: %s", ErrParentNotFound, f.ParentID)
	}
	if _, ok := s.folders[f.ID]; ok {
		return fmt.Errorf("%w: id %s is a folder", ErrNameConflict, f.ID)
	}
	if err := s.checkName(f.ParentID, f.Name, f.ID); err != nil {
		return err
	}
	if old, ok := s.files[f.ID]; ok {
		s.unlink(old.ParentID, f.ID)
	}
	s.files[f.ID] = &f
	s.link(f.ParentID, f.ID)
	return nil
}

func (s *Store) removeFile(id uuid.UUID) error {
	f, ok := s.files[id]
	if !ok {
		return fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	s.unlink(f.ParentID, id)
	delete(s.files, id)
	return nil
}

func (s *Store) removeFolder(id uuid.UUID) error {
	if id == RootID {
		return ErrRootImmutable
	}
	f, ok := s.folders[id]
	if !ok {
		return fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	if len(s.children[id]) > 0 {
		return ErrFolderNotEmpty
	}
	s.unlink(*f.ParentID, id)
	delete(s.folders, id)
	delete(s.children, id)
	return nil
}

// checkName enforces unique names among the folders and files of parent.
func (s *Store) checkName(parent uuid.UUID, name string, self uuid.UUID) error {
	if id, ok := s.lookupChild(parent, name); ok && id != self {
		return fmt.Errorf("%w: %q", ErrNameConflict, name)
	}
	return nil
}

func (s *Store) lookupChild(parent uuid.UUID, name string) (uuid.UUID, bool) {
	for id := range s.children[parent] {
		if f, ok := s.folders[id]; ok && f.Name == name {
			return id, true
		}
		if f, ok := s.files[id]; ok && f.Name == name {
			return id, true
		}
	}
	return uuid.Nil, false
}

func (s *Store) link(parent, child uuid.UUID) {
	set, ok := s.children[parent]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.children[parent] = set
	}
	set[child] = struct{}{}
}

func (s *Store) unlink(parent, child uuid.UUID) {
	delete(s.children[parent], child)
	if len(s.children[parent]) == 0 {
		delete(s.children, parent)
	}
}

func cloneFolder(f *FolderMetadata) *FolderMetadata {
	c := *f
	if f.ParentID != nil {
		p := *f.ParentID
		c.ParentID = &p
	}
	return &c
}

func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part = strings.TrimSpace(part); part != "" && part != "." {
			parts = append(parts, norm.NFC.String(part))
		}
	}
	return parts
}

func sortFolders(fs []FolderMetadata) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Name != fs[j].Name {
			return fs[i].Name < fs[j].Name
		}
		return fs[i].ID.String() < fs[j].ID.String()
	})
}

func sortFiles(fs []FileMetadata) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Name != fs[j].Name {
			return fs[i].Name < fs[j].Name
		}
		return fs[i].ID.String() < fs[j].ID.String()
	})
}
