package filesystem

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Folder returns a copy of the folder with id.
func (s *Store) Folder(id uuid.UUID) (FolderMetadata, error) {
	f, ok := s.folders[id]
	if !ok {
		return FolderMetadata{}, fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	return *cloneFolder(f), nil
}

// File returns a copy of the file with id.
func (s *Store) File(id uuid.UUID) (FileMetadata, error) {
	f, ok := s.files[id]
	if !ok {
		return FileMetadata{}, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	return *f, nil
}

// Children lists the direct sub-folders and files of a folder, each sorted by
// name then id.
func (s *Store) Children(id uuid.UUID) ([]FolderMetadata, []FileMetadata, error) {
	if _, ok := s.folders[id]; !ok {
		return nil, nil, fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	folders, files := s.childEntries(id)
	return folders, files, nil
}

// ItemCount returns the number of direct children of a folder.
func (s *Store) ItemCount(id uuid.UUID) (int, error) {
	if _, ok := s.folders[id]; !ok {
		return 0, fmt.Errorf("%w: folder %s", ErrNotFound, id)
	}
	return len(s.children[id]), nil
}

func (s *Store) childEntries(id uuid.UUID) ([]FolderMetadata, []FileMetadata) {
	var folders []FolderMetadata
	var files []FileMetadata
	for child := range s.children[id] {
		if f, ok := s.folders[child]; ok {
			folders = append(folders, *cloneFolder(f))
		} else if f, ok := s.files[child]; ok {
			files = append(files, *f)
		}
	}
	sortFolders(folders)
	sortFiles(files)
	return folders, files
}

// Browse resolves a slash-separated path from the root. Exactly one of the
// returned entries is non-nil on success.
func (s *Store) Browse(p string) (*FolderMetadata, *FileMetadata, error) {
	cur := RootID
	parts := splitPath(p)
	for i, name := range parts {
		child, ok := s.lookupChild(cur, name)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		if f, isFile := s.files[child]; isFile {
			if i != len(parts)-1 {
				return nil, nil, fmt.Errorf("%w: %s: %q is a file", ErrNotFound, p, name)
			}
			file := *f
			return nil, &file, nil
		}
		cur = child
	}
	return cloneFolder(s.folders[cur]), nil, nil
}

// Path returns the absolute path of a folder or file.
func (s *Store) Path(id uuid.UUID) (string, error) {
	var names []string
	cur := id
	if f, ok := s.files[id]; ok {
		names = append(names, f.Name)
		cur = f.ParentID
	} else if _, ok := s.folders[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for cur != RootID {
		f := s.folders[cur]
		names = append(names, f.Name)
		cur = *f.ParentID
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return "/" + strings.Join(names, "/"), nil
}

// Len returns the number of folders (excluding the root) and files.
func (s *Store) Len() (folders, files int) {
	return len(s.folders) - 1, len(s.files)
}
