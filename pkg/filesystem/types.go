// Package filesystem implements the virtual folder/file tree stored in a vault.
//
// The tree is an arena of entries keyed by id plus a parent-to-children
// index. The root folder has the nil UUID, no parent and the name "/".
// Every mutation is recorded as a delta until the owning session commits.
package filesystem

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	// FeatureID tags filesystem records in the log.
	FeatureID = "filesystem"

	// WireVersion is the version of the JSON delta and snapshot format.
	WireVersion uint16 = 1

	// MaxNameLength is the maximum entry name length in bytes.
	MaxNameLength = 255

	// RootName is the name of the root folder.
	RootName = "/"
)

// RootID is the id of the implicit root folder.
var RootID = uuid.Nil

// Filesystem errors
var (
	ErrNotFound       = errors.New("filesystem: entry not found")
	ErrParentNotFound = errors.New("filesystem: parent folder not found")
	ErrNameConflict   = errors.New("filesystem: an entry with this name already exists in the folder")
	ErrCycle          = errors.New("filesystem: folder cannot be moved into itself or a descendant")
	ErrFolderNotEmpty = errors.New("filesystem: folder is not empty")
	ErrInvalidName    = errors.New("filesystem: invalid name")
	ErrRootImmutable  = errors.New("filesystem: root folder cannot be modified")
)

// BlobRef points at the blob entry holding a file's content.
type BlobRef struct {
	ID             uuid.UUID `json:"id"`
	SizeBytes      int64     `json:"size_bytes"`
	ManifestOffset int64     `json:"manifest_offset"` // offset of the blob entry header
}

// FolderMetadata describes a folder. ParentID is nil only for the root.
type FolderMetadata struct {
	ID        uuid.UUID  `json:"id"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsRoot reports whether f is the root folder.
func (f FolderMetadata) IsRoot() bool { return f.ParentID == nil }

// FileMetadata describes a file and where its content lives.
type FileMetadata struct {
	ID        uuid.UUID `json:"id"`
	ParentID  uuid.UUID `json:"parent_id"`
	Name      string    `json:"name"`
	Blob      BlobRef   `json:"blob"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is the complete tree, excluding the implicit root, sorted by id.
type State struct {
	Folders []FolderMetadata `json:"folders"`
	Files   []FileMetadata   `json:"files"`
}

// Op names a delta operation.
type Op string

const (
	OpPutFolder    Op = "put_folder"
	OpPutFile      Op = "put_file"
	OpDeleteFolder Op = "delete_folder"
	OpDeleteFile   Op = "delete_file"
)

// Delta is one recorded mutation. Put operations carry the full new
// metadata; delete operations carry only the id.
type Delta struct {
	Op     Op              `json:"op"`
	Folder *FolderMetadata `json:"folder,omitempty"`
	File   *FileMetadata   `json:"file,omitempty"`
	ID     uuid.UUID       `json:"id"`
}
