// Package backup copies a vault to a second file and restores it.
//
// A vault file is already encrypted and authenticated end to end, so a
// backup is the committed prefix of the file. Every copy is written to a
// temporary file next to its destination, unlocked and replayed with the
// master password, and only then renamed into place. A failed backup or
// restore leaves the destination untouched.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/forest6511/vaultfs/pkg/vault"
)

// FileMode of backups and restored vaults.
const FileMode = 0600

// BackupOptions configures the backup operation.
type BackupOptions struct {
	// Password verifies the copy. It must be the vault's master password.
	Password string
	// Force replaces an existing file at the destination.
	Force bool
}

// RestoreOptions configures the restore operation.
type RestoreOptions struct {
	// VaultPath is the vault file to replace.
	VaultPath string
	// Password unlocks the backup.
	Password string
	// Force replaces an existing vault.
	Force bool
	// DryRun verifies the backup and reports what would be restored.
	DryRun bool
}

// RestoreResult contains the result of a restore operation.
type RestoreResult struct {
	Backup   *VerifyResult
	// Replaced is true when an existing vault was overwritten.
	Replaced bool
	DryRun   bool
}

// VerifyResult describes a vault copy.
type VerifyResult struct {
	Valid         bool   `json:"valid"`
	Path          string `json:"path"`
	FormatVersion uint16 `json:"format_version,omitempty"`
	Cipher        string `json:"cipher,omitempty"`
	Compression   string `json:"compression,omitempty"`
	Size          int64  `json:"size"`
	LastSequence  uint64 `json:"last_sequence"`
	Folders       int    `json:"folders"`
	Files         int    `json:"files"`
	Secrets       int    `json:"secrets"`
	// Error is set if verification failed.
	Error         string `json:"error,omitempty"`
}

// Backup writes the committed state of s to dest and verifies the copy.
// Pending changes in s are not included.
func Backup(s *vault.Session, dest string, opts BackupOptions, vopts ...vault.Option) (*VerifyResult, error) {
	if opts.Password == "" {
		return nil, ErrEmptyPassword
	}
	if err := checkTarget(s.Path(), dest, opts.Force); err != nil {
		return nil, err
	}

	var result *VerifyResult
	err := writeAtomic(dest, func(f *os.File) error {
		_, err := s.WriteTo(f)
		return err
	}, func(tmp string) error {
		var err error
		result, err = verified(tmp, opts.Password, vopts)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Path = dest
	return result, nil
}

// Restore verifies the backup at backupPath and copies it over
// opts.VaultPath.
func Restore(backupPath string, opts RestoreOptions, vopts ...vault.Option) (*RestoreResult, error) {
	if opts.Password == "" {
		return nil, ErrEmptyPassword
	}
	if opts.VaultPath == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	if err := checkTarget(backupPath, opts.VaultPath, opts.Force); err != nil {
		return nil, err
	}
	_, statErr := os.Stat(opts.VaultPath)
	replaced := statErr == nil

	if opts.DryRun {
		r, err := verified(backupPath, opts.Password, vopts)
		if err != nil {
			return nil, err
		}
		return &RestoreResult{Backup: r, Replaced: replaced, DryRun: true}, nil
	}

	src, err := os.Open(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	defer src.Close()

	var result *VerifyResult
	err = writeAtomic(opts.VaultPath, func(f *os.File) error {
		if _, err := io.Copy(f, src); err != nil {
			return fmt.Errorf("failed to copy backup: %w", err)
		}
		return nil
	}, func(tmp string) error {
		var err error
		result, err = verified(tmp, opts.Password, vopts)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.Path = opts.VaultPath
	return &RestoreResult{Backup: result, Replaced: replaced}, nil
}

// Verify unlocks the vault copy at path and replays it. A copy that fails
// to open is reported through VerifyResult.Error with a nil error.
func Verify(path, password string, vopts ...vault.Option) (*VerifyResult, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	s, err := vault.Open(path, password, vopts...)
	if err != nil {
		return &VerifyResult{Valid: false, Path: path, Error: err.Error()}, nil
	}
	defer s.Close()

	st, err := s.Stats()
	if err != nil {
		return &VerifyResult{Valid: false, Path: path, Error: err.Error()}, nil
	}
	h := s.Header()
	return &VerifyResult{
		Valid:         true,
		Path:          path,
		FormatVersion: h.FormatVersion,
		Cipher:        h.Envelope.Cipher.String(),
		Compression:   h.Envelope.Compression.String(),
		Size:          st.FileSize,
		LastSequence:  st.LastSequence,
		Folders:       st.Folders,
		Files:         st.Files,
		Secrets:       st.Secrets,
	}, nil
}

// verified is Verify with an invalid copy turned into ErrVerifyFailed.
func verified(path, password string, vopts []vault.Option) (*VerifyResult, error) {
	r, err := Verify(path, password, vopts...)
	if err != nil {
		return nil, err
	}
	if !r.Valid {
		return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, r.Error)
	}
	return r, nil
}

func checkTarget(src, dest string, force bool) error {
	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if srcAbs == destAbs {
		return ErrSamePath
	}

	info, err := os.Lstat(destAbs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("failed to access %s: %w", dest, err)
	case info.IsDir():
		return fmt.Errorf("%s is a directory", dest)
	case info.Mode()&os.ModeSymlink != 0:
		return fmt.Errorf("security: refusing to write through symlink: %s", dest)
	case !force:
		return fmt.Errorf("%w: %s", ErrTargetExists, dest)
	}
	if srcInfo, err := os.Stat(srcAbs); err == nil && os.SameFile(srcInfo, info) {
		return ErrSamePath
	}
	return nil
}

// writeAtomic fills a temporary file next to dest with write, syncs it,
// runs check against it and renames it over dest.
func writeAtomic(dest string, write func(f *os.File) error, check func(tmp string) error) (err error) {
	dir, name := filepath.Split(dest)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(FileMode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	if check != nil {
		if err := check(tmpName); err != nil {
			return err
		}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return nil
}
