package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/forest6511/vaultfs/pkg/crypto"
	"github.com/forest6511/vaultfs/pkg/secrets"
	"github.com/forest6511/vaultfs/pkg/vault"
)

const testPassword = "test-password-123"

// setupTestVault creates a vault with one committed login.
func setupTestVault(t *testing.T) *vault.Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.vfs")
	s, err := vault.Create(path, testPassword, vault.Config{KDF: crypto.KDFParams{Memory: 64, Time: 1, Threads: 1}})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if _, err := s.Secrets().Add(secrets.NewLogin{Name: "github", Username: "me", Password: "hunter2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	return s
}

func TestBackupAndVerify(t *testing.T) {
	s := setupTestVault(t)
	if _, err := s.Secrets().Add(secrets.NewLogin{Name: "pending", Password: "x"}); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "nested", "backup.vfs")
	result, err := Backup(s, dest, BackupOptions{Password: testPassword})
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if !result.Valid || result.Secrets != 1 || result.Path != dest {
		t.Errorf("Backup result = %+v", result)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("backup not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != FileMode {
		t.Errorf("backup mode = %04o, want %04o", perm, FileMode)
	}
	if info.Size() != result.Size {
		t.Errorf("backup size = %d, result size = %d", info.Size(), result.Size)
	}

	v, err := Verify(dest, testPassword)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !v.Valid || v.Cipher != "xchacha20poly1305" || v.LastSequence != result.LastSequence {
		t.Errorf("Verify = %+v", v)
	}

	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("destination directory has %d entries, want 1", len(entries))
	}
}

func TestBackupTargets(t *testing.T) {
	s := setupTestVault(t)

	if _, err := Backup(s, s.Path(), BackupOptions{Password: testPassword, Force: true}); !errors.Is(err, ErrSamePath) {
		t.Errorf("backup onto itself error = %v, want ErrSamePath", err)
	}
	if _, err := Backup(s, filepath.Join(t.TempDir(), "b"), BackupOptions{}); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("empty password error = %v, want ErrEmptyPassword", err)
	}

	dest := filepath.Join(t.TempDir(), "existing")
	if err := os.WriteFile(dest, []byte("keep"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Backup(s, dest, BackupOptions{Password: testPassword}); !errors.Is(err, ErrTargetExists) {
		t.Errorf("existing destination error = %v, want ErrTargetExists", err)
	}
	if _, err := Backup(s, dest, BackupOptions{Password: testPassword, Force: true}); err != nil {
		t.Errorf("forced backup failed: %v", err)
	}
}

func TestBackupWrongPasswordLeavesNoFile(t *testing.T) {
	s := setupTestVault(t)
	dest := filepath.Join(t.TempDir(), "backup.vfs")

	_, err := Backup(s, dest, BackupOptions{Password: "not-the-password"})
	if !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("Backup error = %v, want ErrVerifyFailed", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 0 {
		t.Errorf("failed backup left %d files behind", len(entries))
	}
}

func TestVerifyInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	if err := os.WriteFile(path, []byte("not a vault"), 0600); err != nil {
		t.Fatal(err)
	}
	r, err := Verify(path, testPassword)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if r.Valid || r.Error == "" {
		t.Errorf("Verify = %+v, want invalid with error", r)
	}
}

func TestRestore(t *testing.T) {
	s := setupTestVault(t)
	backupPath := filepath.Join(t.TempDir(), "backup.vfs")
	if _, err := Backup(s, backupPath, BackupOptions{Password: testPassword}); err != nil {
		t.Fatal(err)
	}

	// Diverge the live vault after the backup.
	if _, err := s.Secrets().Add(secrets.NewLogin{Name: "later", Password: "y"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	vaultPath := s.Path()
	s.Close()

	if _, err := Restore(backupPath, RestoreOptions{VaultPath: vaultPath, Password: testPassword}); !errors.Is(err, ErrTargetExists) {
		t.Fatalf("Restore without Force error = %v, want ErrTargetExists", err)
	}

	dry, err := Restore(backupPath, RestoreOptions{VaultPath: vaultPath, Password: testPassword, Force: true, DryRun: true})
	if err != nil {
		t.Fatalf("dry-run Restore failed: %v", err)
	}
	if !dry.DryRun || !dry.Replaced || dry.Backup.Secrets != 1 {
		t.Errorf("dry-run result = %+v", dry)
	}

	res, err := Restore(backupPath, RestoreOptions{VaultPath: vaultPath, Password: testPassword, Force: true})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !res.Replaced || res.Backup.Path != vaultPath {
		t.Errorf("Restore result = %+v", res)
	}

	r, err := vault.Open(vaultPath, testPassword)
	if err != nil {
		t.Fatalf("Open restored vault: %v", err)
	}
	defer r.Close()
	if _, err := r.Secrets().Lookup(secrets.RootFolder, "later"); err == nil {
		t.Error("restored vault still has the login added after the backup")
	}
	if _, err := r.Secrets().Lookup(secrets.RootFolder, "github"); err != nil {
		t.Errorf("restored vault lost github: %v", err)
	}
}

func TestRestoreWrongPasswordKeepsVault(t *testing.T) {
	s := setupTestVault(t)
	backupPath := filepath.Join(t.TempDir(), "backup.vfs")
	if _, err := Backup(s, backupPath, BackupOptions{Password: testPassword}); err != nil {
		t.Fatal(err)
	}
	vaultPath := s.Path()
	s.Close()
	before, _ := os.ReadFile(vaultPath)

	_, err := Restore(backupPath, RestoreOptions{VaultPath: vaultPath, Password: "wrong", Force: true})
	if !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("Restore error = %v, want ErrVerifyFailed", err)
	}
	after, _ := os.ReadFile(vaultPath)
	if string(before) != string(after) {
		t.Error("failed restore modified the vault")
	}
}
