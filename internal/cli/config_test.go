package cli

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/forest6511/vaultfs/pkg/crypto"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), ConfigFileName)
	if err := os.WriteFile(p, []byte(content), perm); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Chmod(p, perm); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	p := writeConfig(t, `
vault: /tmp/test.vfs
compression: brotli
cipher: aes256gcm
kdf:
  memory_kib: 64
  iterations: 1
  parallelism: 1
`, 0600)

	cfg, err := LoadConfig(p, true)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Vault != "/tmp/test.vfs" {
		t.Errorf("Vault = %q", cfg.Vault)
	}

	vc, err := cfg.VaultConfig()
	if err != nil {
		t.Fatalf("VaultConfig() error = %v", err)
	}
	if vc.Compression != crypto.CompressionBrotli {
		t.Errorf("Compression = %v, want brotli", vc.Compression)
	}
	if vc.Cipher != crypto.CipherAES256GCM {
		t.Errorf("Cipher = %v, want aes256gcm", vc.Cipher)
	}
	want := crypto.KDFParams{Memory: 64, Time: 1, Threads: 1}
	if vc.KDF != want {
		t.Errorf("KDF = %+v, want %+v", vc.KDF, want)
	}

	vp, err := cfg.VaultPath()
	if err != nil {
		t.Fatalf("VaultPath() error = %v", err)
	}
	if vp != "/tmp/test.vfs" {
		t.Errorf("VaultPath() = %q", vp)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := LoadConfig(p, false)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	vc, err := cfg.VaultConfig()
	if err != nil {
		t.Fatalf("VaultConfig() error = %v", err)
	}
	if vc.Compression != crypto.CompressionZstd || vc.Cipher != crypto.CipherXChaCha20Poly1305 {
		t.Errorf("defaults = %v/%v", vc.Compression, vc.Cipher)
	}
	if vc.KDF != crypto.DefaultKDFParams() {
		t.Errorf("KDF = %+v, want defaults", vc.KDF)
	}

	if _, err := LoadConfig(p, true); err == nil {
		t.Error("LoadConfig() of missing required file should fail")
	}
}

func TestLoadConfigRejects(t *testing.T) {
	t.Run("symlink", func(t *testing.T) {
		target := writeConfig(t, "vault: x\n", 0600)
		link := filepath.Join(t.TempDir(), "link.yaml")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if _, err := LoadConfig(link, true); !errors.Is(err, ErrConfigSymlink) {
			t.Errorf("LoadConfig() error = %v, want ErrConfigSymlink", err)
		}
	})

	t.Run("world writable", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("permission bits are not enforced on windows")
		}
		p := writeConfig(t, "vault: x\n", 0666)
		if _, err := LoadConfig(p, true); !errors.Is(err, ErrConfigInsecure) {
			t.Errorf("LoadConfig() error = %v, want ErrConfigInsecure", err)
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		p := writeConfig(t, "vault: [unterminated\n", 0600)
		if _, err := LoadConfig(p, true); err == nil {
			t.Error("LoadConfig() should fail on malformed yaml")
		}
	})
}

func TestVaultConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown compression", Config{Compression: "rar"}},
		{"unknown cipher", Config{Cipher: "des"}},
		{"kdf memory too small", Config{KDF: KDFConfig{MemoryKiB: 8, Parallelism: 4}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.cfg.VaultConfig(); err == nil {
				t.Error("VaultConfig() should fail")
			}
		})
	}
}

func TestVaultPathDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	p, err := (&Config{}).VaultPath()
	if err != nil {
		t.Fatalf("VaultPath() error = %v", err)
	}
	if want := filepath.Join(home, "."+AppName, DefaultVaultFileName); p != want {
		t.Errorf("VaultPath() = %q, want %q", p, want)
	}

	p, err = (&Config{Vault: "~/vaults/a.vfs"}).VaultPath()
	if err != nil {
		t.Fatalf("VaultPath() error = %v", err)
	}
	if !strings.HasPrefix(p, home) || filepath.Base(p) != "a.vfs" {
		t.Errorf("VaultPath() = %q, want under %q", p, home)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME applies on linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	p, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath() error = %v", err)
	}
	if want := filepath.Join(dir, AppName, ConfigFileName); p != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", p, want)
	}
}
