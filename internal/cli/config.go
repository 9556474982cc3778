package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/forest6511/vaultfs/pkg/crypto"
	"github.com/forest6511/vaultfs/pkg/vault"
)

const (
	// AppName names the config directory and the default vault directory.
	AppName = "vaultctl"

	// ConfigFileName is the name of the config file in the config directory.
	ConfigFileName = "config.yaml"

	// DefaultVaultFileName is the vault file used when no path is configured.
	DefaultVaultFileName = "vault.vfs"
)

// ErrConfigInsecure is returned when the config file is writable by others
var ErrConfigInsecure = errors.New("config file has insecure permissions")

// ErrConfigSymlink is returned when the config file is a symlink
var ErrConfigSymlink = errors.New("config file is a symlink")

// KDFConfig holds Argon2id costs for new vaults. Zero fields take defaults.
type KDFConfig struct {
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Iterations  uint32 `yaml:"iterations"`
	Parallelism uint8  `yaml:"parallelism"`
}

// Config is the vaultctl config file.
type Config struct {
	Vault       string    `yaml:"vault"`
	Compression string    `yaml:"compression"`
	Cipher      string    `yaml:"cipher"`
	KDF         KDFConfig `yaml:"kdf"`
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/vaultctl/config.yaml or the
// platform equivalent.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, AppName, ConfigFileName), nil
}

// LoadConfig reads the config file at path. A missing file yields an empty
// config unless required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to access config file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("%w: %s", ErrConfigSymlink, path)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm&0022 != 0 {
			return nil, fmt.Errorf("%w: %o (group or world writable)", ErrConfigInsecure, perm)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// VaultPath returns the configured vault file, ~/.vaultctl/vault.vfs by default.
func (c *Config) VaultPath() (string, error) {
	if c.Vault != "" {
		return expandHome(c.Vault)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, "."+AppName, DefaultVaultFileName), nil
}

// VaultConfig converts the algorithm settings into a vault.Config.
func (c *Config) VaultConfig() (vault.Config, error) {
	cfg := vault.DefaultConfig()
	if c.Compression != "" {
		comp, err := crypto.ParseCompression(c.Compression)
		if err != nil {
			return vault.Config{}, err
		}
		cfg.Compression = comp
	}
	if c.Cipher != "" {
		ciph, err := crypto.ParseCipher(c.Cipher)
		if err != nil {
			return vault.Config{}, err
		}
		cfg.Cipher = ciph
	}
	if c.KDF.MemoryKiB != 0 {
		cfg.KDF.Memory = c.KDF.MemoryKiB
	}
	if c.KDF.Iterations != 0 {
		cfg.KDF.Time = c.KDF.Iterations
	}
	if c.KDF.Parallelism != 0 {
		cfg.KDF.Threads = c.KDF.Parallelism
	}
	if err := cfg.KDF.Validate(); err != nil {
		return vault.Config{}, err
	}
	return cfg, nil
}

func expandHome(p string) (string, error) {
	if p != "~" && !hasHomePrefix(p) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

func hasHomePrefix(p string) bool {
	return len(p) >= 2 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator)
}
