package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
	"github.com/forest6511/vaultfs/pkg/storage"
	"github.com/forest6511/vaultfs/pkg/vault"
)

var (
	configPath   string
	vaultPath    string
	verbose      bool
	recoverTail  bool
	cfg          *cli.Config
	logger       = slog.New(slog.DiscardHandler)
	errNoChanges = errors.New("nothing to commit")
)

var rootCmd = &cobra.Command{
	Use:   "vaultctl",
	Short: "vaultctl manages a single-file encrypted vault",
	Long: `vaultctl stores files and logins in one password-protected,
append-only vault file.

Configuration is read from $XDG_CONFIG_HOME/vaultctl/config.yaml unless
--config is given. The master password is read from VAULTCTL_PASSWORD or
prompted for.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE loads the config file for every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			logger = slog.New(slog.DiscardHandler)
		}

		p := configPath
		if p == "" {
			var err error
			if p, err = cli.DefaultConfigPath(); err != nil {
				return err
			}
		}
		c, err := cli.LoadConfig(p, configPath != "")
		if err != nil {
			return err
		}
		if vaultPath != "" {
			c.Vault = vaultPath
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/vaultctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "Vault file (default ~/.vaultctl/vault.vfs)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log storage activity to stderr")
	rootCmd.PersistentFlags().BoolVar(&recoverTail, "recover", false, "Truncate an incomplete trailing write instead of failing")
}

// openSession unlocks the configured vault.
func openSession(cmd *cobra.Command) (*vault.Session, error) {
	s, _, err := unlock(cmd)
	return s, err
}

// unlock is openSession that also returns the master password it read.
func unlock(cmd *cobra.Command) (*vault.Session, string, error) {
	path, err := cfg.VaultPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("vault not found at %s; run 'vaultctl init' first", path)
	}

	password, err := cli.ReadPassword(cmd.ErrOrStderr(), "Enter master password: ")
	if err != nil {
		return nil, "", err
	}

	opts := []vault.Option{vault.WithLogger(logger)}
	if recoverTail {
		opts = append(opts, vault.WithRecoverTornTail())
	}
	s, err := vault.Open(path, password, opts...)
	if err != nil {
		var torn *storage.TornTailError
		if errors.As(err, &torn) {
			return nil, "", fmt.Errorf("failed to open vault: %w (rerun with --recover to truncate at offset %d)", err, torn.ConfirmedEnd)
		}
		return nil, "", fmt.Errorf("failed to unlock vault: %w", err)
	}
	return s, password, nil
}

// withSession runs fn against an unlocked vault and closes it afterwards.
func withSession(cmd *cobra.Command, fn func(s *vault.Session) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// commit persists pending changes made by fn.
func commit(s *vault.Session) error {
	changed, err := s.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit changes: %w", err)
	}
	if !changed {
		return errNoChanges
	}
	return nil
}

// mutate is withSession followed by a commit.
func mutate(cmd *cobra.Command, fn func(s *vault.Session) error) error {
	return withSession(cmd, func(s *vault.Session) error {
		if err := fn(s); err != nil {
			return err
		}
		if err := commit(s); err != nil && !errors.Is(err, errNoChanges) {
			return err
		}
		return nil
	})
}

func warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "warning: "+format+"\n", args...)
}

// ensureVaultDir creates the directory holding the vault file.
func ensureVaultDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	return nil
}
