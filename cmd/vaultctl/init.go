package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
	"github.com/forest6511/vaultfs/pkg/vault"
)

var (
	initCompression string
	initCipher      string
	initForce       bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initCompression, "compression", "", "Compression: none, zstd, brotli, lz4 (overrides config)")
	initCmd.Flags().StringVar(&initCipher, "cipher", "", "Cipher: xchacha20poly1305, aes256gcm (overrides config)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Replace an existing vault file")
}

// initCmd creates a new vault
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Creates a new vault",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := *cfg
		if cmd.Flags().Changed("compression") {
			c.Compression = initCompression
		}
		if cmd.Flags().Changed("cipher") {
			c.Cipher = initCipher
		}
		vcfg, err := c.VaultConfig()
		if err != nil {
			return fmt.Errorf("invalid vault settings: %w", err)
		}
		vcfg.Overwrite = initForce

		path, err := c.VaultPath()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Initializing new vault at %s...\n", path)

		password, err := cli.ReadNewPassword(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		result := vault.ValidateMasterPassword(password)
		if !result.Valid {
			return fmt.Errorf("password validation failed: %s", result.Warnings[0])
		}
		fmt.Fprintf(out, "Password strength: %s\n", result.Strength)
		for _, w := range result.Warnings {
			warnf(cmd.ErrOrStderr(), "%s", w)
		}

		if err := ensureVaultDir(path); err != nil {
			return err
		}
		s, err := vault.Create(path, password, vcfg, vault.WithLogger(logger))
		if err != nil {
			if errors.Is(err, vault.ErrVaultExists) {
				return fmt.Errorf("vault already exists at %s; use --force to replace it", path)
			}
			return fmt.Errorf("failed to initialize vault: %w", err)
		}
		defer s.Close()

		h := s.Header()
		fmt.Fprintf(out, "Vault created (%s, %s compression).\n", h.Envelope.Cipher, h.Envelope.Compression)
		return nil
	},
}
