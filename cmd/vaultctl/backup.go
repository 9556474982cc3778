package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
	"github.com/forest6511/vaultfs/pkg/backup"
	"github.com/forest6511/vaultfs/pkg/vault"
)

var (
	backupForce    bool
	restoreForce   bool
	restoreDryRun  bool
	restoreVerify  bool
	restoreJSON    bool
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Overwrite an existing backup file")

	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Replace the existing vault")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Verify the backup and show what would be restored")
	restoreCmd.Flags().BoolVar(&restoreVerify, "verify-only", false, "Only verify the backup")
	restoreCmd.Flags().BoolVar(&restoreJSON, "json", false, "Output the verification result in JSON format (with --verify-only)")
}

var backupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Copy the vault to a verified backup file",
	Long: `Copy the committed vault to <file>. The copy is unlocked with the master
password before it replaces <file>, so a backup that exists is known to open.

Example:
  vaultctl backup ~/backups/vault-$(date +%F).vfs`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, password, err := unlock(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		r, err := backup.Backup(s, args[0], backup.BackupOptions{Password: password, Force: backupForce}, vault.WithLogger(logger))
		if err != nil {
			if errors.Is(err, backup.ErrTargetExists) {
				return fmt.Errorf("%w (use --force to overwrite)", err)
			}
			return fmt.Errorf("backup of %s failed: %w", s.Path(), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup written to %s (%s, %d entries)\n", r.Path, cli.FormatSize(r.Size), r.LastSequence)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the vault with a backup",
	Long: `Verify a backup made with 'vaultctl backup' and copy it over the vault.
The backup must unlock with the given master password.

Examples:
  vaultctl restore backup.vfs --verify-only
  vaultctl restore backup.vfs --dry-run
  vaultctl restore backup.vfs --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := cli.ReadPassword(cmd.ErrOrStderr(), "Enter backup password: ")
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		opt := vault.WithLogger(logger)

		if restoreVerify {
			r, err := backup.Verify(args[0], password, opt)
			if err != nil {
				return err
			}
			if restoreJSON {
				data, err := json.MarshalIndent(r, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			} else {
				printVerifyResult(out, r)
			}
			if !r.Valid {
				return backup.ErrVerifyFailed
			}
			return nil
		}

		path, err := cfg.VaultPath()
		if err != nil {
			return err
		}
		if err := ensureVaultDir(path); err != nil {
			return err
		}
		res, err := backup.Restore(args[0], backup.RestoreOptions{
			VaultPath: path,
			Password:  password,
			Force:     restoreForce,
			DryRun:    restoreDryRun,
		}, opt)
		if err != nil {
			if errors.Is(err, backup.ErrTargetExists) {
				return fmt.Errorf("%w (use --force to replace it)", err)
			}
			return fmt.Errorf("restore failed: %w", err)
		}

		b := res.Backup
		if res.DryRun {
			fmt.Fprintf(out, "[dry-run] Would restore %d folders, %d files and %d logins to %s\n", b.Folders, b.Files, b.Secrets, path)
			if res.Replaced {
				fmt.Fprintln(out, "[dry-run] The existing vault would be replaced")
			}
			return nil
		}
		fmt.Fprintf(out, "Restored %d folders, %d files and %d logins to %s\n", b.Folders, b.Files, b.Secrets, path)
		return nil
	},
}

func printVerifyResult(w io.Writer, r *backup.VerifyResult) {
	if !r.Valid {
		fmt.Fprintf(w, "Backup INVALID: %s\n", r.Error)
		return
	}
	fmt.Fprintf(w, "Backup OK: %s\n", r.Path)
	fmt.Fprintf(w, "  Format:  v%d, %s, %s compression\n", r.FormatVersion, r.Cipher, r.Compression)
	fmt.Fprintf(w, "  Size:    %s\n", cli.FormatSize(r.Size))
	fmt.Fprintf(w, "  Entries: %d\n", r.LastSequence)
	fmt.Fprintf(w, "  Folders: %d, Files: %d, Logins: %d\n", r.Folders, r.Files, r.Secrets)
}
