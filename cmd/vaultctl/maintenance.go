package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
	"github.com/forest6511/vaultfs/pkg/vault"
)

var statsJSON bool

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output in JSON format")
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Unlock the vault and authenticate every entry since the last checkpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			st, err := s.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Vault OK: %d entries, %s\n", st.LastSequence, cli.FormatSize(st.FileSize))
			return nil
		})
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Write a snapshot of every store and a checkpoint",
	Long: `Write a snapshot of every store followed by a checkpoint, so the next
unlock only replays entries written after it. The file is append-only and
grows by the size of the snapshots.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			if err := s.Compact(); err != nil {
				return fmt.Errorf("failed to compact vault: %w", err)
			}
			st, err := s.Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint written at offset %d\n", st.CheckpointOffset)
			return nil
		})
	},
}

type statsOutput struct {
	vault.Stats
	Path string               `json:"path"`
	Disk *vault.DiskSpaceInfo `json:"disk,omitempty"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			st, err := s.Stats()
			if err != nil {
				return err
			}
			out := statsOutput{Stats: st, Path: s.Path()}
			if disk, err := s.CheckDiskSpace(); err == nil {
				out.Disk = disk
			} else {
				logger.Debug("disk space unavailable", "error", err)
			}

			w := cmd.OutOrStdout()
			if statsJSON {
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(w, string(data))
				return nil
			}

			h := s.Header()
			fmt.Fprintf(w, "Vault:        %s\n", out.Path)
			fmt.Fprintf(w, "Format:       v%d, %s, %s compression\n", h.FormatVersion, h.Envelope.Cipher, h.Envelope.Compression)
			fmt.Fprintf(w, "Size:         %s\n", cli.FormatSize(st.FileSize))
			fmt.Fprintf(w, "Entries:      %d\n", st.LastSequence)
			fmt.Fprintf(w, "Checkpoint:   %d\n", st.CheckpointOffset)
			fmt.Fprintf(w, "Folders:      %d\n", st.Folders)
			fmt.Fprintf(w, "Files:        %d\n", st.Files)
			fmt.Fprintf(w, "Logins:       %d\n", st.Secrets)
			if out.Disk != nil {
				fmt.Fprintf(w, "Disk:         %s free (%d%% used)\n", cli.FormatSize(int64(out.Disk.Available)), out.Disk.UsedPct)
			}
			return nil
		})
	},
}
