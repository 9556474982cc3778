package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
	"github.com/forest6511/vaultfs/pkg/importer"
	"github.com/forest6511/vaultfs/pkg/secrets"
	"github.com/forest6511/vaultfs/pkg/vault"
)

// Import conflict handling modes
const (
	conflictSkip      = "skip"
	conflictOverwrite = "overwrite"
	conflictError     = "error"
)

var (
	importFrom     string
	importFolder   string
	importConflict string
	importDryRun   bool
)

func init() {
	secretCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFrom, "from", "", "Import source: "+strings.Join(importer.ValidSources(), ", "))
	importCmd.Flags().StringVar(&importFolder, "folder", "", "Folder to import into (default: root)")
	importCmd.Flags().StringVar(&importConflict, "conflict", conflictSkip, "Conflict handling: skip, overwrite, error")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without making changes")
	_ = importCmd.MarkFlagRequired("from")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import logins from another password manager",
	Long: `Import logins from a 1Password CSV, Bitwarden JSON or LastPass CSV export.

Examples:
  vaultctl secret import export.json --from bitwarden
  vaultctl secret import lastpass.csv --from lastpass --folder /lastpass
  vaultctl secret import 1p.csv --from 1password --conflict overwrite --dry-run

Conflict handling (an entry with the same folder and name exists):
  skip       Keep the existing entry (default)
  overwrite  Replace the existing entry's fields
  error      Report the conflict and import nothing for that entry`,
	Args: cobra.ExactArgs(1),
	RunE: executeImport,
}

func executeImport(cmd *cobra.Command, args []string) error {
	parser, err := importer.GetParser(importer.Source(strings.ToLower(importFrom)))
	if err != nil {
		return fmt.Errorf("invalid --from value '%s': must be one of %v", importFrom, importer.ValidSources())
	}
	switch importConflict {
	case conflictSkip, conflictOverwrite, conflictError:
	default:
		return fmt.Errorf("invalid --conflict value '%s': must be skip, overwrite or error", importConflict)
	}

	data, err := readImportFile(args[0])
	if err != nil {
		return err
	}
	result, err := parser.Parse(data, importer.ParseOptions{Folder: importFolder})
	if err != nil {
		return fmt.Errorf("failed to parse %s file: %w", importFrom, err)
	}

	stderr := cmd.ErrOrStderr()
	for _, w := range result.Warnings {
		warnf(stderr, "%s", w)
	}
	for _, s := range result.Skipped {
		fmt.Fprintf(stderr, "Skipped: %s (%s)\n", s.OriginalName, s.Reason)
	}

	out := cmd.OutOrStdout()
	if len(result.Logins) == 0 {
		fmt.Fprintln(out, "No logins found in file")
		return nil
	}
	fmt.Fprintf(out, "Found %d logins to import\n", len(result.Logins))

	if importDryRun {
		for _, l := range result.Logins {
			fmt.Fprintf(out, "[dry-run] Would import: %s\n", l.Path())
		}
		return nil
	}

	return mutate(cmd, func(s *vault.Session) error {
		return processImport(out, s.Secrets(), result.Logins)
	})
}

// readImportFile reads an export file, refusing symlinks.
func readImportFile(filePath string) ([]byte, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to access file: %w", err)
	}

	// Security check: reject symlinks
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("security: refusing to read symlink: %s", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

type importSummary struct {
	imported    int
	overwritten int
	skipped     int
	conflicts   int
	failed      int
	perFolder   map[string]int
}

// processImport adds logins to store, resolving conflicts by importConflict.
// Entries that fail are reported and do not stop the rest.
func processImport(w io.Writer, store *secrets.Store, logins []*importer.ImportedLogin) error {
	sum := importSummary{perFolder: make(map[string]int)}
	var errs []string

	for _, l := range logins {
		existing, err := store.Lookup(l.Login.Folder, l.Login.Name)
		exists := err == nil

		if exists {
			switch importConflict {
			case conflictSkip:
				fmt.Fprintf(w, "Skipped (exists): %s\n", l.Path())
				sum.skipped++
				continue
			case conflictError:
				errs = append(errs, fmt.Sprintf("entry already exists: %s", l.Path()))
				sum.conflicts++
				continue
			}
			if _, err := store.Update(existing.ID, patchFromLogin(l.Login)); err != nil {
				errs = append(errs, fmt.Sprintf("failed to import '%s': %v", l.Path(), err))
				sum.failed++
				continue
			}
			fmt.Fprintf(w, "Overwritten: %s\n", l.Path())
			sum.overwritten++
			sum.perFolder[l.Login.Folder]++
			continue
		}

		if _, err := store.Add(l.Login); err != nil {
			errs = append(errs, fmt.Sprintf("failed to import '%s': %v", l.Path(), err))
			sum.failed++
			continue
		}
		sum.imported++
		sum.perFolder[l.Login.Folder]++
	}

	printImportSummary(w, sum)

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func patchFromLogin(l secrets.NewLogin) secrets.Patch {
	return secrets.Patch{
		Username: &l.Username,
		Password: &l.Password,
		Website:  &l.Website,
		Comments: &l.Comments,
		TOTP:     &l.TOTP,
	}
}

func printImportSummary(w io.Writer, s importSummary) {
	fmt.Fprintf(w, "\nImport summary:\n")
	fmt.Fprintf(w, "  Imported:    %d\n", s.imported)
	if s.overwritten > 0 {
		fmt.Fprintf(w, "  Overwritten: %d\n", s.overwritten)
	}
	if s.skipped > 0 {
		fmt.Fprintf(w, "  Skipped:     %d\n", s.skipped)
	}
	if s.conflicts > 0 {
		fmt.Fprintf(w, "  Conflicts:   %d\n", s.conflicts)
	}
	if s.failed > 0 {
		fmt.Fprintf(w, "  Failed:      %d\n", s.failed)
	}
	for _, folder := range cli.MapKeys(s.perFolder) {
		fmt.Fprintf(w, "    %s: %d\n", folder, s.perFolder[folder])
	}
}
