package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
	"github.com/forest6511/vaultfs/pkg/secrets"
	"github.com/forest6511/vaultfs/pkg/totp"
	"github.com/forest6511/vaultfs/pkg/vault"
)

// Flags shared by secret add and secret edit
var (
	secretUsername      string
	secretWebsite       string
	secretComments      string
	secretTOTP          string
	secretPasswordStdin bool
	secretNoPassword    bool
	secretGenerate      bool
	secretGenerateOpts  = cli.DefaultGeneratorOptions()
)

var (
	showReveal bool
	showCopy   bool
)

func init() {
	rootCmd.AddCommand(secretCmd)
	secretCmd.AddCommand(secretAddCmd)
	secretCmd.AddCommand(secretEditCmd)
	secretCmd.AddCommand(secretLsCmd)
	secretCmd.AddCommand(secretSearchCmd)
	secretCmd.AddCommand(secretShowCmd)
	secretCmd.AddCommand(secretRmCmd)
	secretCmd.AddCommand(secretFoldersCmd)
	secretCmd.AddCommand(secretTOTPCmd)

	for _, c := range []*cobra.Command{secretAddCmd, secretEditCmd} {
		c.Flags().StringVarP(&secretUsername, "username", "u", "", "Username")
		c.Flags().StringVar(&secretWebsite, "website", "", "Website URL (http or https)")
		c.Flags().StringVar(&secretComments, "comments", "", "Free-form notes")
		c.Flags().StringVar(&secretTOTP, "totp", "", "TOTP secret (base32 or otpauth:// URI)")
		c.Flags().BoolVar(&secretPasswordStdin, "password-stdin", false, "Read the password from the first line of stdin")
		c.Flags().BoolVar(&secretGenerate, "generate", false, "Generate a random password")
	}
	secretAddCmd.Flags().BoolVar(&secretNoPassword, "no-password", false, "Store the login without a password")
	addGeneratorFlags(secretAddCmd, &secretGenerateOpts)

	secretLsCmd.Flags().BoolP("all", "a", false, "List logins in every folder")
	secretShowCmd.Flags().BoolVar(&showReveal, "reveal", false, "Print the password")
	secretShowCmd.Flags().BoolVarP(&showCopy, "copy", "c", false, "Copy the password to the clipboard (accessible to all processes)")
}

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage logins stored in the vault",
}

// splitEntryPath splits /folder/name into its folder and name.
func splitEntryPath(p string) (folder, name string) {
	p = path.Join("/", p)
	return path.Dir(p), path.Base(p)
}

func lookupEntry(store *secrets.Store, p string) (secrets.LoginEntry, error) {
	folder, name := splitEntryPath(p)
	e, err := store.Lookup(folder, name)
	if err != nil {
		return secrets.LoginEntry{}, fmt.Errorf("%w: %s", err, p)
	}
	return e, nil
}

// readEntryPassword returns the password for add/edit, or ok=false when the
// flags ask for none.
func readEntryPassword(cmd *cobra.Command) (pw string, ok bool, err error) {
	switch {
	case secretGenerate:
		opts := secretGenerateOpts
		opts.Count = 1
		passwords, err := cli.GeneratePasswords(opts)
		if err != nil {
			return "", false, err
		}
		return passwords[0], true, nil
	case secretPasswordStdin:
		line, err := readLine(cmd.InOrStdin())
		return line, err == nil, err
	}
	return "", false, nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var secretAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Add a login",
	Long: `Add a login at <path>, a slash-separated folder path ending in the entry name.

The password is prompted for unless --password-stdin, --generate or
--no-password is given.

Examples:
  vaultctl secret add /work/github -u octocat --website https://github.com
  echo "s3cret" | vaultctl secret add mail --password-stdin
  vaultctl secret add /bank --generate -l 32`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, ok, err := readEntryPassword(cmd)
		if err != nil {
			return err
		}
		if !ok && !secretNoPassword {
			if pw, err = cli.PromptPassword(cmd.ErrOrStderr(), "Entry password: "); err != nil {
				return err
			}
		}

		folder, name := splitEntryPath(args[0])
		return mutate(cmd, func(s *vault.Session) error {
			e, err := s.Secrets().Add(secrets.NewLogin{
				Folder:   folder,
				Name:     name,
				Username: secretUsername,
				Password: pw,
				Website:  secretWebsite,
				Comments: secretComments,
				TOTP:     secretTOTP,
			})
			if err != nil {
				return fmt.Errorf("failed to add login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", e.Path())
			if secretGenerate {
				fmt.Fprintf(cmd.OutOrStdout(), "Generated password: %s\n", pw)
			}
			return nil
		})
	},
}

var secretEditCmd = &cobra.Command{
	Use:   "edit <path> [new-path]",
	Short: "Change the fields of a login, or move it to a new path",
	Long: `Change the fields of a login. Only the flags given are changed; an empty
--totp removes the TOTP secret.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p secrets.Patch
		flags := cmd.Flags()
		if flags.Changed("username") {
			p.Username = &secretUsername
		}
		if flags.Changed("website") {
			p.Website = &secretWebsite
		}
		if flags.Changed("comments") {
			p.Comments = &secretComments
		}
		if flags.Changed("totp") {
			p.TOTP = &secretTOTP
		}
		pw, ok, err := readEntryPassword(cmd)
		if err != nil {
			return err
		}
		if ok {
			p.Password = &pw
		}
		if len(args) == 2 {
			folder, name := splitEntryPath(args[1])
			p.Folder, p.Name = &folder, &name
		}

		return mutate(cmd, func(s *vault.Session) error {
			e, err := lookupEntry(s.Secrets(), args[0])
			if err != nil {
				return err
			}
			e, err = s.Secrets().Update(e.ID, p)
			if err != nil {
				return fmt.Errorf("failed to update login: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", e.Path())
			return nil
		})
	},
}

func printEntries(w io.Writer, entries []secrets.LoginEntry) {
	for _, e := range entries {
		line := e.Path()
		if e.Username != "" {
			line += "  " + e.Username
		}
		if e.Website != "" {
			line += "  " + e.Website
		}
		if e.TOTP != nil {
			line += "  [totp]"
		}
		fmt.Fprintln(w, line)
	}
}

var secretLsCmd = &cobra.Command{
	Use:   "ls [folder]",
	Short: "List logins in a folder, or every login with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		return withSession(cmd, func(s *vault.Session) error {
			if all {
				printEntries(cmd.OutOrStdout(), s.Secrets().All())
				return nil
			}
			folder := secrets.RootFolder
			if len(args) == 1 {
				folder = args[0]
			}
			entries, err := s.Secrets().List(folder)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		})
	},
}

var secretSearchCmd = &cobra.Command{
	Use:   "search <pattern>",
	Short: "Find logins by glob over their path or by name substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			entries, err := s.Secrets().Search(args[0])
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no logins match '%s'", args[0])
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		})
	},
}

var secretShowCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show a login",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			store := s.Secrets()
			e, err := lookupEntry(store, args[0])
			if err != nil {
				return err
			}
			pw, err := store.RevealPassword(e.ID)
			if err != nil {
				return fmt.Errorf("failed to decrypt password: %w", err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Path:     %s\n", e.Path())
			fmt.Fprintf(w, "Username: %s\n", e.Username)
			switch {
			case pw == "":
				fmt.Fprintln(w, "Password: (none)")
			case showReveal:
				fmt.Fprintf(w, "Password: %s\n", pw)
			default:
				fmt.Fprintln(w, "Password: ********")
			}
			if e.Website != "" {
				fmt.Fprintf(w, "Website:  %s\n", e.Website)
			}
			if e.TOTP != nil {
				fmt.Fprintf(w, "TOTP:     %d digits every %ds\n", e.TOTP.Digits, e.TOTP.Period)
			}
			fmt.Fprintf(w, "Updated:  %s\n", e.UpdatedAt.Local().Format(time.RFC3339))
			if e.Comments != "" {
				fmt.Fprintf(w, "\n%s\n", e.Comments)
			}

			if showCopy && pw != "" {
				if err := cli.CopyToClipboard(pw); err != nil {
					warnf(cmd.ErrOrStderr(), "failed to copy to clipboard: %v", err)
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), "Password copied to clipboard")
				}
			}
			return nil
		})
	},
}

var secretRmCmd = &cobra.Command{
	Use:   "rm <pattern>...",
	Short: "Remove logins by path (glob pattern supported)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return mutate(cmd, func(s *vault.Session) error {
			store := s.Secrets()
			byPath := make(map[string]secrets.LoginEntry)
			var paths []string
			for _, e := range store.All() {
				byPath[e.Path()] = e
				paths = append(paths, e.Path())
			}
			matched, err := cli.ExpandPatterns(args, paths)
			if err != nil {
				return err
			}
			for _, p := range matched {
				if err := store.Delete(byPath[p].ID); err != nil {
					return fmt.Errorf("failed to delete %s: %w", p, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", p)
			}
			return nil
		})
	},
}

var secretFoldersCmd = &cobra.Command{
	Use:   "folders [parent]",
	Short: "List the folders holding logins",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent := secrets.RootFolder
		if len(args) == 1 {
			parent = args[0]
		}
		return withSession(cmd, func(s *vault.Session) error {
			parent, err := secrets.NormalizeFolder(parent)
			if err != nil {
				return err
			}
			folders, err := s.Secrets().ListFolders(parent)
			if err != nil {
				return err
			}
			for _, f := range folders {
				fmt.Fprintln(cmd.OutOrStdout(), path.Join(parent, f))
			}
			return nil
		})
	},
}

var secretTOTPCmd = &cobra.Command{
	Use:   "totp <path>",
	Short: "Print the current TOTP code of a login",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			store := s.Secrets()
			e, err := lookupEntry(store, args[0])
			if err != nil {
				return err
			}
			now := time.Now()
			code, err := store.TOTPCode(e.ID, now)
			if err != nil {
				return err
			}
			remaining := totp.Remaining(now, totp.Params{Digits: e.TOTP.Digits, Period: e.TOTP.Period})
			fmt.Fprintf(cmd.OutOrStdout(), "%s (valid for %ds)\n", code, int(remaining.Seconds()))
			return nil
		})
	},
}
