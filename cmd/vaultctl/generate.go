package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/internal/cli"
)

var (
	generateOpts = cli.DefaultGeneratorOptions()
	generateCopy bool
)

func init() {
	rootCmd.AddCommand(generateCmd)
	addGeneratorFlags(generateCmd, &generateOpts)
	generateCmd.Flags().IntVarP(&generateOpts.Count, "count", "n", 1, "Number of passwords to generate (1-100)")
	generateCmd.Flags().BoolVarP(&generateCopy, "copy", "c", false, "Copy first password to clipboard (accessible to all processes)")
}

// addGeneratorFlags registers the character class flags shared by generate
// and secret add.
func addGeneratorFlags(cmd *cobra.Command, o *cli.GeneratorOptions) {
	cmd.Flags().IntVarP(&o.Length, "length", "l", cli.DefaultPasswordLength, "Password length (8-256)")
	cmd.Flags().BoolVar(&o.NoSymbols, "no-symbols", false, "Exclude symbols")
	cmd.Flags().BoolVar(&o.NoNumbers, "no-numbers", false, "Exclude numbers")
	cmd.Flags().BoolVar(&o.NoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	cmd.Flags().BoolVar(&o.NoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	cmd.Flags().StringVar(&o.Exclude, "exclude", "", "Characters to exclude")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate secure random passwords",
	Long: `Generate cryptographically secure random passwords. Does not open the vault.

Examples:
  # Generate a 24-character password (default)
  vaultctl generate

  # Generate a 32-character password without symbols
  vaultctl generate -l 32 --no-symbols

  # Generate password excluding ambiguous characters
  vaultctl generate --exclude "0O1lI"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		passwords, err := cli.GeneratePasswords(generateOpts)
		if err != nil {
			return err
		}
		for _, p := range passwords {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		if generateCopy {
			if err := cli.CopyToClipboard(passwords[0]); err != nil {
				warnf(cmd.ErrOrStderr(), "failed to copy to clipboard: %v", err)
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "Password copied to clipboard")
			}
		}
		return nil
	},
}
