package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/vaultfs/pkg/security"
	"github.com/forest6511/vaultfs/pkg/vault"
)

// Audit command flags
var (
	auditVerbose bool
	auditJSON    bool
	auditKeys    bool
	auditMaxAge  int
	auditLimit   int
)

func init() {
	secretCmd.AddCommand(auditCmd)

	auditCmd.Flags().BoolVar(&auditVerbose, "suggestions", false, "Show suggestions")
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output in JSON format")
	auditCmd.Flags().BoolVar(&auditKeys, "show-paths", true, "Name the logins each issue concerns")
	auditCmd.Flags().IntVar(&auditMaxAge, "max-age", int(security.DefaultMaxAge/(24*time.Hour)), "Days before an unchanged password is stale (0 disables)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 0, "Maximum issues of each kind to list (0 = all)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Analyze password health",
	Long: `Analyze the health of the stored passwords and get recommendations.

The score is calculated from:
  - Password Strength (0-25): Average strength of passwords
  - Uniqueness (0-25): Percentage of unique passwords
  - Freshness (0-25): Percentage of passwords changed within --max-age days
  - Coverage (0-25): Percentage of logins with a TOTP secret

Example:
  vaultctl secret audit                # Show score and issues
  vaultctl secret audit --suggestions  # Also show suggestions
  vaultctl secret audit --json         # Output in JSON format`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *vault.Session) error {
			creds, err := security.CredentialsFromStore(s.Secrets())
			if err != nil {
				return fmt.Errorf("failed to read passwords: %w", err)
			}

			limits := security.Limits{DuplicateLimit: auditLimit, WeakLimit: auditLimit, StaleLimit: auditLimit}
			calc := security.NewCalculator(limits).
				WithMaxAge(time.Duration(auditMaxAge) * 24 * time.Hour)

			score, err := calc.CalculateScore(creds, auditKeys)
			if err != nil {
				return fmt.Errorf("failed to calculate security score: %w", err)
			}

			if auditJSON {
				data, err := json.MarshalIndent(score, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			outputAuditText(cmd.OutOrStdout(), score, auditVerbose)
			return nil
		})
	},
}

// outputAuditText outputs the security score as formatted text.
func outputAuditText(w io.Writer, score *security.SecurityScore, verbose bool) {
	var rating string
	switch {
	case score.Overall >= 90:
		rating = "Excellent"
	case score.Overall >= 70:
		rating = "Good"
	case score.Overall >= 50:
		rating = "Fair"
	default:
		rating = "Needs Attention"
	}

	fmt.Fprintf(w, "Security Score: %d/100 (%s)\n\n", score.Overall, rating)

	c := score.Components
	fmt.Fprintln(w, "Components:")
	fmt.Fprintf(w, "  Password Strength: %2d/25 %s\n", c.StrengthScore, progressBar(c.StrengthScore, 25))
	fmt.Fprintf(w, "  Uniqueness:        %2d/25 %s\n", c.UniquenessScore, progressBar(c.UniquenessScore, 25))
	fmt.Fprintf(w, "  Freshness:         %2d/25 %s\n", c.FreshnessScore, progressBar(c.FreshnessScore, 25))
	fmt.Fprintf(w, "  TOTP Coverage:     %2d/25 %s\n", c.CoverageScore, progressBar(c.CoverageScore, 25))
	fmt.Fprintln(w)

	if len(score.Issues) > 0 {
		fmt.Fprintf(w, "Issues (%d):\n", len(score.Issues))
		for i, issue := range score.Issues {
			keyInfo := ""
			if issue.Key != "" {
				keyInfo = fmt.Sprintf(" %q", issue.Key)
			} else if len(issue.Keys) > 0 {
				keyInfo = " " + strings.Join(issue.Keys, ", ")
			}
			fmt.Fprintf(w, "  %d. [%s]%s: %s\n", i+1, strings.ToUpper(string(issue.Type)), keyInfo, issue.Description)
		}
		fmt.Fprintln(w)
	}

	if len(score.Suggestions) > 0 && verbose {
		fmt.Fprintln(w, "Suggestions:")
		for _, suggestion := range score.Suggestions {
			fmt.Fprintf(w, "  - %s\n", suggestion)
		}
		fmt.Fprintln(w)
	}

	if score.Limited {
		fmt.Fprintln(w, "Some issues were omitted; raise --limit to list them all.")
	}
}

// progressBar creates a simple ASCII progress bar.
func progressBar(value, maxVal int) string {
	width := 20
	filled := value * width / maxVal
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
