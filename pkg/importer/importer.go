// Package importer converts exports of other password managers into vault
// logins. It supports 1Password CSV, Bitwarden JSON and LastPass CSV.
package importer

import (
	"fmt"
	"html"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/vaultfs/pkg/secrets"
	"github.com/forest6511/vaultfs/pkg/totp"
)

// Source represents the source password manager format.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
)

// ImportedLogin is one parsed login, ready for secrets.Store.Add.
type ImportedLogin struct {
	// OriginalName is the item name before sanitization.
	OriginalName string
	Login        secrets.NewLogin
}

// Path returns the folder and name the login will be stored under.
func (l *ImportedLogin) Path() string {
	return path.Join(l.Login.Folder, l.Login.Name)
}

// ImportResult contains the results of an import operation.
type ImportResult struct {
	// Logins are the successfully parsed items.
	Logins []*ImportedLogin

	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string

	// Skipped are items that were skipped with reasons.
	Skipped []SkippedItem
}

// SkippedItem represents an item that was skipped during import.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

// Parser is the interface for export format parsers.
type Parser interface {
	// Parse parses the input data and returns imported logins.
	Parse(data []byte, opts ParseOptions) (*ImportResult, error)

	// Source returns the source type for this parser.
	Source() Source
}

// ParseOptions contains options for parsing.
type ParseOptions struct {
	// Folder is prepended to every imported folder. Empty means the root.
	Folder string
}

// SanitizeName turns an item title into a valid entry name: NFC, trimmed,
// '/' replaced by '-', control characters removed, truncated on a rune
// boundary to secrets.MaxNameLength bytes.
func SanitizeName(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/':
			return '-'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	return truncate(name, secrets.MaxNameLength)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// DeduplicateNames makes names unique within each folder by appending " (2)",
// " (3)" and so on, comparing case-insensitively.
func DeduplicateNames(logins []*ImportedLogin) {
	seen := make(map[string]bool)
	key := func(folder, name string) string {
		return strings.ToLower(folder) + "\x00" + strings.ToLower(name)
	}
	for _, l := range logins {
		base := l.Login.Name
		name := base
		for n := 2; seen[key(l.Login.Folder, name)]; n++ {
			suffix := fmt.Sprintf(" (%d)", n)
			name = truncate(base, secrets.MaxNameLength-len(suffix)) + suffix
		}
		l.Login.Name = name
		seen[key(l.Login.Folder, name)] = true
	}
}

// GenerateFallbackName names an untitled item after the host of its URL, or
// "imported item N" when it has none.
func GenerateFallbackName(rawURL string, counter int) string {
	if host := extractHostname(rawURL); host != "" {
		return host
	}
	return fmt.Sprintf("imported item %d", counter)
}

func extractHostname(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// DecodeHTMLEntities decodes the HTML entities LastPass writes into exports.
func DecodeHTMLEntities(s string) string {
	return html.UnescapeString(s)
}

// IsEmptyOrWhitespace checks if a string is empty or contains only whitespace.
func IsEmptyOrWhitespace(s string) bool {
	return strings.TrimSpace(s) == ""
}

// rawItem is a source item mapped onto login fields, before validation.
type rawItem struct {
	Name     string
	Folder   string // '/' separated, relative to ParseOptions.Folder
	Username string
	Password string
	Website  string
	TOTP     string
	Notes    string
	Extra    []string // more lines for the comments, such as additional URLs
}

// builder validates raw items into logins, collecting warnings.
type builder struct {
	opts    ParseOptions
	result  *ImportResult
	counter int
}

func newBuilder(opts ParseOptions) *builder {
	return &builder{
		opts: opts,
		result: &ImportResult{
			Logins:   make([]*ImportedLogin, 0),
			Warnings: make([]string, 0),
			Skipped:  make([]SkippedItem, 0),
		},
		counter: 1,
	}
}

func (b *builder) warn(item, format string, args ...any) {
	b.result.Warnings = append(b.result.Warnings, item+": "+fmt.Sprintf(format, args...))
}

func (b *builder) skip(name, reason string) {
	b.result.Skipped = append(b.result.Skipped, SkippedItem{OriginalName: name, Reason: reason})
}

// add converts raw into a login. label identifies the item in warnings.
func (b *builder) add(label string, raw rawItem) {
	if raw.Username == "" && raw.Password == "" && raw.TOTP == "" && raw.Notes == "" && len(raw.Extra) == 0 {
		b.skip(raw.Name, "no useful data")
		return
	}

	login := secrets.NewLogin{
		Username: raw.Username,
		Password: raw.Password,
	}
	extra := raw.Extra

	folder, err := secrets.NormalizeFolder(path.Join("/", b.opts.Folder, raw.Folder))
	if err != nil {
		b.warn(label, "folder %q not usable, importing into %s: %v", raw.Folder, b.opts.Folder, err)
		folder, _ = secrets.NormalizeFolder(b.opts.Folder)
	}
	login.Folder = folder

	name := SanitizeName(raw.Name)
	if name == "" {
		name = SanitizeName(GenerateFallbackName(raw.Website, b.counter))
		b.counter++
	}
	login.Name = name

	if len(login.Username) > secrets.MaxFieldLength {
		b.warn(label, "username longer than %d bytes moved to comments", secrets.MaxFieldLength)
		extra = append(extra, "Username: "+login.Username)
		login.Username = ""
	}

	if raw.Website != "" {
		if website, ok := normalizeWebsite(raw.Website); ok {
			login.Website = website
		} else {
			extra = append(extra, "URL: "+raw.Website)
		}
	}

	if raw.TOTP != "" {
		if _, _, err := totp.ParseURI(raw.TOTP); err != nil {
			b.warn(label, "TOTP secret not imported: %v", err)
		} else {
			login.TOTP = raw.TOTP
		}
	}

	login.Comments = raw.Notes
	if len(extra) > 0 {
		if login.Comments != "" {
			login.Comments += "\n\n"
		}
		login.Comments += strings.Join(extra, "\n")
	}
	if len(login.Comments) > secrets.MaxCommentsSize {
		b.warn(label, "notes truncated to %d bytes", secrets.MaxCommentsSize)
		login.Comments = truncate(login.Comments, secrets.MaxCommentsSize)
	}

	b.result.Logins = append(b.result.Logins, &ImportedLogin{OriginalName: raw.Name, Login: login})
}

func (b *builder) finish() *ImportResult {
	DeduplicateNames(b.result.Logins)
	return b.result
}

// normalizeWebsite accepts http and https URLs with a host, adding https://
// to bare host names. Anything else is reported as not ok.
func normalizeWebsite(raw string) (string, bool) {
	if len(raw) > secrets.MaxURLLength {
		return "", false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return raw, true
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported import source: %s", source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
	}
}
