package secrets

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RootFolder is the top-level folder path.
const RootFolder = "/"

// NormalizeFolder returns the canonical form of a folder path: NFC, a single
// leading slash, no empty or "." segments and no trailing slash. ".."
// segments are rejected.
func NormalizeFolder(folder string) (string, error) {
	var segs []string
	for _, seg := range strings.Split(norm.NFC.String(folder), "/") {
		seg = strings.TrimSpace(seg)
		switch {
		case seg == "" || seg == ".":
			continue
		case seg == "..":
			return "", fmt.Errorf("%w: %q contains '..'", ErrInvalidFolder, folder)
		case strings.ContainsRune(seg, 0):
			return "", fmt.Errorf("%w: %q contains NUL", ErrInvalidFolder, folder)
		case len(seg) > MaxNameLength:
			return "", fmt.Errorf("%w: segment exceeds %d bytes", ErrInvalidFolder, MaxNameLength)
		}
		segs = append(segs, seg)
	}
	return RootFolder + strings.Join(segs, "/"), nil
}

// normalizeName returns an NFC, trimmed entry name.
func normalizeName(name string) (string, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	case len(name) > MaxNameLength:
		return "", fmt.Errorf("%w: name exceeds %d bytes", ErrInvalidName, MaxNameLength)
	case strings.ContainsAny(name, "/\x00"):
		return "", fmt.Errorf("%w: name cannot contain '/' or NUL", ErrInvalidName)
	}
	return name, nil
}

// validateFields checks the plaintext fields of an entry.
func validateFields(username, website, comments string) error {
	if len(username) > MaxFieldLength {
		return fmt.Errorf("%w: username exceeds %d bytes", ErrInvalidField, MaxFieldLength)
	}
	if len(comments) > MaxCommentsSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum of %d bytes",
			ErrCommentsTooLarge, len(comments), MaxCommentsSize)
	}
	if website == "" {
		return nil
	}
	if len(website) > MaxURLLength {
		return fmt.Errorf("%w: %d characters exceeds maximum of %d", ErrURLInvalid, len(website), MaxURLLength)
	}
	u, err := url.Parse(website)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrURLInvalid, err)
	}
	// Only http and https, so javascript: and friends never reach a UI.
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are allowed", ErrURLInvalid)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: URL must have a host", ErrURLInvalid)
	}
	return nil
}
