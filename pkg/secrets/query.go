package secrets

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forest6511/vaultfs/pkg/crypto"
	"github.com/forest6511/vaultfs/pkg/totp"
)

// Get returns the entry with id.
func (s *Store) Get(id uuid.UUID) (LoginEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return LoginEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *cloneEntry(e), nil
}

// Lookup returns the entry called name in folder.
func (s *Store) Lookup(folder, name string) (LoginEntry, error) {
	folder, err := NormalizeFolder(folder)
	if err != nil {
		return LoginEntry{}, err
	}
	name, err = normalizeName(name)
	if err != nil {
		return LoginEntry{}, err
	}
	id, ok := s.byPath[pathKey{folder, name}]
	if !ok {
		return LoginEntry{}, fmt.Errorf("%w: %s", ErrNotFound, path.Join(folder, name))
	}
	return s.Get(id)
}

// List returns the entries directly in folder, sorted by name.
func (s *Store) List(folder string) ([]LoginEntry, error) {
	folder, err := NormalizeFolder(folder)
	if err != nil {
		return nil, err
	}
	var out []LoginEntry
	for _, e := range s.entries {
		if e.Folder == folder {
			out = append(out, *cloneEntry(e))
		}
	}
	sortEntries(out)
	return out, nil
}

// All returns every entry sorted by folder then name.
func (s *Store) All() []LoginEntry {
	out := make([]LoginEntry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *cloneEntry(e))
	}
	sortEntries(out)
	return out
}

// ListFolders returns the names of the immediate sub-folders of parent that
// hold at least one entry somewhere below them, sorted and deduplicated. Each
// name is a single path segment; join it with parent for the full folder.
// Folders only exist through the entries in them.
func (s *Store) ListFolders(parent string) ([]string, error) {
	parent, err := NormalizeFolder(parent)
	if err != nil {
		return nil, err
	}
	prefix := parent
	if prefix != RootFolder {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.entries {
		if e.Folder == parent || !strings.HasPrefix(e.Folder, prefix) {
			continue
		}
		child := strings.TrimPrefix(e.Folder, prefix)
		if i := strings.IndexByte(child, '/'); i >= 0 {
			child = child[:i]
		}
		if !seen[child] {
			seen[child] = true
			out = append(out, child)
		}
	}
	sort.Strings(out)
	return out, nil
}

// RevealPassword opens the entry's sealed password. An entry without a
// password yields "".
func (s *Store) RevealPassword(id uuid.UUID) (string, error) {
	e, ok := s.entries[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.EncryptedPassword == nil {
		return "", nil
	}
	pt, err := s.sealer.Open(e.EncryptedPassword, fieldAAD(id, "password"))
	if err != nil {
		return "", fmt.Errorf("secrets: failed to open password of %s: %w", e.Path(), err)
	}
	return string(pt), nil
}

// TOTPCode returns the entry's one-time code at t.
func (s *Store) TOTPCode(id uuid.UUID, t time.Time) (string, error) {
	e, ok := s.entries[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.TOTP == nil {
		return "", fmt.Errorf("%w: %s", ErrNoTOTP, e.Path())
	}
	secret, err := s.sealer.Open(e.TOTP.EncryptedSecret, fieldAAD(id, "totp"))
	if err != nil {
		return "", fmt.Errorf("secrets: failed to open TOTP secret of %s: %w", e.Path(), err)
	}
	defer crypto.SecureWipe(secret)
	return totp.Code(string(secret), t, totp.Params{Digits: e.TOTP.Digits, Period: e.TOTP.Period})
}

// Search matches pattern against each entry's full path (folder/name).
// A pattern with glob characters (*?[) uses path.Match; any other pattern is a
// case-insensitive substring match on the name.
func (s *Store) Search(pattern string) ([]LoginEntry, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("secrets: invalid pattern %q: %w", pattern, err)
	}
	hasGlob := strings.ContainsAny(pattern, "*?[")
	needle := strings.ToLower(pattern)

	var out []LoginEntry
	for _, e := range s.entries {
		var matched bool
		if hasGlob {
			p := e.Path()
			matched, _ = path.Match(pattern, p)
			if !matched && !strings.HasPrefix(pattern, "/") {
				matched, _ = path.Match(pattern, strings.TrimPrefix(p, "/"))
			}
		} else {
			matched = strings.Contains(strings.ToLower(e.Name), needle)
		}
		if matched {
			out = append(out, *cloneEntry(e))
		}
	}
	sortEntries(out)
	return out, nil
}

// Len returns the number of entries.
func (s *Store) Len() int { return len(s.entries) }

func sortEntries(es []LoginEntry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].Folder != es[j].Folder {
			return es[i].Folder < es[j].Folder
		}
		return es[i].Name < es[j].Name
	})
}
