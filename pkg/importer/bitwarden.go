package importer

import (
	"encoding/json"
	"fmt"
)

// BitwardenParser parses Bitwarden JSON export files (unencrypted).
// Logins and secure notes are imported; cards and identities are skipped.
type BitwardenParser struct{}

// Bitwarden item types.
const (
	bitwardenTypeLogin      = 1
	bitwardenTypeSecureNote = 2
	bitwardenTypeCard       = 3
	bitwardenTypeIdentity   = 4
)

// Bitwarden custom field types.
const (
	bitwardenFieldText    = 0
	bitwardenFieldHidden  = 1
	bitwardenFieldBoolean = 2
)

// bitwardenExport represents the top-level Bitwarden export structure.
type bitwardenExport struct {
	Encrypted bool              `json:"encrypted"`
	Items     []bitwardenItem   `json:"items"`
	Folders   []bitwardenFolder `json:"folders"`
}

// bitwardenFolder represents a Bitwarden folder. Nested folders are
// encoded in the name as "parent/child".
type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// bitwardenItem represents a Bitwarden vault item.
type bitwardenItem struct {
	Type     int                    `json:"type"`
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes"`
	FolderID *string                `json:"folderId"`
	Login    *bitwardenLogin        `json:"login"`
	Fields   []bitwardenCustomField `json:"fields"`
}

// bitwardenLogin represents Bitwarden login data.
type bitwardenLogin struct {
	URIs     []bitwardenURI `json:"uris"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	TOTP     string         `json:"totp"`
}

// bitwardenURI represents a Bitwarden URI entry.
type bitwardenURI struct {
	URI string `json:"uri"`
}

// bitwardenCustomField represents a Bitwarden custom field.
type bitwardenCustomField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  int    `json:"type"`
}

// Source returns the source type for this parser.
func (p *BitwardenParser) Source() Source {
	return SourceBitwarden
}

// Parse parses Bitwarden JSON data.
func (p *BitwardenParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	var export bitwardenExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse Bitwarden JSON: %w", err)
	}
	if export.Encrypted {
		return nil, fmt.Errorf("encrypted Bitwarden exports are not supported, export as unencrypted JSON")
	}

	folderMap := make(map[string]string)
	for _, f := range export.Folders {
		folderMap[f.ID] = f.Name
	}

	b := newBuilder(opts)
	for i := range export.Items {
		item := &export.Items[i]
		label := fmt.Sprintf("item %d (%s)", i+1, item.Name)

		var raw rawItem
		switch item.Type {
		case bitwardenTypeLogin:
			raw = p.parseLogin(item)
		case bitwardenTypeSecureNote:
			raw = rawItem{Name: item.Name, Notes: item.Notes}
		case bitwardenTypeCard:
			b.skip(item.Name, "card items are not supported")
			continue
		case bitwardenTypeIdentity:
			b.skip(item.Name, "identity items are not supported")
			continue
		default:
			b.warn(label, "unsupported item type: %d", item.Type)
			continue
		}

		if item.FolderID != nil {
			raw.Folder = folderMap[*item.FolderID]
		}
		for _, cf := range item.Fields {
			switch cf.Type {
			case bitwardenFieldHidden:
				b.warn(label, "hidden custom field %q not imported", cf.Name)
			case bitwardenFieldText, bitwardenFieldBoolean:
				raw.Extra = append(raw.Extra, cf.Name+": "+cf.Value)
			}
		}
		b.add(label, raw)
	}
	return b.finish(), nil
}

// parseLogin maps a Login item. The first URI becomes the website and the
// rest are kept in the comments.
func (p *BitwardenParser) parseLogin(item *bitwardenItem) rawItem {
	raw := rawItem{Name: item.Name, Notes: item.Notes}
	if item.Login == nil {
		return raw
	}
	login := item.Login
	raw.Username = login.Username
	raw.Password = login.Password
	raw.TOTP = login.TOTP

	for _, u := range login.URIs {
		switch {
		case u.URI == "":
		case raw.Website == "":
			raw.Website = u.URI
		default:
			raw.Extra = append(raw.Extra, "URL: "+u.URI)
		}
	}
	return raw
}
