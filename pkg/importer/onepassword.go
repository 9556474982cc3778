package importer

import (
	"fmt"
	"strings"
)

// OnePasswordParser parses 1Password CSV export files:
// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
type OnePasswordParser struct{}

// 1Password CSV column names (header-based parsing).
const (
	op1ColTitle    = "Title"
	op1ColWebsite  = "Website"
	op1ColUsername = "Username"
	op1ColPassword = "Password"
	op1ColOTPAuth  = "OTPAuth"
	op1ColArchived = "Archived"
	op1ColTags     = "Tags"
	op1ColNotes    = "Notes"
)

// Source returns the source type for this parser.
func (p *OnePasswordParser) Source() Source {
	return Source1Password
}

// Parse parses 1Password CSV data. The first tag of an item becomes its
// folder; the remaining tags are kept in the comments.
func (p *OnePasswordParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	rows, err := readCSV(data, func(s string) string { return s }, op1ColTitle)
	if err != nil {
		return nil, err
	}

	b := newBuilder(opts)
	for _, r := range rows {
		label := fmt.Sprintf("row %d", r.num)
		if r.err != nil {
			b.warn(label, "%v", r.err)
			continue
		}

		raw := rawItem{
			Name:     r.get(op1ColTitle),
			Website:  r.get(op1ColWebsite),
			Username: r.get(op1ColUsername),
			Password: r.get(op1ColPassword),
			TOTP:     r.get(op1ColOTPAuth),
			Notes:    r.get(op1ColNotes),
		}
		if strings.EqualFold(r.get(op1ColArchived), "true") {
			raw.Extra = append(raw.Extra, "Archived in 1Password")
		}

		var tags []string
		for _, t := range strings.Split(r.get(op1ColTags), ",") {
			if t = strings.TrimSpace(t); t != "" {
				tags = append(tags, t)
			}
		}
		if len(tags) > 0 {
			raw.Folder = tags[0]
		}
		if len(tags) > 1 {
			raw.Extra = append(raw.Extra, "Tags: "+strings.Join(tags[1:], ", "))
		}
		b.add(label, raw)
	}
	return b.finish(), nil
}
