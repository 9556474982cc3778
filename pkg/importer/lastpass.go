package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// LastPassParser parses LastPass CSV export files:
// url,username,password,totp,extra,name,grouping,fav
type LastPassParser struct{}

// LastPass CSV column names (header-based parsing).
const (
	lpColURL      = "url"
	lpColUsername = "username"
	lpColPassword = "password"
	lpColTOTP     = "totp"
	lpColExtra    = "extra"
	lpColName     = "name"
	lpColGrouping = "grouping"
)

// lastPassNoteURL is the url LastPass writes for secure notes.
const lastPassNoteURL = "http://sn"

// Source returns the source type for this parser.
func (p *LastPassParser) Source() Source {
	return SourceLastPass
}

// Parse parses LastPass CSV data.
func (p *LastPassParser) Parse(data []byte, opts ParseOptions) (*ImportResult, error) {
	rows, err := readCSV(data, strings.ToLower, lpColName)
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
		// LastPass HTML-encodes special characters
		get := func(col string) string { return DecodeHTMLEntities(r.get(col)) }

		raw := rawItem{
			Name:     get(lpColName),
			Username: get(lpColUsername),
			Password: get(lpColPassword),
			TOTP:     get(lpColTOTP),
			Notes:    get(lpColExtra),
			// Nested groups are separated by backslashes
			Folder: strings.ReplaceAll(get(lpColGrouping), `\`, "/"),
		}
		if u := get(lpColURL); u != lastPassNoteURL {
			raw.Website = u
		}
		b.add(label, raw)
	}
	return b.finish(), nil
}

// csvRow is one data row of a header-addressed CSV file.
type csvRow struct {
	num    int // 1-based line in the file, the header is row 1
	fields []string
	cols   map[string]int
	err    error
}

func (r csvRow) get(col string) string {
	if idx, ok := r.cols[col]; ok && idx < len(r.fields) {
		return strings.TrimSpace(r.fields[idx])
	}
	return ""
}

// readCSV reads a CSV export whose first row names the columns. Column
// names are mapped through key before lookup; required must be present.
// Malformed rows are returned with err set.
func readCSV(data []byte, key func(string) string, required string) ([]csvRow, error) {
	// Strip UTF-8 BOM if present
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true // Handle malformed exports
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int)
	for i, col := range header {
		cols[key(strings.TrimSpace(col))] = i
	}
	if _, ok := cols[required]; !ok {
		return nil, fmt.Errorf("missing required column: %s", required)
	}

	var rows []csvRow
	for num := 2; ; num++ {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		row := csvRow{num: num, fields: fields, cols: cols}
		switch {
		case err != nil:
			row.err = fmt.Errorf("failed to parse: %w", err)
		case len(fields) != len(header):
			row.err = fmt.Errorf("column count mismatch (expected %d, got %d)", len(header), len(fields))
		}
		rows = append(rows, row)
	}
	return rows, nil
}
