package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

const utf8BOM = "\ufeff"

// ErrNoData is returned, wrapped in a *ParseError, when a file has no header or no data rows.
var ErrNoData = errors.New("no data rows")

// Record maps each header name to the row's cell.
type Record map[string]string

// Batch is the result of a successful parse. Every record carries exactly the header's keys.
type Batch struct {
	Header  []string
	Records []Record
}

func (batch *Batch) Len() int {
	return len(batch.Records)
}

// ParseError reports why a file was rejected. Line is 1-based, 0 when unknown.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("csv line %d: %s", e.Line, e.Msg)
	}
	return "csv: " + e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseFile opens & parses the csv file at path.
func ParseFile(path string) (*Batch, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file %s: %w", path, err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a header row followed by data rows.
// Short rows are padded with "", rows longer than the header fail the parse.
func Parse(r io.Reader) (*Batch, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Msg: "file is empty", Err: ErrNoData}
	}
	if err != nil {
		return nil, syntaxError(err)
	}

	header, err = normalizeHeader(header)
	if err != nil {
		return nil, err
	}

	batch := &Batch{Header: header, Records: make([]Record, 0, 128)}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, syntaxError(err)
		}

		line, _ := reader.FieldPos(0)
		if len(row) > len(header) {
			return nil, &ParseError{
				Line: line,
				Msg:  fmt.Sprintf("row has %d cells but the header has %d", len(row), len(header)),
			}
		}

		record := make(Record, len(header))
		for i, name := range header {
			value := ""
			if i < len(row) {
				value = row[i]
			}
			if !utf8.ValidString(value) {
				return nil, &ParseError{Line: line, Msg: fmt.Sprintf("column %q is not valid UTF-8", name)}
			}
			record[name] = value
		}

		batch.Records = append(batch.Records, record)
	}

	if len(batch.Records) == 0 {
		return nil, &ParseError{Line: 1, Msg: "file has a header but no data rows", Err: ErrNoData}
	}

	return batch, nil
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func normalizeHeader(header []string) ([]string, error) {
	normalized := make([]string, len(header))
	seen := make(map[string]bool, len(header))

	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)

		if !utf8.ValidString(name) {
			return nil, &ParseError{Line: 1, Msg: "header is not valid UTF-8"}
		}
		if name == "" {
			return nil, &ParseError{Line: 1, Msg: fmt.Sprintf("header column %d is empty", i+1)}
		}
		if seen[name] {
			return nil, &ParseError{Line: 1, Msg: fmt.Sprintf("duplicate header %q", name)}
		}

		seen[name] = true
		normalized[i] = name
	}

	return normalized, nil
}

func syntaxError(err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return &ParseError{Line: csvErr.Line, Msg: csvErr.Err.Error(), Err: err}
	}
	return &ParseError{Msg: err.Error(), Err: err}
}
