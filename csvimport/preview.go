package csvimport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const PREVIEW_ROWS = 5

// Preview holds the first few records of a batch, rendered as json objects.
type Preview struct {
	Lines     []string
	Remaining int
}

// NewPreview keeps up to PREVIEW_ROWS records, with keys in header order.
func NewPreview(batch *Batch) (*Preview, error) {
	shown := batch.Records
	if len(shown) > PREVIEW_ROWS {
		shown = shown[:PREVIEW_ROWS]
	}

	preview := &Preview{Lines: make([]string, 0, len(shown)), Remaining: len(batch.Records) - len(shown)}
	for _, record := range shown {
		line, err := orderedJSON(batch.Header, record)
		if err != nil {
			return nil, err
		}
		preview.Lines = append(preview.Lines, line)
	}

	return preview, nil
}

func (preview *Preview) Render(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Preview:"); err != nil {
		return err
	}

	for _, line := range preview.Lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if preview.Remaining > 0 {
		_, err := fmt.Fprintf(w, "...and %d more\n", preview.Remaining)
		return err
	}
	return nil
}

// orderedJSON encodes record as an object whose keys follow header.
func orderedJSON(header []string, record Record) (string, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')

	for i, name := range header {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(name)
		if err != nil {
			return "", err
		}
		value, err := json.Marshal(record[name])
		if err != nil {
			return "", err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')
	return buf.String(), nil
}
