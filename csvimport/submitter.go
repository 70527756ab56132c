package csvimport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	IMPORT_PATH     = "/api/contacts/import-csv"
	DEFAULT_TIMEOUT = 2 * time.Minute
)

type ImportResult struct {
	Imported int `json:"imported"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ImportError is a rejection by the server, e.g. a 400 with per field details.
type ImportError struct {
	Status  int
	Message string
	Details []FieldError
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed (%d): %s", e.Status, e.Message)
}

// TransportError wraps a failure to reach the server or read its reply.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("unable to reach server: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Submitter posts parsed batches to a crm server.
type Submitter struct {
	ServerURL string
	Token     string
	Client    *http.Client
}

type importResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Details []FieldError `json:"details"`
	Data    ImportResult `json:"data"`
}

// Submit sends every record of batch in a single request. It does not retry.
func (s *Submitter) Submit(ctx context.Context, batch *Batch) (*ImportResult, error) {
	body, err := json.Marshal(map[string][]Record{"contacts": batch.Records})
	if err != nil {
		return nil, err
	}

	requestURL := strings.TrimSuffix(s.ServerURL, "/") + IMPORT_PATH
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	res, err := s.client().Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	payload := importResponse{}
	decodeErr := json.Unmarshal(resBody, &payload)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		importErr := &ImportError{Status: res.StatusCode, Message: payload.Message, Details: payload.Details}
		if decodeErr != nil || importErr.Message == "" {
			importErr.Message = http.StatusText(res.StatusCode)
		}
		return nil, importErr
	}

	if decodeErr != nil {
		return nil, &TransportError{Err: fmt.Errorf("could not decode response: %w", decodeErr)}
	}

	return &payload.Data, nil
}

func (s *Submitter) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: DEFAULT_TIMEOUT}
}
