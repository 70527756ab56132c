package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const DATE_FORMAT = "2006-01-02"

var (
	ErrInvalidDate = errors.New("date must be formatted as YYYY-MM-DD")

	dateLayouts = []string{DATE_FORMAT, time.RFC3339, "2006/01/02"}
)

// Date is a calendar day without a time of day, e.g. a birthday.
// It reads YYYY-MM-DD, RFC 3339 or YYYY/MM/DD and always writes YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(value string) (Date, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return NewDate(parsed), nil
		}
	}
	return Date{}, ErrInvalidDate
}

func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DATE_FORMAT)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}

	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return ErrInvalidDate
	}

	if strings.TrimSpace(value) == "" {
		*d = Date{}
		return nil
	}

	parsed, err := ParseDate(value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (Date) GormDataType() string {
	return "date"
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = NewDate(v)
	case string:
		return d.scanString(v)
	case []byte:
		return d.scanString(string(v))
	default:
		return fmt.Errorf("cannot scan %T into a date", value)
	}
	return nil
}

func (d *Date) scanString(value string) error {
	if value == "" {
		*d = Date{}
		return nil
	}

	// Drivers may hand back a full timestamp for date columns
	if len(value) > len(DATE_FORMAT) {
		value = value[:len(DATE_FORMAT)]
	}

	parsed, err := time.Parse(DATE_FORMAT, value)
	if err != nil {
		return err
	}
	*d = NewDate(parsed)
	return nil
}
