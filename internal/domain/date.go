package domain

import (
	"fmt"
	"time"
)

// dateLayouts are the accepted input formats, tried in order. Superstore
// exports mix US layouts with ISO depending on the export tool.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
}

// Date is a civil calendar day. The zero value is "no date". Dates built by
// NewDate/ParseDate are normalized to midnight UTC, so values compare with ==
// and are usable as map keys.
type Date struct {
	t time.Time
}

// NewDate builds a Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses s using the accepted layouts. Failure yields a
// *MalformedDateError so callers can reject-and-tally the carrying record.
func ParseDate(s string) (Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, &MalformedDateError{Value: s}
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns the midnight-UTC instant of the day.
func (d Date) Time() time.Time { return d.t }

// String formats the date as ISO 2006-01-02.
func (d Date) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON encodes the date as an ISO string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.String())), nil
}

// UnmarshalJSON decodes an ISO date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return &MalformedDateError{Value: string(data)}
	}
	parsed, err := ParseDate(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
