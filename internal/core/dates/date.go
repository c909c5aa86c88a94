// Package dates normalizes the hand-typed date encodings found on purchase,
// sale and return entries (DDMMYYYY, MM-YYYY, DDMM, MMYY, DD/MM, YYYY-MM-DD)
// into one calendar date type with a fixed storage form.
package dates

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	layoutStorage = "2006-01-02"
	layoutDisplay = "02/01/2006"
)

// Date is a calendar date at UTC midnight.
type Date struct {
	time.Time
}

// NewDate builds a Date and reports whether the day exists in that month.
func NewDate(year int, month time.Month, day int) (Date, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, false
	}
	return Date{t}, true
}

// MustDate is NewDate for constants and tests.
func MustDate(year int, month time.Month, day int) Date {
	d, ok := NewDate(year, month, day)
	if !ok {
		panic(fmt.Sprintf("invalid date %04d-%02d-%02d", year, month, day))
	}
	return d
}

// FromTime truncates t to its calendar date in t's location.
func FromTime(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// FormatStorage returns the canonical YYYY-MM-DD form.
func (d Date) FormatStorage() string {
	return d.Format(layoutStorage)
}

// FormatDisplay returns DD/MM/YYYY.
func (d Date) FormatDisplay() string {
	return d.Format(layoutDisplay)
}

// FormatLegacy returns the 8-digit DDMMYYYY form used by older entry screens.
func (d Date) FormatLegacy() string {
	return fmt.Sprintf("%02d%02d%04d", d.Day(), int(d.Month()), d.Year())
}

// FormatExpiry returns MM-YYYY, the form expiry dates are stored in.
func (d Date) FormatExpiry() string {
	return fmt.Sprintf("%02d-%04d", int(d.Month()), d.Year())
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return Date{d.Time.AddDate(0, 0, n)}
}

// Equal reports whether both dates are the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// String returns the storage form.
func (d Date) String() string {
	return d.FormatStorage()
}

// MarshalJSON encodes the storage form.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.FormatStorage())
}

// UnmarshalJSON accepts only the storage form; free-form input goes through Normalizer.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse(layoutStorage, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	*d = Date{t}
	return nil
}

// LastDayOfMonth returns the last day of month in year.
//
// February has 29 days whenever year is divisible by 4. Century years are not
// special-cased; stored expiry data was produced with this rule, so 02-2100
// resolves to a day that does not exist and fails calendar construction.
func LastDayOfMonth(year int, month time.Month) int {
	switch month {
	case time.January, time.March, time.May, time.July, time.August, time.October, time.December:
		return 31
	case time.February:
		if year%4 == 0 {
			return 29
		}
		return 28
	default:
		return 30
	}
}
