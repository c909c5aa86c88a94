package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pharmastock/internal/core/apperror"
)

const (
	minExpiryYear = 1900
	maxExpiryYear = 2100
)

// ValidationError reports a date that looked like a known encoding but is not
// a real calendar date, or that matches no encoding at all.
type ValidationError struct {
	Field   string
	Input   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AppError converts e into a 400 response naming the field.
func (e *ValidationError) AppError() *apperror.AppError {
	return apperror.NewFieldValidation(e.Field, e.Message).
		WithDetail("value", e.Input).
		WithCause(e)
}

// Normalizer parses date strings. Encodings without a year (DDMM, DD/MM, MM)
// take the year from the clock.
type Normalizer struct {
	now func() time.Time
}

// New returns a Normalizer using the wall clock.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock returns a Normalizer that reads "today" from now.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Today returns the clock's current calendar date.
func (n *Normalizer) Today() Date {
	return FromTime(n.now())
}

// Parse converts s into a Date. Blank input yields (nil, nil).
//
// Recognized encodings, in detection order:
//
//	YYYY-MM-DD
//	MM-YYYY      last day of the month
//	MM           last day of the month, current year
//	DDMM         current year (first two digits 1-31, last two 1-12)
//	MMYY         last day of the month in 20YY
//	DD/MM        current year
//	DD/MM/YYYY
//	MM/YYYY      last day of the month
//	MM-YY        last day of the month in 20YY
//	DDMMYYYY
func (n *Normalizer) Parse(field, s string) (*Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if len(s) == 10 && s[4] == '-' && s[7] == '-' && isDigits(s[0:4]+s[5:7]+s[8:10]) {
		y, _ := strconv.Atoi(s[0:4])
		m, _ := strconv.Atoi(s[5:7])
		d, _ := strconv.Atoi(s[8:10])
		return n.build(field, s, y, m, d)
	}

	if len(s) == 7 && strings.Count(s, "-") == 1 {
		return n.parseMonthYear(field, s)
	}

	digits := s
	if !(len(s) == 8 && isDigits(s)) {
		converted, ok := n.convertLegacy(s)
		if !ok {
			return nil, &ValidationError{
				Field:   field,
				Input:   s,
				Message: "Please enter date in DDMMYYYY format (e.g., 15012024) or MM-YYYY format (e.g., 12-2026)",
			}
		}
		digits = converted
	}

	day, _ := strconv.Atoi(digits[0:2])
	month, _ := strconv.Atoi(digits[2:4])
	year, _ := strconv.Atoi(digits[4:8])
	return n.build(field, s, year, month, day)
}

// ParseExpiry parses an expiry value. "NA" is treated like a blank value.
func (n *Normalizer) ParseExpiry(s string) (*Date, error) {
	if strings.EqualFold(strings.TrimSpace(s), "NA") {
		return nil, nil
	}
	return n.Parse("expiry", s)
}

// NormalizeForStorage returns the YYYY-MM-DD form of s, or the trimmed input
// when s cannot be parsed.
func (n *Normalizer) NormalizeForStorage(s string) string {
	d, err := n.Parse("date", s)
	if err != nil || d == nil {
		return strings.TrimSpace(s)
	}
	return d.FormatStorage()
}

// NormalizeExpiry returns the canonical MM-YYYY form of an expiry input.
// Blank and NA expiries stay empty. Years outside 1900-2100 are rejected so
// that every stored expiry parses back.
func (n *Normalizer) NormalizeExpiry(s string) (string, error) {
	d, err := n.ParseExpiry(s)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", nil
	}
	if d.Year() < minExpiryYear || d.Year() > maxExpiryYear {
		return "", &ValidationError{
			Field:   "expiry",
			Input:   strings.TrimSpace(s),
			Message: fmt.Sprintf("Invalid year '%d'. Please enter a year between %d-%d", d.Year(), minExpiryYear, maxExpiryYear),
		}
	}
	return d.FormatExpiry(), nil
}

func (n *Normalizer) parseMonthYear(field, s string) (*Date, error) {
	parts := strings.SplitN(s, "-", 2)
	month, errM := strconv.Atoi(parts[0])
	year, errY := strconv.Atoi(parts[1])
	if errM != nil || errY != nil {
		return nil, &ValidationError{Field: field, Input: s, Message: "Invalid MM-YYYY format. Please enter like 12-2026"}
	}
	if month < 1 || month > 12 {
		return nil, &ValidationError{Field: field, Input: s, Message: fmt.Sprintf("Invalid month '%02d'. Please enter a month between 01-12", month)}
	}
	if year < minExpiryYear || year > maxExpiryYear {
		return nil, &ValidationError{Field: field, Input: s, Message: fmt.Sprintf("Invalid year '%d'. Please enter a year between %d-%d", year, minExpiryYear, maxExpiryYear)}
	}
	return n.build(field, s, year, month, LastDayOfMonth(year, time.Month(month)))
}

func (n *Normalizer) build(field, input string, year, month, day int) (*Date, error) {
	if month < 1 || month > 12 {
		return nil, &ValidationError{Field: field, Input: input, Message: fmt.Sprintf("Invalid month '%02d'. Please enter a month between 01-12", month)}
	}
	if day < 1 || day > 31 {
		return nil, &ValidationError{Field: field, Input: input, Message: fmt.Sprintf("Invalid day '%02d'. Please enter a day between 01-31", day)}
	}
	d, ok := NewDate(year, time.Month(month), day)
	if !ok {
		return nil, &ValidationError{Field: field, Input: input, Message: fmt.Sprintf("Invalid date combination: %02d/%02d/%d", day, month, year)}
	}
	return &d, nil
}

// convertLegacy rewrites the short encodings into DDMMYYYY.
func (n *Normalizer) convertLegacy(s string) (string, bool) {
	currentYear := n.now().Year()

	if len(s) == 2 && isDigits(s) {
		month, _ := strconv.Atoi(s)
		if month >= 1 && month <= 12 {
			return lastDayDigits(currentYear, month), true
		}
		return "", false
	}

	if len(s) == 4 && isDigits(s) {
		first, _ := strconv.Atoi(s[:2])
		last, _ := strconv.Atoi(s[2:])
		switch {
		case first >= 1 && first <= 31 && last >= 1 && last <= 12:
			return fmt.Sprintf("%s%04d", s, currentYear), true
		case first >= 1 && first <= 12:
			return lastDayDigits(2000+last, first), true
		}
		return "", false
	}

	if parts := strings.Split(s, "/"); len(parts) == 3 {
		if isShortNumber(parts[0]) && isShortNumber(parts[1]) && len(parts[2]) == 4 && isDigits(parts[2]) {
			day, _ := strconv.Atoi(parts[0])
			month, _ := strconv.Atoi(parts[1])
			return fmt.Sprintf("%02d%02d%s", day, month, parts[2]), true
		}
		return "", false
	}

	if parts := strings.Split(s, "/"); len(parts) == 2 {
		if isShortNumber(parts[0]) && len(parts[1]) == 4 && isDigits(parts[1]) {
			month, _ := strconv.Atoi(parts[0])
			year, _ := strconv.Atoi(parts[1])
			if month >= 1 && month <= 12 && year >= minExpiryYear && year <= maxExpiryYear {
				return lastDayDigits(year, month), true
			}
			return "", false
		}
		if isShortNumber(parts[0]) && isShortNumber(parts[1]) {
			day, _ := strconv.Atoi(parts[0])
			month, _ := strconv.Atoi(parts[1])
			return fmt.Sprintf("%02d%02d%04d", day, month, currentYear), true
		}
		return "", false
	}

	if parts := strings.Split(s, "-"); len(parts) == 2 {
		month, errM := strconv.Atoi(parts[0])
		year, errY := strconv.Atoi(parts[1])
		if errM != nil || errY != nil {
			return "", false
		}
		if year < 100 {
			year += 2000
		}
		if month >= 1 && month <= 12 && year >= minExpiryYear && year <= maxExpiryYear {
			return lastDayDigits(year, month), true
		}
	}

	return "", false
}

func lastDayDigits(year, month int) string {
	return fmt.Sprintf("%02d%02d%04d", LastDayOfMonth(year, time.Month(month)), month, year)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isShortNumber(s string) bool {
	return len(s) >= 1 && len(s) <= 2 && isDigits(s)
}

var std = New()

// Parse parses s with the wall-clock Normalizer.
func Parse(field, s string) (*Date, error) {
	return std.Parse(field, s)
}

// ParseExpiry parses an expiry value with the wall-clock Normalizer.
func ParseExpiry(s string) (*Date, error) {
	return std.ParseExpiry(s)
}

// NormalizeForStorage converts s with the wall-clock Normalizer.
func NormalizeForStorage(s string) string {
	return std.NormalizeForStorage(s)
}
