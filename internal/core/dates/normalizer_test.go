package dates

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
)

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, time.October, 16, 9, 30, 0, 0, time.UTC) }
}

func TestParse_Formats(t *testing.T) {
	n := NewWithClock(fixedClock())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"storage form", "2024-01-15", "2024-01-15"},
		{"legacy 8 digits", "15012024", "2024-01-15"},
		{"month-year non leap", "02-2026", "2026-02-28"},
		{"month-year leap", "02-2028", "2028-02-29"},
		{"month-year 30 day month", "04-2027", "2027-04-30"},
		{"month-year 31 day month", "12-2026", "2026-12-31"},
		{"month only", "02", "2026-02-28"},
		{"ddmm uses current year", "0212", "2026-12-02"},
		{"mmyy when last two are not a month", "1226", "2026-12-31"},
		{"dd/mm", "5/3", "2026-03-05"},
		{"dd/mm padded", "25/12", "2026-12-25"},
		{"mm-yy", "02-26", "2026-02-28"},
		{"single digit month-year", "2-2028", "2028-02-29"},
		{"surrounding whitespace", "  15012024 ", "2024-01-15"},
		{"dd/mm/yyyy", "15/01/2024", "2024-01-15"},
		{"d/m/yyyy", "5/3/2027", "2027-03-05"},
		{"mm/yyyy", "06/2027", "2027-06-30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Parse("date", tt.input)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.FormatStorage())
		})
	}
}

func TestParse_Blank(t *testing.T) {
	n := NewWithClock(fixedClock())

	for _, s := range []string{"", "   "} {
		got, err := n.Parse("date", s)
		assert.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestParse_Invalid(t *testing.T) {
	n := NewWithClock(fixedClock())

	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"century year uses simplified leap rule", "02-2100", "Invalid date combination: 29/02/2100"},
		{"month out of range", "13-2026", "Invalid month '13'"},
		{"year out of range", "02-1899", "Invalid year '1899'"},
		{"non numeric month-year", "ab-2026", "Invalid MM-YYYY format"},
		{"impossible day", "31022024", "Invalid date combination: 31/02/2024"},
		{"legacy month out of range", "15132024", "Invalid month '13'"},
		{"legacy day zero", "00012024", "Invalid day '00'"},
		{"storage form impossible day", "2024-02-30", "Invalid date combination: 30/02/2024"},
		{"four digits neither ddmm nor mmyy", "1326", "Please enter date in DDMMYYYY format"},
		{"garbage", "hello", "Please enter date in DDMMYYYY format"},
		{"dd/mm with bad day", "32/01", "Invalid day '32'"},
		{"dd/mm/yyyy impossible day", "31/04/2027", "Invalid date combination: 31/04/2027"},
		{"dd/mm/yy is not accepted", "15/01/24", "Please enter date in DDMMYYYY format"},
		{"mm/yyyy month out of range", "13/2027", "Please enter date in DDMMYYYY format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Parse("expiry", tt.input)
			require.Error(t, err)
			assert.Nil(t, got)

			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, "expiry", vErr.Field)
			assert.Contains(t, vErr.Message, tt.message)
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	n := NewWithClock(fixedClock())
	start := MustDate(1999, time.December, 1)

	for i := 0; i < 4000; i++ {
		d := start.AddDays(i)

		fromStorage, err := n.Parse("date", d.FormatStorage())
		require.NoError(t, err)
		require.True(t, d.Equal(*fromStorage), "storage round trip for %s", d)

		fromLegacy, err := n.Parse("date", d.FormatLegacy())
		require.NoError(t, err)
		require.True(t, d.Equal(*fromLegacy), "legacy round trip for %s", d)
	}
}

func TestParseExpiry(t *testing.T) {
	n := NewWithClock(fixedClock())

	got, err := n.ParseExpiry("NA")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = n.ParseExpiry("06-2027")
	require.NoError(t, err)
	assert.Equal(t, "2027-06-30", got.FormatStorage())

	expiry, err := n.NormalizeExpiry("30062027")
	require.NoError(t, err)
	assert.Equal(t, "06-2027", expiry)

	expiry, err = n.NormalizeExpiry("")
	require.NoError(t, err)
	assert.Empty(t, expiry)
}

func TestNormalizeExpiry_StoredFormParsesBack(t *testing.T) {
	n := NewWithClock(fixedClock())

	accepted := []string{
		"30062027", "2027-06-30", "06-2027", "6-27", "0627", "06",
		"15/06/2027", "06/2027", "01011900", "31122100", "NA", "",
	}
	for _, in := range accepted {
		stored, err := n.NormalizeExpiry(in)
		require.NoError(t, err, in)

		back, err := n.ParseExpiry(stored)
		require.NoError(t, err, "stored %q from %q", stored, in)
		if stored == "" {
			assert.Nil(t, back)
			continue
		}
		require.NotNil(t, back)
		assert.Equal(t, stored, back.FormatExpiry())
	}
}

func TestNormalizeExpiry_RejectsYearsOutsideRange(t *testing.T) {
	n := NewWithClock(fixedClock())

	for _, in := range []string{"31122150", "2150-12-31", "01011800", "15/06/2101"} {
		stored, err := n.NormalizeExpiry(in)
		require.Error(t, err, in)
		assert.Empty(t, stored)

		var vErr *ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "expiry", vErr.Field)
		assert.Contains(t, vErr.Message, "Please enter a year between 1900-2100")
	}
}

func TestNormalizeForStorage(t *testing.T) {
	n := NewWithClock(fixedClock())

	assert.Equal(t, "2024-01-15", n.NormalizeForStorage("15012024"))
	assert.Equal(t, "not a date", n.NormalizeForStorage(" not a date "))
}

func TestFormats(t *testing.T) {
	d := MustDate(2026, time.February, 8)

	assert.Equal(t, "2026-02-08", d.FormatStorage())
	assert.Equal(t, "08/02/2026", d.FormatDisplay())
	assert.Equal(t, "08022026", d.FormatLegacy())
	assert.Equal(t, "02-2026", d.FormatExpiry())
}

func TestLastDayOfMonth(t *testing.T) {
	assert.Equal(t, 28, LastDayOfMonth(2026, time.February))
	assert.Equal(t, 29, LastDayOfMonth(2028, time.February))
	assert.Equal(t, 29, LastDayOfMonth(2100, time.February))
	assert.Equal(t, 30, LastDayOfMonth(2026, time.September))
	assert.Equal(t, 31, LastDayOfMonth(2026, time.July))
}

func TestValidationError_AppError(t *testing.T) {
	n := NewWithClock(fixedClock())

	_, err := n.Parse("expiry", "13-2026")
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))

	appErr := vErr.AppError()
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "expiry", appErr.Details["field"])
	assert.Equal(t, "13-2026", appErr.Details["value"])
	assert.ErrorIs(t, appErr, err)
}

func TestDate_JSON(t *testing.T) {
	d := MustDate(2026, time.March, 31)

	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-31"`, string(data))

	var back Date
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, d.Equal(back))
}
