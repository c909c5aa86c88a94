package dto

import (
	"pharmastock/internal/core/dates"
)

// ParseDateRequest asks the date normalizer to interpret a value.
type ParseDateRequest struct {
	Value string `json:"value"`

	// Expiry parses the value as an expiry date, which also accepts "NA".
	Expiry bool `json:"expiry"`
}

// ParseDateResponse shows every form of the parsed date. Empty is true for
// blank or NA input.
type ParseDateResponse struct {
	Input   string `json:"input"`
	Empty   bool   `json:"empty"`
	Storage string `json:"storage,omitempty"`
	Display string `json:"display,omitempty"`
	Legacy  string `json:"legacy,omitempty"`
	Expiry  string `json:"expiry,omitempty"`
}

// FromDate builds the response for a parsed date; d may be nil.
func FromDate(input string, d *dates.Date) ParseDateResponse {
	if d == nil {
		return ParseDateResponse{Input: input, Empty: true}
	}
	return ParseDateResponse{
		Input:   input,
		Storage: d.FormatStorage(),
		Display: d.FormatDisplay(),
		Legacy:  d.FormatLegacy(),
		Expiry:  d.FormatExpiry(),
	}
}
