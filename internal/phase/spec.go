// Package phase parses the two legacy PHA pick listings into canonical picks:
// the hand-typed monthly listing (fixed columns, event blocks separated by
// "10"/"100" lines) and the per-event analyst listing (whitespace tokens, one
// file per event). Station spellings are normalized to canonical
// station/channel pairs on the way through.
package phase

import (
	"strings"

	"seiscat/internal/recparse"
)

// Monthly PHA strict layout. The timestamp window is grabbed wide; the
// builder sorts out the one-column drift between file eras (cols 8-23 vs
// 9-24) and the blank-padded digits.
const (
	monthlyMinLen = 20
	sMarkerLo     = 35
	sMarkerHi     = 40
)

// MonthlySpec declares the monthly PHA listing format.
func MonthlySpec() recparse.Spec {
	return recparse.Spec{
		Name: "monthly_pha",
		Fields: []recparse.Field{
			{Name: "station", Start: 0, End: 3},
			{Name: "orientation", Start: 3, End: 4, Optional: true},
			{Name: "p_code", Start: 4, End: 8, Optional: true},
			{Name: "timestamp", Start: 8, End: 24},
		},
		MinLen:  monthlyMinLen,
		Comment: IsBlockSeparator,
	}
}

// IsBlockSeparator reports the "10"/"100" lines that terminate an event block
// in the monthly listing.
func IsBlockSeparator(line string) bool {
	s := strings.TrimSpace(line)
	return s == "10" || s == "100"
}

// IndividualSpec declares the per-event analyst listing: whitespace tokens
// "station phase weight YYMMDDHHMMSS.ff".
func IndividualSpec() recparse.Spec {
	primary := recparse.TokenDecoder("tokens", 4, "station", "phase", "weight", "timestamp")
	return recparse.Spec{
		Name:    "individual_pha",
		Primary: &primary,
		MinLen:  10,
	}
}
