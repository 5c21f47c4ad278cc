// Package hypo71 parses the two independently maintained hypocenter summary
// catalogs into canonical origins: the classic HYPO71 fixed-width summary and
// the alternate columnar catalog with loose, era-drifting spacing. Known
// format quirks are corrected by named rules; anything not covered by a named
// rule fails, it is never guessed.
package hypo71

import (
	"strings"

	"seiscat/internal/recparse"
)

// SummarySpec declares the classic HYPO71 summary layout:
// YYMMDD HHMM SS.SS lat-deg hem lat-min lon-deg hem lon-min depth mag nass rms.
func SummarySpec() recparse.Spec {
	return recparse.Spec{
		Name: "hypo71_sum",
		Fields: []recparse.Field{
			{Name: "year", Start: 0, End: 2},
			{Name: "month", Start: 2, End: 4},
			{Name: "day", Start: 4, End: 6},
			{Name: "hour", Start: 7, End: 9, Optional: true},
			{Name: "minute", Start: 9, End: 11, Optional: true},
			{Name: "seconds", Start: 12, End: 17, Optional: true},
			{Name: "lat_deg", Start: 17, End: 20},
			{Name: "lat_hem", Start: 20, End: 21},
			{Name: "lat_min", Start: 21, End: 26},
			{Name: "lon_deg", Start: 27, End: 30},
			{Name: "lon_hem", Start: 30, End: 31},
			{Name: "lon_min", Start: 31, End: 36},
			{Name: "depth_km", Start: 37, End: 43},
			{Name: "magnitude", Start: 44, End: 50, Optional: true},
			{Name: "nass", Start: 51, End: 53, Optional: true},
			{Name: "rms", Start: 62, End: 70, Optional: true},
		},
		MinLen:  36,
		Comment: func(line string) bool { return strings.HasPrefix(strings.TrimSpace(line), "DATE") },
	}
}

// AltSpec declares the alternate columnar catalog. Its spacing drifts too
// much for fixed columns; the primary decode only gates on token count and
// the builder assembles values token by token with named rules.
func AltSpec() recparse.Spec {
	primary := recparse.TokenDecoder("tokens", 6)
	return recparse.Spec{
		Name:    "pinaall_dat",
		Primary: &primary,
		MinLen:  20,
	}
}
