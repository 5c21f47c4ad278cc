package phase

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Named timestamp correction rules. Each applied rule is recorded on the
// parse result; anything not covered by a named rule fails the record.
const (
	RuleSecondRollover = "second_rollover"
	RuleMinuteRollover = "minute_rollover"
	RuleZeroPadding    = "zero_padding"
)

// DefaultEraPivot is the two-digit-year pivot: years below it expand to 20xx,
// years at or above it to 19xx.
const DefaultEraPivot = 80

// ExpandYear applies the era rule to a two-digit year.
func ExpandYear(yy, pivot int) int {
	if yy < pivot {
		return 2000 + yy
	}
	return 1900 + yy
}

// ParseLegacyTimestamp decodes a YYMMDDHHMMSS(.ff) legacy timestamp,
// tolerating the typing quirks of the listings: blank-padded digit positions,
// a "60" second field (rolls into the next minute), and a "60" minute field
// (rolls into the next hour). It returns the UTC instant and the names of the
// rules that had to fire.
func ParseLegacyTimestamp(s string, pivot int) (time.Time, []string, error) {
	var rules []string
	s = strings.TrimSpace(s)
	if strings.ContainsRune(s, ' ') {
		s = strings.ReplaceAll(s, " ", "0")
		rules = append(rules, RuleZeroPadding)
	}
	if len(s) < 12 {
		return time.Time{}, nil, fmt.Errorf("timestamp %q too short", s)
	}

	digits := s[:12]
	frac := 0.0
	if len(s) > 12 {
		rest := s[12:]
		if !strings.HasPrefix(rest, ".") {
			return time.Time{}, nil, fmt.Errorf("timestamp %q: malformed fraction", s)
		}
		f, err := strconv.ParseFloat("0"+rest, 64)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("timestamp %q: %w", s, err)
		}
		frac = f
	}

	field := func(lo, hi int) (int, error) { return strconv.Atoi(digits[lo:hi]) }
	yy, err := field(0, 2)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("timestamp %q: bad year", s)
	}
	month, err := field(2, 4)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, nil, fmt.Errorf("timestamp %q: bad month", s)
	}
	day, err := field(4, 6)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, nil, fmt.Errorf("timestamp %q: bad day", s)
	}
	hour, err := field(6, 8)
	if err != nil || hour > 23 {
		return time.Time{}, nil, fmt.Errorf("timestamp %q: bad hour", s)
	}
	minute, err := field(8, 10)
	if err != nil || minute > 60 {
		return time.Time{}, nil, fmt.Errorf("timestamp %q: bad minute", s)
	}
	second, err := field(10, 12)
	if err != nil || second > 60 {
		return time.Time{}, nil, fmt.Errorf("timestamp %q: bad second", s)
	}

	var carry time.Duration
	if second == 60 {
		second = 0
		carry += time.Minute
		rules = append(rules, RuleSecondRollover)
	}
	if minute == 60 {
		minute = 0
		carry += time.Hour
		rules = append(rules, RuleMinuteRollover)
	}

	year := ExpandYear(yy, pivot)

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	t = t.Add(carry + time.Duration(frac*float64(time.Second)))
	return t, rules, nil
}
