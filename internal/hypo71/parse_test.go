package hypo71

import (
	"math"
	"strings"
	"testing"
	"time"

	"seiscat/internal/recparse"
)

// buildSummaryLine assembles a HYPO71 summary line column by column.
func buildSummaryLine(date, hour, minute, seconds, latDeg, latHem, latMin, lonDeg, lonHem, lonMin, depth, mag, nass, rms string) string {
	line := make([]byte, 70)
	for i := range line {
		line[i] = ' '
	}
	put := func(at int, s string) { copy(line[at:], s) }
	put(0, date)
	put(7, hour)
	put(9, minute)
	put(12, seconds)
	put(17, latDeg)
	put(20, latHem)
	put(21, latMin)
	put(27, lonDeg)
	put(30, lonHem)
	put(31, lonMin)
	put(37, depth)
	put(44, mag)
	put(51, nass)
	put(62, rms)
	return strings.TrimRight(string(line), " ")
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParseSummary(t *testing.T) {
	line := buildSummaryLine("950615", "12", "34", "56.78", " 15", "N", " 8.13", "120", "E", "21.00", "  5.00", "  2.30", "12", "    0.15")
	out, err := ParseSummary(strings.NewReader("DATE  ORIGIN  LAT\n"+line+"\n"), "PINA.SUM", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 1 {
		t.Fatalf("expected 1 origin, got %+v", out)
	}
	o := out.Origins[0]
	want := time.Date(1995, 6, 15, 12, 34, 56, 780_000_000, time.UTC)
	if !o.Time.Equal(want) {
		t.Fatalf("origin time %v, want %v (two-digit year 95 is 1995)", o.Time, want)
	}
	if !almost(o.Latitude, 15+8.13/60) || !almost(o.Longitude, 120+21.0/60) {
		t.Fatalf("coordinates %v %v", o.Latitude, o.Longitude)
	}
	if o.DepthKm != 5 {
		t.Fatalf("depth %v", o.DepthKm)
	}
	if o.Magnitude == nil || *o.Magnitude != 2.3 {
		t.Fatalf("magnitude %+v", o.Magnitude)
	}
	if o.StationCount == nil || *o.StationCount != 12 {
		t.Fatalf("station count %+v", o.StationCount)
	}
	if o.RMS == nil || *o.RMS != 0.15 {
		t.Fatalf("rms %+v", o.RMS)
	}
	if len(o.Provenance) != 1 || o.Provenance[0].Line != 2 {
		t.Fatalf("provenance %+v", o.Provenance)
	}
	if err := out.Counts.Verify(); err != nil {
		t.Fatalf("counts: %v", err)
	}
	if out.Counts.Comment != 1 {
		t.Fatalf("header line must count as comment: %+v", out.Counts)
	}
}

func TestParseSummarySouthernHemisphere(t *testing.T) {
	line := buildSummaryLine("910715", " 3", " 5", " 2.00", "  8", "S", "30.00", " 79", "W", "15.00", " 12.50", "  1.10", "  6", "    0.30")
	out, err := ParseSummary(strings.NewReader(line+"\n"), "PINA.SUM", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 1 {
		t.Fatalf("expected 1 origin, got %+v", out)
	}
	o := out.Origins[0]
	if !almost(o.Latitude, -(8+0.5)) || !almost(o.Longitude, -(79+0.25)) {
		t.Fatalf("hemisphere signs wrong: %v %v", o.Latitude, o.Longitude)
	}
}

func TestParseSummaryBlankTimeFields(t *testing.T) {
	line := buildSummaryLine("910615", "", "", "", " 15", "N", " 8.13", "120", "E", "21.00", "  5.00", "  2.30", "", "")
	out, err := ParseSummary(strings.NewReader(line+"\n"), "PINA.SUM", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 1 {
		t.Fatalf("expected recovered origin, got %+v", out)
	}
	if !out.Origins[0].Time.Equal(time.Date(1991, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("blank time must read as midnight: %v", out.Origins[0].Time)
	}
	if len(out.Recovered) != 1 {
		t.Fatalf("blank time fields must surface as recovered: %+v", out.Recovered)
	}
	found := false
	for _, r := range out.Recovered[0].Rules {
		if r == RuleBlankTimeFields {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s, got %v", RuleBlankTimeFields, out.Recovered[0].Rules)
	}
}

func TestParseSummaryBadCoordinateFails(t *testing.T) {
	line := buildSummaryLine("910615", "12", "34", "56.78", "AB ", "N", " 8.13", "120", "E", "21.00", "  5.00", "  2.30", " 12", "")
	out, err := ParseSummary(strings.NewReader(line+"\n"), "PINA.SUM", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 0 || len(out.Failed) != 1 {
		t.Fatalf("bad coordinate must fail the line: %+v", out)
	}
	if out.Failed[0].Reason != recparse.ReasonBadNumber {
		t.Fatalf("reason %s", out.Failed[0].Reason)
	}
	if err := out.Counts.Verify(); err != nil {
		t.Fatalf("counts: %v", err)
	}
}

func TestParseSummaryMissingMagnitude(t *testing.T) {
	line := buildSummaryLine("910615", "12", "34", "56.78", " 15", "N", " 8.13", "120", "E", "21.00", "  5.00", "", "", "")
	out, err := ParseSummary(strings.NewReader(line+"\n"), "PINA.SUM", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 1 {
		t.Fatalf("missing magnitude must not drop the origin: %+v", out)
	}
	if out.Origins[0].Magnitude != nil {
		t.Fatalf("magnitude must stay null, got %v", *out.Origins[0].Magnitude)
	}
	if len(out.Recovered) != 1 {
		t.Fatalf("expected recovered line: %+v", out)
	}
}

func TestParseAltCanonicalAndFused(t *testing.T) {
	input := strings.Join([]string{
		"91 6 15 14 32 12.50 15 N 8.13 120 E 21.00 5.00 2.30",
		"91 615 1432 12.50 15N08.13 120E21.00 5.00 2.30",
	}, "\n") + "\n"
	out, err := ParseAlt(strings.NewReader(input), "PINAALL.DAT", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 2 {
		t.Fatalf("expected 2 origins, got %+v", out)
	}
	a, b := out.Origins[0], out.Origins[1]
	if !a.Time.Equal(b.Time) {
		t.Fatalf("fused spellings must decode to the same instant: %v vs %v", a.Time, b.Time)
	}
	if !almost(a.Latitude, b.Latitude) || !almost(a.Longitude, b.Longitude) {
		t.Fatalf("fused spellings must decode to the same coordinates: %+v vs %+v", a, b)
	}
	// Canonical line is clean, fused line carries named rules.
	if len(out.Recovered) != 1 {
		t.Fatalf("expected exactly one recovered line: %+v", out.Recovered)
	}
	rules := out.Recovered[0].Rules
	for _, want := range []string{RuleFusedMMDD, RuleFusedHHMM, RuleFusedLatLon} {
		found := false
		for _, r := range rules {
			if r == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected rule %s in %v", want, rules)
		}
	}
}

func TestParseAltSplitMinutes(t *testing.T) {
	out, err := ParseAlt(strings.NewReader("91 615 1432 12.50 15N 8.13 120E 21.00 5.00 2.30\n"), "PINAALL.DAT", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 1 {
		t.Fatalf("expected 1 origin, got %+v", out)
	}
	if !almost(out.Origins[0].Latitude, 15+8.13/60) {
		t.Fatalf("latitude %v", out.Origins[0].Latitude)
	}
}

func TestParseAltMinuteOverflow(t *testing.T) {
	out, err := ParseAlt(strings.NewReader("91 615 1475 12.50 15N08.13 120E21.00 5.00 2.30\n"), "PINAALL.DAT", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 1 {
		t.Fatalf("expected 1 origin, got %+v", out)
	}
	want := time.Date(1991, 6, 15, 15, 15, 12, 500_000_000, time.UTC)
	if !out.Origins[0].Time.Equal(want) {
		t.Fatalf("overflow minutes must add hours: %v want %v", out.Origins[0].Time, want)
	}
}

func TestParseAltMissingDepthFails(t *testing.T) {
	out, err := ParseAlt(strings.NewReader("91 615 1432 12.50 15N08.13 120E21.00\n"), "PINAALL.DAT", Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Origins) != 0 || len(out.Failed) != 1 {
		t.Fatalf("missing depth must fail: %+v", out)
	}
	if out.Failed[0].Reason != recparse.ReasonMissingField {
		t.Fatalf("reason %s", out.Failed[0].Reason)
	}
	if err := out.Counts.Verify(); err != nil {
		t.Fatalf("counts: %v", err)
	}
}
