package hypo71

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"seiscat/internal/phase"
	"seiscat/internal/recparse"
	"seiscat/pkg/catalog"
)

// Named correction rules for the two summary formats.
const (
	// RuleBlankTimeFields fills blank hour/minute/second columns with zero.
	RuleBlankTimeFields = "blank_time_fields"
	// RuleMagnitudeMissing keeps an origin whose magnitude column is blank or
	// truncated; the magnitude stays null.
	RuleMagnitudeMissing = "magnitude_missing"
	// RuleFusedLatLon decodes a "15N08.13" coordinate written as one token.
	RuleFusedLatLon = "fused_latlon"
	// RuleSplitMinutes decodes a "15N 08.13" coordinate with detached minutes.
	RuleSplitMinutes = "split_minutes"
	// RuleFusedMMDD splits a fused month-day token ("615" or "0615").
	RuleFusedMMDD = "fused_mmdd"
	// RuleFusedHHMM splits a fused hour-minute token ("1432").
	RuleFusedHHMM = "fused_hhmm"
	// RuleMinuteOverflow normalizes minute values of 60-99 into added hours.
	RuleMinuteOverflow = "minute_overflow"
)

// Options configures hypocenter parsing for one run.
type Options struct {
	// Overlays carries run-supplied column overrides; only overlays naming
	// this format apply.
	Overlays []recparse.Overlay
	// EraPivot is the two-digit-year pivot; zero selects phase.DefaultEraPivot.
	EraPivot int
	// EraStart/EraEnd bound plausible origin times; zero values disable.
	EraStart time.Time
	EraEnd   time.Time
}

func (o Options) pivot() int {
	if o.EraPivot == 0 {
		return phase.DefaultEraPivot
	}
	return o.EraPivot
}

func (o Options) spec(base recparse.Spec) recparse.Spec {
	for _, ov := range o.Overlays {
		if ov.Format == base.Name {
			base = base.Apply(ov)
		}
	}
	return base
}

func (o Options) inEra(t time.Time) bool {
	if !o.EraStart.IsZero() && t.Before(o.EraStart) {
		return false
	}
	if !o.EraEnd.IsZero() && t.After(o.EraEnd) {
		return false
	}
	return true
}

// Output collects the origins and diagnostics produced from one summary file.
type Output struct {
	Origins   []catalog.Origin
	Failed    []recparse.Result
	Recovered []recparse.Result
	Counts    recparse.Counts
}

func (o *Output) record(res recparse.Result, prev recparse.Status) {
	if res.Status != prev {
		o.Counts.Reclass(prev, res.Status)
	}
	switch res.Status {
	case recparse.StatusFailed:
		o.Failed = append(o.Failed, res)
	case recparse.StatusRecovered:
		o.Recovered = append(o.Recovered, res)
	}
}

func originID(prefix, file string, line int) string {
	return fmt.Sprintf("%s_%s_%d", prefix, recparse.FileTag(file), line)
}

// ParseSummary parses the classic HYPO71 fixed-width summary file.
func ParseSummary(r io.Reader, file string, opts Options) (Output, error) {
	var out Output
	sc := recparse.NewScanner(r, file, catalog.SourceHypo71Summary, opts.spec(SummarySpec()))
	for sc.Scan() {
		res := sc.Result()
		prev := res.Status
		if res.Status == recparse.StatusFailed {
			out.record(res, prev)
			continue
		}
		origin, ok := buildSummaryOrigin(&res, opts)
		out.record(res, prev)
		if ok {
			out.Origins = append(out.Origins, origin)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", file, err)
	}
	out.Counts = mergeCounts(sc.Counts(), out.Counts)
	return out, nil
}

func mergeCounts(scan, delta recparse.Counts) recparse.Counts {
	scan.OK += delta.OK
	scan.Recovered += delta.Recovered
	scan.Failed += delta.Failed
	return scan
}

func buildSummaryOrigin(res *recparse.Result, opts Options) (catalog.Origin, bool) {
	f := res.Fields

	intField := func(name string) (int, bool) {
		v, err := f.Int(name)
		if err != nil {
			res.Fail(recparse.ReasonBadNumber, fmt.Sprintf("%s: %q", name, f.Get(name)))
			return 0, false
		}
		return v, true
	}

	yy, ok := intField("year")
	if !ok {
		return catalog.Origin{}, false
	}
	month, ok := intField("month")
	if !ok {
		return catalog.Origin{}, false
	}
	day, ok := intField("day")
	if !ok {
		return catalog.Origin{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		res.Fail(recparse.ReasonBadTimestamp, fmt.Sprintf("month %d day %d", month, day))
		return catalog.Origin{}, false
	}

	hour, minute, seconds := 0, 0, 0.0
	blankTime := false
	if f.Has("hour") {
		if hour, ok = intField("hour"); !ok {
			return catalog.Origin{}, false
		}
	} else {
		blankTime = true
	}
	if f.Has("minute") {
		if minute, ok = intField("minute"); !ok {
			return catalog.Origin{}, false
		}
	} else {
		blankTime = true
	}
	if f.Has("seconds") {
		sec, err := f.Float("seconds")
		if err != nil {
			res.Fail(recparse.ReasonBadNumber, "seconds: "+f.Get("seconds"))
			return catalog.Origin{}, false
		}
		seconds = sec
	} else {
		blankTime = true
	}
	if blankTime {
		res.ApplyRule(RuleBlankTimeFields)
	}
	if hour > 23 || minute > 60 || seconds < 0 || seconds >= 61 {
		res.Fail(recparse.ReasonBadTimestamp, fmt.Sprintf("%02d:%02d:%05.2f", hour, minute, seconds))
		return catalog.Origin{}, false
	}

	lat, ok := hemCoordinate(res, "lat_deg", "lat_hem", "lat_min")
	if !ok {
		return catalog.Origin{}, false
	}
	lon, ok := hemCoordinate(res, "lon_deg", "lon_hem", "lon_min")
	if !ok {
		return catalog.Origin{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		res.Fail(recparse.ReasonLatLonRange, fmt.Sprintf("lat %.4f lon %.4f", lat, lon))
		return catalog.Origin{}, false
	}

	depth, err := f.Float("depth_km")
	if err != nil {
		res.Fail(recparse.ReasonBadNumber, "depth_km: "+f.Get("depth_km"))
		return catalog.Origin{}, false
	}

	var magnitude *float64
	if f.Has("magnitude") {
		m, err := f.Float("magnitude")
		if err != nil {
			res.Fail(recparse.ReasonBadNumber, "magnitude: "+f.Get("magnitude"))
			return catalog.Origin{}, false
		}
		magnitude = &m
	} else {
		res.ApplyRule(RuleMagnitudeMissing)
	}

	year := phase.ExpandYear(yy, opts.pivot())
	originTime := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC).
		Add(time.Duration(minute) * time.Minute).
		Add(time.Duration(seconds * float64(time.Second)))
	if minute == 60 {
		res.ApplyRule(RuleMinuteOverflow)
	}
	if !opts.inEra(originTime) {
		res.Fail(recparse.ReasonTimeOutOfEra, originTime.Format(time.RFC3339))
		return catalog.Origin{}, false
	}

	origin := catalog.Origin{
		ID:              originID("h71", res.Source.File, res.Source.Line),
		Time:            originTime,
		Latitude:        lat,
		Longitude:       lon,
		DepthKm:         depth,
		Magnitude:       magnitude,
		PreferredSource: catalog.SourceHypo71Summary,
		Provenance:      []catalog.SourceRef{res.Source},
	}
	if f.Has("nass") {
		if n, err := f.Int("nass"); err == nil {
			origin.StationCount = &n
		}
	}
	if f.Has("rms") {
		if v, err := f.Float("rms"); err == nil {
			origin.RMS = &v
		}
	}
	return origin, true
}

func hemCoordinate(res *recparse.Result, degName, hemName, minName string) (float64, bool) {
	f := res.Fields
	deg, err := f.Float(degName)
	if err != nil {
		res.Fail(recparse.ReasonBadNumber, degName+": "+f.Get(degName))
		return 0, false
	}
	mins, err := f.Float(minName)
	if err != nil {
		res.Fail(recparse.ReasonBadNumber, minName+": "+f.Get(minName))
		return 0, false
	}
	return hemSign(f.Get(hemName)) * (deg + mins/60), true
}

// ParseAlt parses the alternate columnar catalog with the tolerant
// token-by-token assembler.
func ParseAlt(r io.Reader, file string, opts Options) (Output, error) {
	var out Output
	sc := recparse.NewScanner(r, file, catalog.SourceAltSummary, opts.spec(AltSpec()))
	for sc.Scan() {
		res := sc.Result()
		prev := res.Status
		if res.Status == recparse.StatusFailed {
			out.record(res, prev)
			continue
		}
		origin, ok := buildAltOrigin(&res, opts)
		out.record(res, prev)
		if ok {
			out.Origins = append(out.Origins, origin)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", file, err)
	}
	out.Counts = mergeCounts(sc.Counts(), out.Counts)
	return out, nil
}

func buildAltOrigin(res *recparse.Result, opts Options) (catalog.Origin, bool) {
	tokens := strings.Fields(res.Raw)

	originTime, next, rules, err := parseAltDatetime(tokens, opts.pivot())
	if err != nil {
		res.Fail(recparse.ReasonBadTimestamp, err.Error())
		return catalog.Origin{}, false
	}
	for _, rule := range rules {
		res.ApplyRule(rule)
	}
	if !opts.inEra(originTime) {
		res.Fail(recparse.ReasonTimeOutOfEra, originTime.Format(time.RFC3339))
		return catalog.Origin{}, false
	}

	lat, next, latRule, err := parseLatLonTokens(tokens, next)
	if err != nil {
		res.Fail(recparse.ReasonBadNumber, err.Error())
		return catalog.Origin{}, false
	}
	lon, next, lonRule, err := parseLatLonTokens(tokens, next)
	if err != nil {
		res.Fail(recparse.ReasonBadNumber, err.Error())
		return catalog.Origin{}, false
	}
	for _, rule := range []string{latRule, lonRule} {
		if rule != "" {
			res.ApplyRule(rule)
		}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		res.Fail(recparse.ReasonLatLonRange, fmt.Sprintf("lat %.4f lon %.4f", lat, lon))
		return catalog.Origin{}, false
	}

	depth, magnitude := trailingNumbers(tokens, next)
	if depth == nil {
		res.Fail(recparse.ReasonMissingField, "no depth column")
		return catalog.Origin{}, false
	}
	if magnitude == nil {
		res.ApplyRule(RuleMagnitudeMissing)
	}

	return catalog.Origin{
		ID:              originID("alt", res.Source.File, res.Source.Line),
		Time:            originTime,
		Latitude:        lat,
		Longitude:       lon,
		DepthKm:         *depth,
		Magnitude:       magnitude,
		PreferredSource: catalog.SourceAltSummary,
		Provenance:      []catalog.SourceRef{res.Source},
	}, true
}

// parseAltDatetime assembles the origin time from the leading tokens,
// tolerating fused month-day and hour-minute tokens and minute overflow.
func parseAltDatetime(tokens []string, pivot int) (time.Time, int, []string, error) {
	var rules []string
	if len(tokens) < 4 {
		return time.Time{}, 0, nil, fmt.Errorf("not enough tokens for datetime")
	}
	i := 0
	yy, err := strconv.Atoi(tokens[i])
	if err != nil {
		return time.Time{}, 0, nil, fmt.Errorf("bad year token %q", tokens[i])
	}
	year := yy
	if yy < 100 {
		year = phase.ExpandYear(yy, pivot)
	}
	i++

	month, day, fused := splitMMDD(tokens[i])
	if fused {
		rules = append(rules, RuleFusedMMDD)
		i++
	} else {
		month, err = strconv.Atoi(tokens[i])
		if err != nil {
			return time.Time{}, 0, nil, fmt.Errorf("bad month token %q", tokens[i])
		}
		day, err = strconv.Atoi(tokens[i+1])
		if err != nil {
			return time.Time{}, 0, nil, fmt.Errorf("bad day token %q", tokens[i+1])
		}
		i += 2
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, 0, nil, fmt.Errorf("month %d day %d out of range", month, day)
	}

	var hour, minute int
	var seconds float64
	switch {
	case i+2 < len(tokens) && isDigits(tokens[i]) && isDigits(tokens[i+1]) && isNumber(tokens[i+2]):
		hour, _ = strconv.Atoi(tokens[i])
		minute, _ = strconv.Atoi(tokens[i+1])
		seconds, _ = strconv.ParseFloat(tokens[i+2], 64)
		i += 3
	case i+1 < len(tokens) && isDigits(tokens[i]) && len(tokens[i]) >= 3 && len(tokens[i]) <= 4 && isNumber(tokens[i+1]):
		v, _ := strconv.Atoi(tokens[i])
		hour, minute = v/100, v%100
		seconds, _ = strconv.ParseFloat(tokens[i+1], 64)
		i += 2
		rules = append(rules, RuleFusedHHMM)
	default:
		return time.Time{}, 0, nil, fmt.Errorf("bad time tokens at %d", i)
	}
	if hour > 23 {
		return time.Time{}, 0, nil, fmt.Errorf("hour %d out of range", hour)
	}

	base := time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC)
	if minute >= 60 {
		rules = append(rules, RuleMinuteOverflow)
	}
	t := base.Add(time.Duration(minute)*time.Minute + time.Duration(seconds*float64(time.Second)))
	return t, i, rules, nil
}

// splitMMDD splits a fused month-day token: "615" is June 15, "1103" is
// November 3. Returns fused=false when the token is not that shape.
func splitMMDD(tok string) (month, day int, fused bool) {
	if !isDigits(tok) {
		return 0, 0, false
	}
	switch len(tok) {
	case 3:
		month, _ = strconv.Atoi(tok[:1])
		day, _ = strconv.Atoi(tok[1:])
	case 4:
		month, _ = strconv.Atoi(tok[:2])
		day, _ = strconv.Atoi(tok[2:])
	default:
		return 0, 0, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, false
	}
	return month, day, true
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

// trailingNumbers pulls the first two numeric tokens at or after i: depth and
// magnitude in catalog order.
func trailingNumbers(tokens []string, i int) (*float64, *float64) {
	var nums []float64
	for ; i < len(tokens) && len(nums) < 2; i++ {
		if isNumber(tokens[i]) {
			v, _ := strconv.ParseFloat(tokens[i], 64)
			nums = append(nums, v)
		}
	}
	switch len(nums) {
	case 0:
		return nil, nil
	case 1:
		return &nums[0], nil
	default:
		return &nums[0], &nums[1]
	}
}
