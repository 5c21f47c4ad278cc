package phase

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"seiscat/internal/recparse"
	"seiscat/pkg/catalog"
)

// Named correction rules specific to the monthly listing.
const (
	// RuleColumnShift marks lines written in the later era whose timestamp
	// starts one column to the right.
	RuleColumnShift = "column_shift"
	// RuleSDelayDropped marks lines carrying an S marker whose S-P delay
	// field was unreadable; the P pick survives, the S pick does not.
	RuleSDelayDropped = "s_delay_dropped"
)

// Options configures phase parsing for one run.
type Options struct {
	// Stations is the known station stem table used for QC flagging.
	Stations StationTable
	// Overlays carries run-supplied column overrides; only overlays naming
	// this format apply.
	Overlays []recparse.Overlay
	// EraPivot is the two-digit-year pivot; zero selects DefaultEraPivot.
	EraPivot int
	// EraStart/EraEnd bound plausible pick times. Zero values disable the
	// check. Times outside the era fail with time_out_of_era.
	EraStart time.Time
	EraEnd   time.Time
}

func (o Options) pivot() int {
	if o.EraPivot == 0 {
		return DefaultEraPivot
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

// Output collects the picks and diagnostics produced from one source file.
type Output struct {
	Picks []catalog.Pick
	// Failed holds every terminally failed line, for the unparsed-line log.
	Failed []recparse.Result
	// Recovered holds lines that needed a fallback decode or correction rule.
	Recovered []recparse.Result
	Counts    recparse.Counts
	// UnknownStations counts picks per unrecognized station stem.
	UnknownStations map[string]int
}

func newOutput() Output {
	return Output{UnknownStations: make(map[string]int)}
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

func (o *Output) add(p catalog.Pick) {
	if p.StationUnknown {
		o.UnknownStations[p.Station]++
	}
	o.Picks = append(o.Picks, p)
}

func pickID(prefix, file string, line int, phase catalog.Phase) string {
	return fmt.Sprintf("%s_%s_%d_%s", prefix, recparse.FileTag(file), line, phase)
}

// ParseMonthly parses one monthly PHA file. A single listing line can yield a
// P pick, an S pick (offset by the S-P delay), or both.
func ParseMonthly(r io.Reader, file string, opts Options) (Output, error) {
	out := newOutput()
	sc := recparse.NewScanner(r, file, catalog.SourceMonthlyPHA, opts.spec(MonthlySpec()))
	for sc.Scan() {
		res := sc.Result()
		prev := res.Status
		if res.Status == recparse.StatusFailed {
			out.record(res, prev)
			continue
		}
		picks := buildMonthlyPicks(&res, opts)
		out.record(res, prev)
		for _, p := range picks {
			out.add(p)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", file, err)
	}
	out.Counts = replaceScanCounts(sc.Counts(), out.Counts)
	return out, nil
}

// replaceScanCounts merges the scanner's line accounting with the builder's
// reclassifications accumulated in delta.
func replaceScanCounts(scan, delta recparse.Counts) recparse.Counts {
	scan.OK += delta.OK
	scan.Recovered += delta.Recovered
	scan.Failed += delta.Failed
	return scan
}

func buildMonthlyPicks(res *recparse.Result, opts Options) []catalog.Pick {
	raw := res.Raw
	station := res.Fields.Get("station")
	if len(station) < 2 || strings.EqualFold(station, "xxx") {
		res.Fail(recparse.ReasonNoPickOnLine, "placeholder station")
		return nil
	}

	// Timestamp window drifted one column between file eras: a blank col 8
	// means the later layout.
	var tsRaw string
	switch {
	case len(raw) > 8 && raw[8] == ' ':
		tsRaw = sliceCols(raw, 9, 24)
		res.ApplyRule(RuleColumnShift)
	default:
		tsRaw = sliceCols(raw, 8, 23)
	}
	pickTime, rules, err := ParseLegacyTimestamp(tsRaw, opts.pivot())
	if err != nil {
		res.Fail(recparse.ReasonBadTimestamp, err.Error())
		return nil
	}
	for _, rule := range rules {
		res.ApplyRule(rule)
	}
	if !opts.inEra(pickTime) {
		res.Fail(recparse.ReasonTimeOutOfEra, pickTime.Format(time.RFC3339))
		return nil
	}

	pCode := padCode(sliceCols(raw, 4, 8))
	hasP := pCode[1] == 'P'

	sPos := findSMarker(raw)
	var sDelay float64
	hasS := false
	if sPos > 0 {
		delayRaw := strings.TrimSpace(sliceCols(raw, sPos-7, sPos-1))
		d, err := strconv.ParseFloat(delayRaw, 64)
		if err != nil || delayRaw == "" {
			res.ApplyRule(RuleSDelayDropped)
		} else {
			sDelay = d
			hasS = true
		}
	}
	if !hasP && !hasS {
		res.Fail(recparse.ReasonNoPickOnLine, "no P code and no S marker")
		return nil
	}

	stem, channel, unknown := Normalize(station, res.Fields.Get("orientation"), opts.Stations)
	var picks []catalog.Pick
	if hasP {
		p := catalog.Pick{
			ID:             pickID("mon", res.Source.File, res.Source.Line, catalog.PhaseP),
			Station:        stem,
			Channel:        channel,
			Phase:          catalog.PhaseP,
			Time:           pickTime,
			StationUnknown: unknown,
			Provenance:     []catalog.SourceRef{res.Source},
		}
		p.Onset, p.FirstMotion, p.Weight = decodeArrivalCode(pCode)
		picks = append(picks, p)
	}
	if hasS {
		sCode := padCode(sliceCols(raw, sPos-1, sPos+3))
		p := catalog.Pick{
			ID:             pickID("mon", res.Source.File, res.Source.Line, catalog.PhaseS),
			Station:        stem,
			Channel:        channel,
			Phase:          catalog.PhaseS,
			Time:           pickTime.Add(time.Duration(sDelay * float64(time.Second))),
			StationUnknown: unknown,
			Provenance:     []catalog.SourceRef{res.Source},
		}
		p.Onset, p.FirstMotion, p.Weight = decodeArrivalCode(sCode)
		picks = append(picks, p)
	}
	return picks
}

// findSMarker locates a lone S marker within the listing's S column window.
// Multiple S characters in the window mean the line is too garbled to trust.
func findSMarker(raw string) int {
	pos := 0
	count := 0
	hi := sMarkerHi
	if len(raw) <= hi {
		hi = len(raw) - 1
	}
	for i := sMarkerLo; i <= hi; i++ {
		if raw[i] == 'S' {
			count++
			pos = i
		}
	}
	if count == 1 {
		return pos
	}
	return 0
}

// decodeArrivalCode splits a 4-character arrival code into onset (I/E),
// first motion (U/D), and weight digit.
func decodeArrivalCode(code string) (onset, motion string, weight *int) {
	if code[0] == 'I' || code[0] == 'E' {
		onset = string(code[0])
	}
	if code[2] == 'U' || code[2] == 'D' {
		motion = string(code[2])
	}
	if code[3] >= '0' && code[3] <= '9' {
		w := int(code[3] - '0')
		weight = &w
	}
	return onset, motion, weight
}

func padCode(s string) string {
	for len(s) < 4 {
		s += " "
	}
	return s
}

func sliceCols(s string, lo, hi int) string {
	if lo < 0 {
		lo = 0
	}
	if lo >= len(s) {
		return ""
	}
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}

// ParseIndividual parses one per-event analyst PHA file. The event identity
// is the file itself; every line is a single pick.
func ParseIndividual(r io.Reader, file string, opts Options) (Output, error) {
	out := newOutput()
	sc := recparse.NewScanner(r, file, catalog.SourceIndividualPHA, opts.spec(IndividualSpec()))
	for sc.Scan() {
		res := sc.Result()
		prev := res.Status
		if res.Status == recparse.StatusFailed {
			out.record(res, prev)
			continue
		}
		p, ok := buildIndividualPick(&res, opts)
		out.record(res, prev)
		if ok {
			out.add(p)
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read %s: %w", file, err)
	}
	out.Counts = replaceScanCounts(sc.Counts(), out.Counts)
	return out, nil
}

func buildIndividualPick(res *recparse.Result, opts Options) (catalog.Pick, bool) {
	station := res.Fields.Get("station")
	if len(station) < 2 || strings.EqualFold(station, "xxxx") {
		res.Fail(recparse.ReasonNoPickOnLine, "placeholder station")
		return catalog.Pick{}, false
	}
	phaseRaw := strings.ToUpper(res.Fields.Get("phase"))
	if phaseRaw != string(catalog.PhaseP) && phaseRaw != string(catalog.PhaseS) {
		res.Fail(recparse.ReasonBadPhase, phaseRaw)
		return catalog.Pick{}, false
	}
	pickTime, rules, err := ParseLegacyTimestamp(res.Fields.Get("timestamp"), opts.pivot())
	if err != nil {
		res.Fail(recparse.ReasonBadTimestamp, err.Error())
		return catalog.Pick{}, false
	}
	for _, rule := range rules {
		res.ApplyRule(rule)
	}
	if !opts.inEra(pickTime) {
		res.Fail(recparse.ReasonTimeOutOfEra, pickTime.Format(time.RFC3339))
		return catalog.Pick{}, false
	}

	stem := station
	orientation := ""
	if len(station) > 3 {
		stem, orientation = station[:3], station[3:4]
	}
	normStem, channel, unknown := Normalize(stem, orientation, opts.Stations)

	p := catalog.Pick{
		ID:             pickID("ind", res.Source.File, res.Source.Line, catalog.Phase(phaseRaw)),
		Station:        normStem,
		Channel:        channel,
		Phase:          catalog.Phase(phaseRaw),
		Time:           pickTime,
		StationUnknown: unknown,
		Provenance:     []catalog.SourceRef{res.Source},
	}
	if w, err := strconv.Atoi(res.Fields.Get("weight")); err == nil {
		p.Weight = &w
	}
	return p, true
}
