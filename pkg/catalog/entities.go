// Package catalog defines the canonical entities of the reconstructed seismic
// catalog: picks, origins, waveform records, and unified events, together with
// the provenance references that tie every canonical entity back to the legacy
// source lines it was built from.
package catalog

import (
	"fmt"
	"time"
)

// SourceKind identifies one of the legacy inputs feeding the catalog.
type SourceKind string

// Supported legacy source kinds. The two pick sources and the two hypocenter
// sources are parsed independently and only meet in the association stages.
const (
	// SourceIndividualPHA is the per-event analyst PHA listing (primary picks).
	SourceIndividualPHA SourceKind = "individual_pha"
	// SourceMonthlyPHA is the hand-typed monthly PHA listing (secondary picks).
	SourceMonthlyPHA SourceKind = "monthly_pha"
	// SourceHypo71Summary is the HYPO71 fixed-width summary catalog.
	SourceHypo71Summary SourceKind = "hypo71_sum"
	// SourceAltSummary is the alternate columnar hypocenter catalog.
	SourceAltSummary SourceKind = "pinaall_dat"
	// SourceWaveformIndex is the externally produced waveform file index.
	SourceWaveformIndex SourceKind = "waveform_index"
)

// SourceRef points at a single line of a single legacy input file. Every
// canonical entity carries at least one SourceRef; merged entities carry one
// per absorbed record.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	File string     `json:"file"`
	Line int        `json:"line"`
}

// String renders the reference in the file:line form used across diagnostics.
func (r SourceRef) String() string {
	return fmt.Sprintf("%s:%d", r.File, r.Line)
}

// Phase identifies the seismic phase of a pick.
type Phase string

// Phases present in the legacy listings. Anything else fails validation at
// parse time.
const (
	PhaseP Phase = "P"
	PhaseS Phase = "S"
)

// Pick is a canonical phase-arrival estimate for one station and channel.
// A Pick is created once by the phase parser and mutated only by the pick
// merger, which may extend Provenance when it absorbs a duplicate from the
// secondary source.
type Pick struct {
	ID      string `json:"id"`
	Station string `json:"station"`
	Channel string `json:"channel"`
	Phase   Phase  `json:"phase"`
	// Time is the absolute arrival instant in UTC.
	Time time.Time `json:"time"`
	// Onset is the analyst onset code (I impulsive, E emergent) when present.
	Onset string `json:"onset,omitempty"`
	// FirstMotion is the first-motion polarity (U or D) when present.
	FirstMotion string `json:"first_motion,omitempty"`
	// Weight is the analyst quality weight 0-4; nil when the listing omits it.
	Weight *int `json:"weight,omitempty"`
	// StationUnknown marks picks whose station stem is not in the station
	// table. Such picks pass through unchanged but are surfaced for QC review.
	StationUnknown bool        `json:"station_unknown,omitempty"`
	Provenance     []SourceRef `json:"provenance"`
}

// Origin is a canonical hypocenter solution. Origins from the two summary
// sources are merged by the hypocenter associator; PreferredSource records
// which source supplied the merged attributes.
type Origin struct {
	ID   string    `json:"id"`
	Time time.Time `json:"time"`
	// Latitude and Longitude are signed decimal degrees.
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DepthKm   float64 `json:"depth_km"`
	// Magnitude is nil when the summary line truncated or omitted it.
	Magnitude *float64 `json:"magnitude,omitempty"`
	// RMS is the travel-time residual reported by the locator, when present.
	RMS *float64 `json:"rms,omitempty"`
	// StationCount is the number of associated stations, when present.
	StationCount    *int        `json:"station_count,omitempty"`
	PreferredSource SourceKind  `json:"preferred_source"`
	Provenance      []SourceRef `json:"provenance"`
}

// WaveformRecord describes one waveform file interval from the external
// waveform index. It is read-only input: the pipeline never creates, edits,
// or deletes waveform records.
type WaveformRecord struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Network    string    `json:"network"`
	Station    string    `json:"station"`
	Channel    string    `json:"channel"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	SampleRate float64   `json:"sample_rate"`
}

// Contains reports whether t falls inside the record's interval widened by
// slack on both ends.
func (w WaveformRecord) Contains(t time.Time, slack time.Duration) bool {
	return !t.Before(w.Start.Add(-slack)) && !t.After(w.End.Add(slack))
}

// Event is the terminal catalog entity: a deduplicated physical event with
// references (never embeddings) to the waveforms, picks, and origin that
// contributed to it. Events are immutable once built; a rerun regenerates the
// catalog rather than patching it.
type Event struct {
	ID             string         `json:"id"`
	Classification Classification `json:"classification"`
	WaveformRefs   []string       `json:"waveform_refs,omitempty"`
	PickRefs       []string       `json:"pick_refs,omitempty"`
	// OriginRef is empty when no origin associated within tolerance.
	OriginRef string `json:"origin_ref,omitempty"`
	// ReferenceTime is the earliest contributing timestamp; event IDs and
	// catalog ordering derive from it so reruns stay stable.
	ReferenceTime time.Time `json:"reference_time"`
}

// Validate enforces the event invariant: at least one reference set must be
// non-empty.
func (e Event) Validate() error {
	if len(e.WaveformRefs) == 0 && len(e.PickRefs) == 0 && e.OriginRef == "" {
		return fmt.Errorf("event %s has no waveform, pick, or origin references", e.ID)
	}
	return nil
}

// EventID derives the deterministic event identifier from the earliest
// contributing timestamp plus an ordinal that disambiguates events sharing
// the same millisecond.
func EventID(reference time.Time, ordinal int) string {
	ref := reference.UTC()
	id := fmt.Sprintf("ev%s%03d", ref.Format("20060102150405"), ref.Nanosecond()/1e6)
	if ordinal > 0 {
		id = fmt.Sprintf("%s_%d", id, ordinal)
	}
	return id
}
