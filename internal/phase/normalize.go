package phase

import "strings"

// The legacy listings encode the channel component as a trailing letter on
// the station code (CABZ = station CAB, vertical component). The normalizer
// strips that letter and synthesizes a modern channel code from the era's
// short-period high-gain band code.

const (
	// highGainBand prefixes the component letter for Z/N/E spellings.
	highGainBand = "EH"
	// lowGainVertical is the channel for the trailing-L low-gain spelling.
	lowGainVertical = "ELZ"
	// TimingStation is the sentinel timing-channel station: no component
	// letter, fixed non-seismic channel.
	TimingStation = "TIM"
	// timingChannel is the fixed channel assigned to the timing station.
	timingChannel = "ATZ"
)

// StationTable is the set of known station stems for the dataset. Spellings
// whose stem is not in the table still normalize, but come back flagged for
// QC review.
type StationTable map[string]struct{}

// NewStationTable builds a table from stems.
func NewStationTable(stems ...string) StationTable {
	t := make(StationTable, len(stems))
	for _, s := range stems {
		t[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	return t
}

// Known reports whether the stem is in the table. An empty table knows
// nothing, so every stem flags.
func (t StationTable) Known(stem string) bool {
	_, ok := t[strings.ToUpper(stem)]
	return ok
}

// Normalize maps a legacy station spelling (with optional trailing component
// letter supplied separately by the fixed-column decode) to a canonical
// (station, channel) pair. unknown flags spellings whose stem is not in the
// table; such picks pass through unchanged, never discarded.
func Normalize(station, orientation string, table StationTable) (stem, channel string, unknown bool) {
	stem = strings.ToUpper(strings.TrimSpace(station))
	orientation = strings.ToUpper(strings.TrimSpace(orientation))

	if stem == TimingStation && orientation == "" {
		return TimingStation, timingChannel, false
	}

	switch orientation {
	case "Z", "N", "E":
		channel = highGainBand + orientation
	case "L":
		channel = lowGainVertical
	case "":
		// Component omitted entirely: assume vertical, the era default.
		channel = highGainBand + "Z"
	default:
		channel = "??" + orientation
	}
	return stem, channel, !table.Known(stem)
}
