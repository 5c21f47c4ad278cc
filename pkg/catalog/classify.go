package catalog

// Classification records which source types contributed to an event.
type Classification string

// Event classifications, ordered from least to most complete.
const (
	// ClassWaveformOnly marks events backed solely by a waveform interval.
	ClassWaveformOnly Classification = "WAVEFORM_ONLY"
	// ClassPickOnly marks pure pick clusters with no enclosing waveform.
	ClassPickOnly Classification = "PICK_ONLY"
	// ClassHypocenterOnly marks origins with no matching pick cluster.
	ClassHypocenterOnly Classification = "HYPOCENTER_ONLY"
	// ClassWaveformPick marks waveform-backed pick clusters without an origin.
	ClassWaveformPick Classification = "WAVEFORM_PICK"
	// ClassFullyMerged marks events with waveform, picks, and origin.
	ClassFullyMerged Classification = "FULLY_MERGED"
)

// Classify derives the classification from the presence of each source type.
// The all-absent combination is invalid and yields the empty classification;
// callers must treat that as a construction bug, not a data condition.
func Classify(hasWaveform, hasPicks, hasOrigin bool) Classification {
	switch {
	case hasWaveform && hasPicks && hasOrigin:
		return ClassFullyMerged
	case hasWaveform && hasPicks:
		return ClassWaveformPick
	case hasWaveform:
		return ClassWaveformOnly
	case hasPicks:
		return ClassPickOnly
	case hasOrigin:
		return ClassHypocenterOnly
	}
	return ""
}
