// Package report writes the run's tabular outputs: the three primary catalog
// tables and the per-stage diagnostics. Every writer uses a fixed column
// order and fixed value formatting so that reruns over unchanged inputs
// produce byte-identical files.
package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"seiscat/internal/hypoassoc"
	"seiscat/internal/pickmerge"
	"seiscat/internal/recparse"
	"seiscat/internal/unify"
	"seiscat/internal/wfassoc"
	"seiscat/pkg/catalog"
)

// timeLayout is the fixed timestamp spelling used in every table.
const timeLayout = "2006-01-02T15:04:05.000Z"

func fmtTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func fmtSeconds(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

func fmtOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return fmtFloat(*v)
}

func fmtOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtRefs(refs []catalog.SourceRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ";")
}

func writeTable(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePicks writes the canonical pick table.
func WritePicks(w io.Writer, picks []catalog.Pick) error {
	header := []string{"id", "station", "channel", "phase", "time", "onset", "first_motion", "weight", "station_unknown", "provenance"}
	rows := make([][]string, len(picks))
	for i, p := range picks {
		rows[i] = []string{
			p.ID, p.Station, p.Channel, string(p.Phase), fmtTime(p.Time),
			p.Onset, p.FirstMotion, fmtOptInt(p.Weight),
			strconv.FormatBool(p.StationUnknown), fmtRefs(p.Provenance),
		}
	}
	return writeTable(w, header, rows)
}

// WriteOrigins writes the unified origin table.
func WriteOrigins(w io.Writer, origins []catalog.Origin) error {
	header := []string{"id", "time", "latitude", "longitude", "depth_km", "magnitude", "rms", "station_count", "preferred_source", "provenance"}
	rows := make([][]string, len(origins))
	for i, o := range origins {
		rows[i] = []string{
			o.ID, fmtTime(o.Time), fmtFloat(o.Latitude), fmtFloat(o.Longitude),
			fmtFloat(o.DepthKm), fmtOptFloat(o.Magnitude), fmtOptFloat(o.RMS),
			fmtOptInt(o.StationCount), string(o.PreferredSource), fmtRefs(o.Provenance),
		}
	}
	return writeTable(w, header, rows)
}

// WriteEvents writes the event catalog table. Reference lists are
// semicolon-joined in sorted order.
func WriteEvents(w io.Writer, events []catalog.Event) error {
	header := []string{"id", "classification", "reference_time", "waveform_refs", "pick_refs", "origin_ref"}
	rows := make([][]string, len(events))
	for i, e := range events {
		rows[i] = []string{
			e.ID, string(e.Classification), fmtTime(e.ReferenceTime),
			strings.Join(e.WaveformRefs, ";"), strings.Join(e.PickRefs, ";"), e.OriginRef,
		}
	}
	return writeTable(w, header, rows)
}

// WriteUnparsed writes the unparsed-line log: one row per terminally failed
// input line across all parsed files.
func WriteUnparsed(w io.Writer, failed []recparse.Result) error {
	header := []string{"source_kind", "file", "line", "reason", "detail", "raw"}
	rows := make([][]string, len(failed))
	for i, r := range failed {
		rows[i] = []string{
			string(r.Source.Kind), r.Source.File, strconv.Itoa(r.Source.Line),
			string(r.Reason), r.Detail, r.Raw,
		}
	}
	return writeTable(w, header, rows)
}

// WriteSuppressions writes the pick merge suppression report.
func WriteSuppressions(w io.Writer, sups []pickmerge.Suppression) error {
	header := []string{"secondary_id", "secondary_source", "absorbed_by", "delta_seconds", "ambiguous"}
	rows := make([][]string, len(sups))
	for i, s := range sups {
		rows[i] = []string{
			s.SecondaryID, s.SecondarySource.String(), s.AbsorbedBy,
			fmtSeconds(s.DeltaSeconds), strconv.FormatBool(s.Ambiguous),
		}
	}
	return writeTable(w, header, rows)
}

// WriteNearMisses writes the hypocenter tolerance-comparison report.
func WriteNearMisses(w io.Writer, nms []hypoassoc.NearMiss) error {
	header := []string{"left_id", "right_id", "delta_seconds", "distance_km", "within_strict"}
	rows := make([][]string, len(nms))
	for i, nm := range nms {
		rows[i] = []string{
			nm.LeftID, nm.RightID, fmtSeconds(nm.DeltaSeconds),
			fmtFloat(nm.DistanceKm), strconv.FormatBool(nm.WithinStrict),
		}
	}
	return writeTable(w, header, rows)
}

// WriteUnmatchedPicks writes the picks no waveform interval contains.
func WriteUnmatchedPicks(w io.Writer, ups []wfassoc.UnmatchedPick) error {
	header := []string{"pick_id", "station", "phase", "time"}
	rows := make([][]string, len(ups))
	for i, u := range ups {
		rows[i] = []string{u.PickID, u.Station, string(u.Phase), fmtTime(u.Time)}
	}
	return writeTable(w, header, rows)
}

// WriteUnmatchedOrigins writes the origins that became HYPOCENTER_ONLY.
func WriteUnmatchedOrigins(w io.Writer, uos []unify.UnmatchedOrigin) error {
	header := []string{"origin_id", "time", "nearest_cluster_delta_seconds"}
	rows := make([][]string, len(uos))
	for i, u := range uos {
		delta := ""
		if u.NearestDeltaSeconds >= 0 {
			delta = fmtSeconds(u.NearestDeltaSeconds)
		}
		rows[i] = []string{u.OriginID, fmtTime(u.Time), delta}
	}
	return writeTable(w, header, rows)
}

// WriteStationQC writes the unknown-station tally, sorted by stem.
func WriteStationQC(w io.Writer, unknown map[string]int) error {
	header := []string{"station", "pick_count"}
	stems := make([]string, 0, len(unknown))
	for s := range unknown {
		stems = append(stems, s)
	}
	sort.Strings(stems)
	rows := make([][]string, len(stems))
	for i, s := range stems {
		rows[i] = []string{s, strconv.Itoa(unknown[s])}
	}
	return writeTable(w, header, rows)
}

// SortFailed orders failed results by file then line for stable diagnostics.
func SortFailed(failed []recparse.Result) {
	sort.SliceStable(failed, func(i, j int) bool {
		a, b := failed[i].Source, failed[j].Source
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})
}
