package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"seiscat/internal/pickmerge"
	"seiscat/internal/recparse"
	"seiscat/pkg/catalog"
)

var t0 = time.Date(1991, 6, 15, 12, 34, 56, 780_000_000, time.UTC)

func samplePicks() []catalog.Pick {
	w := 2
	return []catalog.Pick{
		{
			ID: "ind_910615A_1_P", Station: "CAB", Channel: "EHZ", Phase: catalog.PhaseP,
			Time: t0, Onset: "I", FirstMotion: "U", Weight: &w,
			Provenance: []catalog.SourceRef{
				{Kind: catalog.SourceIndividualPHA, File: "910615A.PHA", Line: 1},
				{Kind: catalog.SourceMonthlyPHA, File: "9106.PHA", Line: 40},
			},
		},
		{
			ID: "mon_9106_7_S", Station: "QQQ", Channel: "EHZ", Phase: catalog.PhaseS,
			Time: t0.Add(3 * time.Second), StationUnknown: true,
			Provenance: []catalog.SourceRef{{Kind: catalog.SourceMonthlyPHA, File: "9106.PHA", Line: 7}},
		},
	}
}

func TestWritePicks(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePicks(&buf, samplePicks()); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %q", buf.String())
	}
	if lines[0] != "id,station,channel,phase,time,onset,first_motion,weight,station_unknown,provenance" {
		t.Fatalf("header changed: %s", lines[0])
	}
	if !strings.Contains(lines[1], "1991-06-15T12:34:56.780Z") {
		t.Fatalf("fixed time format expected: %s", lines[1])
	}
	if !strings.Contains(lines[1], "910615A.PHA:1;9106.PHA:40") {
		t.Fatalf("provenance join wrong: %s", lines[1])
	}
	if !strings.Contains(lines[2], ",,") || !strings.Contains(lines[2], "true") {
		t.Fatalf("optional fields must render empty, flags as text: %s", lines[2])
	}
}

func TestWriteOriginsOptionalFields(t *testing.T) {
	mag := 2.3
	origins := []catalog.Origin{
		{ID: "h71_PINA_2", Time: t0, Latitude: 15.1355, Longitude: 120.35, DepthKm: 5,
			Magnitude: &mag, PreferredSource: catalog.SourceHypo71Summary},
		{ID: "alt_PINAALL_9", Time: t0.Add(time.Minute), Latitude: -8.5, Longitude: -79.25, DepthKm: 12.5,
			PreferredSource: catalog.SourceAltSummary},
	}
	var buf bytes.Buffer
	if err := WriteOrigins(&buf, origins); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if !strings.Contains(lines[1], "15.1355") || !strings.Contains(lines[1], "2.3000") {
		t.Fatalf("fixed float format expected: %s", lines[1])
	}
	if !strings.Contains(lines[2], "-8.5000,-79.2500,12.5000,,") {
		t.Fatalf("missing magnitude must render empty: %s", lines[2])
	}
}

func TestWritersAreIdempotent(t *testing.T) {
	picks := samplePicks()
	var a, b bytes.Buffer
	if err := WritePicks(&a, picks); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WritePicks(&b, picks); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatal("two writes of the same table differ")
	}
}

func TestWriteEvents(t *testing.T) {
	events := []catalog.Event{{
		ID:             catalog.EventID(t0, 0),
		Classification: catalog.ClassFullyMerged,
		WaveformRefs:   []string{"wf_a_1", "wf_b_2"},
		PickRefs:       []string{"p1", "p2"},
		OriginRef:      "h71_PINA_2",
		ReferenceTime:  t0,
	}}
	var buf bytes.Buffer
	if err := WriteEvents(&buf, events); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "FULLY_MERGED") || !strings.Contains(buf.String(), "wf_a_1;wf_b_2") {
		t.Fatalf("unexpected events table: %s", buf.String())
	}
}

func TestWriteSuppressions(t *testing.T) {
	sups := []pickmerge.Suppression{{
		SecondaryID:     "mon_9106_40_P",
		SecondarySource: catalog.SourceRef{Kind: catalog.SourceMonthlyPHA, File: "9106.PHA", Line: 40},
		AbsorbedBy:      "ind_910615A_1_P",
		DeltaSeconds:    0.3,
	}}
	var buf bytes.Buffer
	if err := WriteSuppressions(&buf, sups); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "0.300") {
		t.Fatalf("delta must render with fixed precision: %s", buf.String())
	}
}

func TestWriteStationQCSorted(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteStationQC(&buf, map[string]int{"ZZZ": 1, "AAA": 4}); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if lines[1] != "AAA,4" || lines[2] != "ZZZ,1" {
		t.Fatalf("rows must sort by stem: %v", lines)
	}
}

func TestSortFailedAndWriteUnparsed(t *testing.T) {
	failed := []recparse.Result{
		{Source: catalog.SourceRef{Kind: catalog.SourceMonthlyPHA, File: "b.PHA", Line: 2}, Reason: recparse.ReasonBadTimestamp, Raw: "junk"},
		{Source: catalog.SourceRef{Kind: catalog.SourceMonthlyPHA, File: "a.PHA", Line: 9}, Reason: recparse.ReasonTooShort, Raw: "x"},
	}
	SortFailed(failed)
	if failed[0].Source.File != "a.PHA" {
		t.Fatalf("sort order wrong: %+v", failed)
	}
	var buf bytes.Buffer
	if err := WriteUnparsed(&buf, failed); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "bad_timestamp") {
		t.Fatalf("reason code missing: %s", buf.String())
	}
}

func TestWriteSummary(t *testing.T) {
	s := Summary{
		RunID:     "run-1",
		StartedAt: t0,
		Config:    map[string]any{"pick_tolerance_seconds": 0.5},
		EventsBy:  map[string]int{"FULLY_MERGED": 3},
	}
	s.AddFile("9106.PHA", "monthly_pha", recparse.Counts{Lines: 10, Blank: 1, Comment: 2, OK: 6, Recovered: 1})
	var buf bytes.Buffer
	if err := WriteSummary(&buf, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"run_id": "run-1"`, `"9106.PHA"`, `"recovered": 1`, `"FULLY_MERGED": 3`} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %s: %s", want, out)
		}
	}
}
