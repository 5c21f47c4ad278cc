package pickmerge

import (
	"testing"
	"time"

	"seiscat/pkg/catalog"
)

var t0 = time.Date(1991, 6, 15, 12, 34, 56, 0, time.UTC)

func pick(id, station string, phase catalog.Phase, at time.Time) catalog.Pick {
	return catalog.Pick{
		ID:      id,
		Station: station,
		Channel: "EHZ",
		Phase:   phase,
		Time:    at,
		Provenance: []catalog.SourceRef{
			{Kind: catalog.SourceIndividualPHA, File: id + ".PHA", Line: 1},
		},
	}
}

func TestMergeAbsorbsSecondaryWithinTolerance(t *testing.T) {
	primary := []catalog.Pick{pick("p1", "CAB", catalog.PhaseP, t0)}
	secondary := []catalog.Pick{pick("s1", "CAB", catalog.PhaseP, t0.Add(300*time.Millisecond))}

	res := Merge(primary, secondary, Options{})
	if len(res.Picks) != 1 {
		t.Fatalf("expected one canonical pick, got %d", len(res.Picks))
	}
	if len(res.Picks[0].Provenance) != 2 {
		t.Fatalf("absorbed pick must extend provenance, got %+v", res.Picks[0].Provenance)
	}
	if len(res.Suppressions) != 1 {
		t.Fatalf("expected one suppression, got %+v", res.Suppressions)
	}
	s := res.Suppressions[0]
	if s.SecondaryID != "s1" || s.AbsorbedBy != "p1" {
		t.Fatalf("unexpected suppression %+v", s)
	}
	if s.DeltaSeconds != 0.3 {
		t.Fatalf("delta %v, want 0.3", s.DeltaSeconds)
	}
}

func TestMergeOutsideToleranceKeepsBoth(t *testing.T) {
	primary := []catalog.Pick{pick("p1", "CAB", catalog.PhaseP, t0)}
	secondary := []catalog.Pick{pick("s1", "CAB", catalog.PhaseP, t0.Add(700*time.Millisecond))}

	res := Merge(primary, secondary, Options{})
	if len(res.Picks) != 2 {
		t.Fatalf("out-of-tolerance secondary must survive, got %+v", res.Picks)
	}
	if len(res.Suppressions) != 0 {
		t.Fatalf("no suppression expected, got %+v", res.Suppressions)
	}
}

func TestMergeKeyIsStationAndPhase(t *testing.T) {
	primary := []catalog.Pick{
		pick("p1", "CAB", catalog.PhaseP, t0),
		pick("p2", "GRN", catalog.PhaseP, t0),
	}
	secondary := []catalog.Pick{
		pick("s1", "CAB", catalog.PhaseS, t0.Add(100*time.Millisecond)),
		pick("s2", "GRN", catalog.PhaseP, t0.Add(100*time.Millisecond)),
	}
	res := Merge(primary, secondary, Options{})
	// s1 differs in phase: survives. s2 matches p2: absorbed.
	if len(res.Picks) != 3 {
		t.Fatalf("expected 3 picks, got %+v", res.Picks)
	}
	if len(res.Suppressions) != 1 || res.Suppressions[0].SecondaryID != "s2" {
		t.Fatalf("unexpected suppressions %+v", res.Suppressions)
	}
}

func TestMergeTieBreakEarliestPrimary(t *testing.T) {
	// Two primaries equidistant from the secondary, far enough apart that
	// they are not duplicates of each other; the earlier record wins.
	primary := []catalog.Pick{
		pick("p1", "CAB", catalog.PhaseP, t0.Add(-500*time.Millisecond)),
		pick("p2", "CAB", catalog.PhaseP, t0.Add(500*time.Millisecond)),
	}
	secondary := []catalog.Pick{pick("s1", "CAB", catalog.PhaseP, t0)}
	res := Merge(primary, secondary, Options{})
	if len(res.Suppressions) != 1 {
		t.Fatalf("expected one suppression, got %+v", res.Suppressions)
	}
	s := res.Suppressions[0]
	if s.AbsorbedBy != "p1" {
		t.Fatalf("tie must go to the earliest primary, got %+v", s)
	}
	if !s.Ambiguous {
		t.Fatalf("resolved tie must be flagged ambiguous: %+v", s)
	}
}

func TestMergeConservation(t *testing.T) {
	primary := []catalog.Pick{
		pick("p1", "CAB", catalog.PhaseP, t0),
		pick("p2", "GRN", catalog.PhaseP, t0.Add(2*time.Second)),
	}
	secondary := []catalog.Pick{
		pick("s1", "CAB", catalog.PhaseP, t0.Add(400*time.Millisecond)),
		pick("s2", "BUR", catalog.PhaseP, t0.Add(time.Second)),
		pick("s3", "GRN", catalog.PhaseP, t0.Add(10*time.Second)),
	}
	res := Merge(primary, secondary, Options{})
	if got, max := len(res.Picks), len(primary)+len(secondary); got > max {
		t.Fatalf("merge created picks: %d > %d", got, max)
	}
	if len(res.Picks) != 4 {
		t.Fatalf("expected 4 canonical picks, got %+v", res.Picks)
	}
}

func TestMergeWithinSourceDedupe(t *testing.T) {
	// The monthly listing sometimes repeats a pick across adjacent blocks.
	secondary := []catalog.Pick{
		pick("s1", "CAB", catalog.PhaseP, t0),
		pick("s2", "CAB", catalog.PhaseP, t0.Add(200*time.Millisecond)),
	}
	res := Merge(nil, secondary, Options{})
	if len(res.Picks) != 1 {
		t.Fatalf("within-source duplicates must collapse, got %+v", res.Picks)
	}
	if res.Picks[0].ID != "s1" {
		t.Fatalf("first record in stable order must win, got %s", res.Picks[0].ID)
	}
	if len(res.Picks[0].Provenance) != 2 {
		t.Fatalf("loser provenance must be inherited: %+v", res.Picks[0].Provenance)
	}
	if len(res.Suppressions) != 1 || res.Suppressions[0].SecondaryID != "s2" {
		t.Fatalf("dedupe must report the loser: %+v", res.Suppressions)
	}
}

func TestMergePrimaryDedupeReported(t *testing.T) {
	// Near-duplicate analyst picks collapse the same way monthly ones do,
	// and the loser shows up in the suppression report.
	primary := []catalog.Pick{
		pick("p1", "CAB", catalog.PhaseP, t0),
		pick("p2", "CAB", catalog.PhaseP, t0.Add(200*time.Millisecond)),
	}
	res := Merge(primary, nil, Options{})
	if len(res.Picks) != 1 {
		t.Fatalf("within-source duplicates must collapse, got %+v", res.Picks)
	}
	if res.Picks[0].ID != "p1" {
		t.Fatalf("first record in stable order must win, got %s", res.Picks[0].ID)
	}
	if len(res.Picks[0].Provenance) != 2 {
		t.Fatalf("loser provenance must be inherited: %+v", res.Picks[0].Provenance)
	}
	if len(res.Suppressions) != 1 {
		t.Fatalf("dedupe must report the loser: %+v", res.Suppressions)
	}
	s := res.Suppressions[0]
	if s.SecondaryID != "p2" || s.AbsorbedBy != "p1" {
		t.Fatalf("unexpected suppression %+v", s)
	}
}

func TestMergeOutputOrderDeterministic(t *testing.T) {
	primary := []catalog.Pick{
		pick("p2", "GRN", catalog.PhaseP, t0.Add(5*time.Second)),
		pick("p1", "CAB", catalog.PhaseP, t0),
	}
	secondary := []catalog.Pick{pick("s1", "BUR", catalog.PhaseP, t0.Add(2*time.Second))}
	res := Merge(primary, secondary, Options{})
	var ids []string
	for _, p := range res.Picks {
		ids = append(ids, p.ID)
	}
	want := []string{"p1", "s1", "p2"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order %v, want %v", ids, want)
		}
	}
}
