package assoc

import (
	"math"
	"reflect"
	"testing"
)

func TestMatchNearestFirst(t *testing.T) {
	pairs := []Pair{
		{Left: 0, Right: 0, Delta: 0.4},
		{Left: 0, Right: 1, Delta: 0.1},
		{Left: 1, Right: 0, Delta: 0.2},
		{Left: 1, Right: 1, Delta: 0.3},
	}
	got := Match(pairs)
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Left != 0 || got[0].Right != 1 || got[1].Left != 1 || got[1].Right != 0 {
		t.Fatalf("unexpected matches %+v", got)
	}
	for _, r := range got {
		if r.Ambiguous {
			t.Fatalf("no ambiguity expected: %+v", r)
		}
	}
}

func TestMatchConsumesEachSideOnce(t *testing.T) {
	// One right candidate shared by three lefts: only the nearest wins.
	pairs := []Pair{
		{Left: 0, Right: 0, Delta: 2.0},
		{Left: 1, Right: 0, Delta: 1.0},
		{Left: 2, Right: 0, Delta: 3.0},
	}
	got := Match(pairs)
	if len(got) != 1 || got[0].Left != 1 {
		t.Fatalf("unexpected matches %+v", got)
	}
}

func TestMatchExactTieIsDeterministicAndFlagged(t *testing.T) {
	pairs := []Pair{
		{Left: 1, Right: 0, Delta: 0.5},
		{Left: 0, Right: 0, Delta: 0.5},
	}
	got := Match(pairs)
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if got[0].Left != 0 {
		t.Fatalf("tie must resolve to earliest left order, got %+v", got[0])
	}
	if !got[0].Ambiguous {
		t.Fatalf("order-resolved tie must be flagged ambiguous")
	}
	// Permuting the input must not change the outcome.
	perm := Match([]Pair{pairs[1], pairs[0]})
	if !reflect.DeepEqual(got, perm) {
		t.Fatalf("matcher is order sensitive: %+v vs %+v", got, perm)
	}
}

func TestMatchToleranceMonotonicity(t *testing.T) {
	times := []float64{0, 3, 7, 20, 31}
	ref := []float64{1, 8, 30, 100}
	count := func(tol float64) int {
		pairs := Candidates(len(times), len(ref), func(i, j int) (float64, bool) {
			d := math.Abs(times[i] - ref[j])
			return d, d <= tol
		})
		return len(Match(pairs))
	}
	prev := -1
	for _, tol := range []float64{0, 0.5, 1, 2, 5, 10, 50} {
		n := count(tol)
		if n < prev {
			t.Fatalf("widening tolerance to %v decreased matches: %d < %d", tol, n, prev)
		}
		prev = n
	}
}

func TestCandidatesFiltersByTolerance(t *testing.T) {
	pairs := Candidates(2, 2, func(i, j int) (float64, bool) {
		d := float64(i + j)
		return d, d < 2
	})
	if len(pairs) != 3 {
		t.Fatalf("expected 3 admitted pairs, got %+v", pairs)
	}
}

func TestMatchedSides(t *testing.T) {
	left, right := MatchedSides([]Result{{Pair: Pair{Left: 2, Right: 5}}})
	if !left[2] || !right[5] || left[0] {
		t.Fatalf("unexpected side sets %v %v", left, right)
	}
}

func TestEpicentralKm(t *testing.T) {
	// One degree of latitude is about 111.2 km.
	d := EpicentralKm(15.0, 120.0, 16.0, 120.0)
	if math.Abs(d-111.2) > 1.0 {
		t.Fatalf("unexpected distance %v", d)
	}
	if z := EpicentralKm(15.13, 120.35, 15.13, 120.35); z != 0 {
		t.Fatalf("identical points must be 0, got %v", z)
	}
}
