// Package pickmerge collapses the two pick sources into one canonical pick
// set. The analyst per-event picks are authoritative; the monthly listing
// fills in what they miss. A monthly pick close enough to an analyst pick at
// the same station and phase is absorbed into the analyst pick's provenance,
// never emitted twice.
package pickmerge

import (
	"sort"
	"time"

	"seiscat/internal/assoc"
	"seiscat/pkg/catalog"
)

// DefaultTolerance is the absorption window between a primary and a
// secondary pick at the same station and phase.
const DefaultTolerance = 500 * time.Millisecond

// Options configures one merge.
type Options struct {
	// Tolerance is the absorption window; zero selects DefaultTolerance.
	Tolerance time.Duration
}

func (o Options) tolerance() time.Duration {
	if o.Tolerance == 0 {
		return DefaultTolerance
	}
	return o.Tolerance
}

// Suppression records one absorbed pick for the merge report, whether it
// lost a within-source dedupe or was absorbed across sources.
type Suppression struct {
	// SecondaryID is the id of the pick that was absorbed.
	SecondaryID string
	// SecondarySource is the absorbed pick's first provenance ref.
	SecondarySource catalog.SourceRef
	// AbsorbedBy is the id of the canonical pick that kept the record.
	AbsorbedBy string
	// DeltaSeconds is the absolute time difference between the two.
	DeltaSeconds float64
	// Ambiguous marks absorptions where another candidate sat at the same
	// delta and the deterministic tie-break decided.
	Ambiguous bool
}

// Result is the merged pick set plus its diagnostics.
type Result struct {
	// Picks is the canonical pick set, ordered by time, station, phase, id.
	Picks []catalog.Pick
	// Suppressions lists every absorbed pick, in suppression order.
	Suppressions []Suppression
}

type stationPhase struct {
	station string
	phase   catalog.Phase
}

// Merge absorbs secondary picks into primary picks at the same station and
// phase within the tolerance, then emits the unabsorbed remainder as new
// canonical picks. Tie-break is smallest delta, then earliest primary record
// order.
func Merge(primary, secondary []catalog.Pick, opts Options) Result {
	tol := opts.tolerance()

	var res Result
	primary = dedupe(primary, tol, &res.Suppressions)
	secondary = dedupe(secondary, tol, &res.Suppressions)

	groups := make(map[stationPhase][]int)
	for i, p := range secondary {
		key := stationPhase{p.Station, p.Phase}
		groups[key] = append(groups[key], i)
	}
	primaryByKey := make(map[stationPhase][]int)
	for i, p := range primary {
		key := stationPhase{p.Station, p.Phase}
		primaryByKey[key] = append(primaryByKey[key], i)
	}

	absorbed := make(map[int]bool)

	// Deterministic group order: iterate keys sorted, not map order.
	keys := make([]stationPhase, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].station != keys[j].station {
			return keys[i].station < keys[j].station
		}
		return keys[i].phase < keys[j].phase
	})

	for _, key := range keys {
		prim, sec := primaryByKey[key], groups[key]
		if len(prim) == 0 {
			continue
		}
		pairs := assoc.Candidates(len(prim), len(sec), func(i, j int) (float64, bool) {
			d := primary[prim[i]].Time.Sub(secondary[sec[j]].Time)
			if d < 0 {
				d = -d
			}
			if d > tol {
				return 0, false
			}
			return d.Seconds(), true
		})
		for _, m := range assoc.Match(pairs) {
			pi, si := prim[m.Left], sec[m.Right]
			primary[pi].Provenance = append(primary[pi].Provenance, secondary[si].Provenance...)
			absorbed[si] = true
			res.Suppressions = append(res.Suppressions, Suppression{
				SecondaryID:     secondary[si].ID,
				SecondarySource: firstRef(secondary[si]),
				AbsorbedBy:      primary[pi].ID,
				DeltaSeconds:    m.Delta,
				Ambiguous:       m.Ambiguous,
			})
		}
	}

	res.Picks = append(res.Picks, primary...)
	for i, p := range secondary {
		if !absorbed[i] {
			res.Picks = append(res.Picks, p)
		}
	}
	sortPicks(res.Picks)
	sort.Slice(res.Suppressions, func(i, j int) bool {
		return res.Suppressions[i].SecondaryID < res.Suppressions[j].SecondaryID
	})
	return res
}

// dedupe collapses near-duplicate picks inside one source: same station and
// phase within the tolerance. The first pick in stable time order wins and
// inherits the loser's provenance. When report is non-nil the losers are
// recorded as suppressions.
func dedupe(picks []catalog.Pick, tol time.Duration, report *[]Suppression) []catalog.Pick {
	idx := make([]int, len(picks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		pa, pb := picks[idx[a]], picks[idx[b]]
		if pa.Station != pb.Station {
			return pa.Station < pb.Station
		}
		if pa.Phase != pb.Phase {
			return pa.Phase < pb.Phase
		}
		return pa.Time.Before(pb.Time)
	})

	kept := make([]catalog.Pick, 0, len(picks))
	dropped := make(map[int]bool)
	for n, i := range idx {
		if dropped[i] {
			continue
		}
		winner := picks[i]
		for _, j := range idx[n+1:] {
			if dropped[j] {
				continue
			}
			cand := picks[j]
			if cand.Station != winner.Station || cand.Phase != winner.Phase {
				break
			}
			d := cand.Time.Sub(winner.Time)
			if d < 0 {
				d = -d
			}
			if d > tol {
				break
			}
			winner.Provenance = append(winner.Provenance, cand.Provenance...)
			dropped[j] = true
			if report != nil {
				*report = append(*report, Suppression{
					SecondaryID:     cand.ID,
					SecondarySource: firstRef(cand),
					AbsorbedBy:      winner.ID,
					DeltaSeconds:    d.Seconds(),
				})
			}
		}
		kept = append(kept, winner)
	}
	// Restore original record order for the survivors.
	order := make(map[string]int, len(picks))
	for i, p := range picks {
		order[p.ID] = i
	}
	sort.SliceStable(kept, func(a, b int) bool { return order[kept[a].ID] < order[kept[b].ID] })
	return kept
}

func firstRef(p catalog.Pick) catalog.SourceRef {
	if len(p.Provenance) == 0 {
		return catalog.SourceRef{}
	}
	return p.Provenance[0]
}

func sortPicks(picks []catalog.Pick) {
	sort.SliceStable(picks, func(i, j int) bool {
		a, b := picks[i], picks[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		if a.Station != b.Station {
			return a.Station < b.Station
		}
		if a.Phase != b.Phase {
			return a.Phase < b.Phase
		}
		return a.ID < b.ID
	})
}
