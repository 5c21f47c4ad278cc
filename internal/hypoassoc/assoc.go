// Package hypoassoc joins the two independently maintained hypocenter
// catalogs into one unified origin set. Two origins describe the same event
// when they agree jointly in time and epicentral distance; pairing is greedy
// nearest-first in time, attribute selection follows the configured source
// priority.
package hypoassoc

import (
	"sort"
	"time"

	"seiscat/internal/assoc"
	"seiscat/pkg/catalog"
)

// Defaults for the joint tolerance test.
const (
	DefaultTimeTolerance   = 5 * time.Second
	DefaultDistToleranceKm = 15.0
	// DefaultNearMissFactor widens both tolerances for the comparison
	// diagnostic that supports tuning.
	DefaultNearMissFactor = 3.0
)

// Options configures one association run.
type Options struct {
	TimeTolerance   time.Duration
	DistToleranceKm float64
	NearMissFactor  float64
	// Preferred is the source whose attributes win on a merge; zero value
	// selects the classic summary catalog.
	Preferred catalog.SourceKind
}

func (o Options) timeTol() time.Duration {
	if o.TimeTolerance == 0 {
		return DefaultTimeTolerance
	}
	return o.TimeTolerance
}

func (o Options) distTol() float64 {
	if o.DistToleranceKm == 0 {
		return DefaultDistToleranceKm
	}
	return o.DistToleranceKm
}

func (o Options) nearMissFactor() float64 {
	if o.NearMissFactor == 0 {
		return DefaultNearMissFactor
	}
	return o.NearMissFactor
}

func (o Options) preferred() catalog.SourceKind {
	if o.Preferred == "" {
		return catalog.SourceHypo71Summary
	}
	return o.Preferred
}

// Merge records one committed origin pair for the merge diagnostic.
type Merge struct {
	OriginID     string
	LeftID       string
	RightID      string
	DeltaSeconds float64
	DistanceKm   float64
	// Conflict marks merges where the deterministic tie-break had to decide
	// between equally near candidates; pairing was not settled by nearest
	// time alone.
	Conflict bool
}

// NearMiss records a rejected-but-close pair: inside the widened band but not
// committed, either out of strict tolerance or lost to the greedy pass.
type NearMiss struct {
	LeftID       string
	RightID      string
	DeltaSeconds float64
	DistanceKm   float64
	// WithinStrict marks pairs inside the strict tolerances that still lost.
	WithinStrict bool
}

// Result is the unified origin set plus diagnostics.
type Result struct {
	// Origins holds merged and single-source origins, ordered by time, id.
	Origins    []catalog.Origin
	Merges     []Merge
	NearMisses []NearMiss
}

type pairGeom struct {
	delta float64
	dist  float64
}

// Associate unifies the two origin catalogs. Unmatched origins from either
// side pass through as single-source origins.
func Associate(left, right []catalog.Origin, opts Options) Result {
	timeTol := opts.timeTol().Seconds()
	distTol := opts.distTol()
	wideTime := timeTol * opts.nearMissFactor()
	wideDist := distTol * opts.nearMissFactor()

	geom := make(map[[2]int]pairGeom)
	measure := func(i, j int) pairGeom {
		key := [2]int{i, j}
		if g, ok := geom[key]; ok {
			return g
		}
		d := left[i].Time.Sub(right[j].Time).Seconds()
		if d < 0 {
			d = -d
		}
		g := pairGeom{
			delta: d,
			dist:  assoc.EpicentralKm(left[i].Latitude, left[i].Longitude, right[j].Latitude, right[j].Longitude),
		}
		geom[key] = g
		return g
	}

	pairs := assoc.Candidates(len(left), len(right), func(i, j int) (float64, bool) {
		g := measure(i, j)
		if g.delta > timeTol || g.dist > distTol {
			return 0, false
		}
		return g.delta, true
	})
	matches := assoc.Match(pairs)

	var res Result
	usedLeft, usedRight := make(map[int]bool), make(map[int]bool)
	committed := make(map[[2]int]bool)
	for _, m := range matches {
		g := measure(m.Left, m.Right)
		merged := mergeOrigins(left[m.Left], right[m.Right], opts.preferred())
		res.Origins = append(res.Origins, merged)
		res.Merges = append(res.Merges, Merge{
			OriginID:     merged.ID,
			LeftID:       left[m.Left].ID,
			RightID:      right[m.Right].ID,
			DeltaSeconds: g.delta,
			DistanceKm:   g.dist,
			Conflict:     m.Ambiguous,
		})
		usedLeft[m.Left] = true
		usedRight[m.Right] = true
		committed[[2]int{m.Left, m.Right}] = true
	}
	for i, o := range left {
		if !usedLeft[i] {
			res.Origins = append(res.Origins, o)
		}
	}
	for j, o := range right {
		if !usedRight[j] {
			res.Origins = append(res.Origins, o)
		}
	}
	sort.SliceStable(res.Origins, func(i, j int) bool {
		a, b := res.Origins[i], res.Origins[j]
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		return a.ID < b.ID
	})
	sort.Slice(res.Merges, func(i, j int) bool { return res.Merges[i].LeftID < res.Merges[j].LeftID })

	for i := range left {
		for j := range right {
			if committed[[2]int{i, j}] {
				continue
			}
			g := measure(i, j)
			if g.delta > wideTime || g.dist > wideDist {
				continue
			}
			res.NearMisses = append(res.NearMisses, NearMiss{
				LeftID:       left[i].ID,
				RightID:      right[j].ID,
				DeltaSeconds: g.delta,
				DistanceKm:   g.dist,
				WithinStrict: g.delta <= timeTol && g.dist <= distTol,
			})
		}
	}
	sort.Slice(res.NearMisses, func(i, j int) bool {
		a, b := res.NearMisses[i], res.NearMisses[j]
		if a.LeftID != b.LeftID {
			return a.LeftID < b.LeftID
		}
		return a.RightID < b.RightID
	})
	return res
}

// mergeOrigins builds the unified origin. Attributes come from the preferred
// source; the other side survives in the provenance set. When neither side
// carries the preferred kind the left side wins, which keeps the outcome
// fixed by priority rather than by input order across reruns.
func mergeOrigins(a, b catalog.Origin, preferred catalog.SourceKind) catalog.Origin {
	win, lose := a, b
	if b.PreferredSource == preferred && a.PreferredSource != preferred {
		win, lose = b, a
	}
	merged := win
	merged.Provenance = append(append([]catalog.SourceRef{}, win.Provenance...), lose.Provenance...)
	merged.PreferredSource = win.PreferredSource
	// Fill attributes the preferred source left empty.
	if merged.Magnitude == nil {
		merged.Magnitude = lose.Magnitude
	}
	if merged.RMS == nil {
		merged.RMS = lose.RMS
	}
	if merged.StationCount == nil {
		merged.StationCount = lose.StationCount
	}
	return merged
}
