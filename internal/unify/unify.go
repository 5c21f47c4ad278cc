// Package unify performs the final join: waveform-linked pick clusters,
// pick-only time clusters, unified origins, and pickless waveform files all
// become catalog events with a classification saying which evidence each one
// carries.
package unify

import (
	"fmt"
	"sort"
	"time"

	"seiscat/internal/assoc"
	"seiscat/internal/wfassoc"
	"seiscat/pkg/catalog"
)

// DefaultOriginTolerance is the window between an origin time and a
// cluster's reference time.
const DefaultOriginTolerance = 10 * time.Second

// Options configures one unification.
type Options struct {
	// OriginTolerance bounds |origin_time - cluster reference|; zero selects
	// DefaultOriginTolerance.
	OriginTolerance time.Duration
}

func (o Options) tolerance() time.Duration {
	if o.OriginTolerance == 0 {
		return DefaultOriginTolerance
	}
	return o.OriginTolerance
}

// UnmatchedOrigin records an origin no cluster claimed.
type UnmatchedOrigin struct {
	OriginID string
	Time     time.Time
	// NearestDeltaSeconds is the smallest distance to any cluster reference,
	// negative when there were no clusters at all.
	NearestDeltaSeconds float64
}

// Result is the final event catalog plus diagnostics.
type Result struct {
	// Events is ordered by reference time, then id.
	Events []catalog.Event
	// Unmatched lists origins that produced HYPOCENTER_ONLY events.
	Unmatched []UnmatchedOrigin
}

// Unify joins clusters and origins by reference time, greedy nearest-first
// with at-most-once consumption, and emits the classified event catalog.
// Every input surfaces in exactly one event; nothing is dropped.
func Unify(clusters, pickOnly []wfassoc.Cluster, origins []catalog.Origin, waveformOnly []catalog.WaveformRecord, opts Options) Result {
	tol := opts.tolerance().Seconds()

	// Waveform-linked and pick-only clusters compete for origins together;
	// a located event need not have made it into the waveform archive.
	all := make([]wfassoc.Cluster, 0, len(clusters)+len(pickOnly))
	all = append(all, clusters...)
	hasWaveform := make([]bool, 0, cap(all))
	for range clusters {
		hasWaveform = append(hasWaveform, true)
	}
	all = append(all, pickOnly...)
	for range pickOnly {
		hasWaveform = append(hasWaveform, false)
	}

	pairs := assoc.Candidates(len(all), len(origins), func(i, j int) (float64, bool) {
		d := all[i].Reference.Sub(origins[j].Time).Seconds()
		if d < 0 {
			d = -d
		}
		if d > tol {
			return 0, false
		}
		return d, true
	})
	matches := assoc.Match(pairs)

	clusterOrigin := make(map[int]int)
	usedOrigin := make(map[int]bool)
	for _, m := range matches {
		clusterOrigin[m.Left] = m.Right
		usedOrigin[m.Right] = true
	}

	var res Result
	for i, c := range all {
		ev := catalog.Event{
			PickRefs:      c.PickIDs,
			WaveformRefs:  c.WaveformIDs,
			ReferenceTime: c.Reference,
		}
		hasOrigin := false
		if j, ok := clusterOrigin[i]; ok {
			ev.OriginRef = origins[j].ID
			hasOrigin = true
			if origins[j].Time.Before(ev.ReferenceTime) {
				ev.ReferenceTime = origins[j].Time
			}
		}
		ev.Classification = catalog.Classify(hasWaveform[i], len(c.PickIDs) > 0, hasOrigin)
		res.Events = append(res.Events, ev)
	}
	for j, o := range origins {
		if usedOrigin[j] {
			continue
		}
		res.Events = append(res.Events, catalog.Event{
			Classification: catalog.ClassHypocenterOnly,
			OriginRef:      o.ID,
			ReferenceTime:  o.Time,
		})
		res.Unmatched = append(res.Unmatched, UnmatchedOrigin{
			OriginID:            o.ID,
			Time:                o.Time,
			NearestDeltaSeconds: nearestClusterDelta(all, o.Time),
		})
	}
	for _, w := range waveformOnly {
		res.Events = append(res.Events, catalog.Event{
			Classification: catalog.ClassWaveformOnly,
			WaveformRefs:   []string{w.ID},
			ReferenceTime:  w.Start,
		})
	}

	sort.SliceStable(res.Events, func(i, j int) bool {
		a, b := res.Events[i], res.Events[j]
		if !a.ReferenceTime.Equal(b.ReferenceTime) {
			return a.ReferenceTime.Before(b.ReferenceTime)
		}
		return eventSortKey(a) < eventSortKey(b)
	})
	assignIDs(res.Events)
	sort.Slice(res.Unmatched, func(i, j int) bool { return res.Unmatched[i].OriginID < res.Unmatched[j].OriginID })
	return res
}

// eventSortKey breaks reference-time ties by the event's first reference id
// so ordering never depends on input order.
func eventSortKey(e catalog.Event) string {
	if len(e.PickRefs) > 0 {
		return "p" + e.PickRefs[0]
	}
	if e.OriginRef != "" {
		return "o" + e.OriginRef
	}
	if len(e.WaveformRefs) > 0 {
		return "w" + e.WaveformRefs[0]
	}
	return ""
}

// assignIDs derives event ids from the reference timestamp; events sharing a
// timestamp get a disambiguating ordinal in sorted order.
func assignIDs(events []catalog.Event) {
	i := 0
	for i < len(events) {
		j := i
		for j < len(events) && events[j].ReferenceTime.Equal(events[i].ReferenceTime) {
			j++
		}
		for k := i; k < j; k++ {
			ordinal := 0
			if j-i > 1 {
				ordinal = k - i + 1
			}
			events[k].ID = catalog.EventID(events[k].ReferenceTime, ordinal)
		}
		i = j
	}
}

func nearestClusterDelta(clusters []wfassoc.Cluster, t time.Time) float64 {
	best := -1.0
	for _, c := range clusters {
		d := c.Reference.Sub(t).Seconds()
		if d < 0 {
			d = -d
		}
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

// Validate checks the assembled catalog for internal consistency: every
// referenced pick, origin, and waveform id must resolve, and no id may be
// referenced by two events.
func Validate(events []catalog.Event, picks []catalog.Pick, origins []catalog.Origin, waves []catalog.WaveformRecord) error {
	pickIDs := make(map[string]bool, len(picks))
	for _, p := range picks {
		pickIDs[p.ID] = true
	}
	originIDs := make(map[string]bool, len(origins))
	for _, o := range origins {
		originIDs[o.ID] = true
	}
	waveIDs := make(map[string]bool, len(waves))
	for _, w := range waves {
		waveIDs[w.ID] = true
	}

	seenPick := make(map[string]string)
	seenOrigin := make(map[string]string)
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
		for _, id := range e.PickRefs {
			if !pickIDs[id] {
				return fmt.Errorf("event %s references unknown pick %s", e.ID, id)
			}
			if prev, dup := seenPick[id]; dup {
				return fmt.Errorf("pick %s claimed by events %s and %s", id, prev, e.ID)
			}
			seenPick[id] = e.ID
		}
		if e.OriginRef != "" {
			if !originIDs[e.OriginRef] {
				return fmt.Errorf("event %s references unknown origin %s", e.ID, e.OriginRef)
			}
			if prev, dup := seenOrigin[e.OriginRef]; dup {
				return fmt.Errorf("origin %s claimed by events %s and %s", e.OriginRef, prev, e.ID)
			}
			seenOrigin[e.OriginRef] = e.ID
		}
		for _, id := range e.WaveformRefs {
			if !waveIDs[id] {
				return fmt.Errorf("event %s references unknown waveform %s", e.ID, id)
			}
		}
	}
	return nil
}
