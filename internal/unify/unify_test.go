package unify

import (
	"testing"
	"time"

	"seiscat/internal/wfassoc"
	"seiscat/pkg/catalog"
)

var t0 = time.Date(1991, 6, 15, 12, 0, 0, 0, time.UTC)

func cluster(ref time.Time, picks []string, waves []string) wfassoc.Cluster {
	return wfassoc.Cluster{PickIDs: picks, WaveformIDs: waves, Reference: ref}
}

func origin(id string, at time.Time) catalog.Origin {
	return catalog.Origin{
		ID:              id,
		Time:            at,
		Latitude:        15.13,
		Longitude:       120.35,
		DepthKm:         5,
		PreferredSource: catalog.SourceHypo71Summary,
	}
}

func TestUnifyFullyMerged(t *testing.T) {
	clusters := []wfassoc.Cluster{cluster(t0, []string{"p1", "p2"}, []string{"w1"})}
	origins := []catalog.Origin{origin("o1", t0.Add(-4*time.Second))}
	res := Unify(clusters, nil, origins, nil, Options{})
	if len(res.Events) != 1 {
		t.Fatalf("expected one event, got %+v", res.Events)
	}
	e := res.Events[0]
	if e.Classification != catalog.ClassFullyMerged {
		t.Fatalf("classification %s", e.Classification)
	}
	if e.OriginRef != "o1" || len(e.PickRefs) != 2 || len(e.WaveformRefs) != 1 {
		t.Fatalf("references wrong: %+v", e)
	}
	// Origin precedes the first pick, so it supplies the reference time.
	if !e.ReferenceTime.Equal(t0.Add(-4 * time.Second)) {
		t.Fatalf("reference time %v", e.ReferenceTime)
	}
	if len(res.Unmatched) != 0 {
		t.Fatalf("no unmatched origins expected: %+v", res.Unmatched)
	}
}

func TestUnifyHypocenterOnlyScenario(t *testing.T) {
	clusters := []wfassoc.Cluster{cluster(t0, []string{"p1"}, []string{"w1"})}
	origins := []catalog.Origin{origin("o_far", t0.Add(time.Hour))}
	res := Unify(clusters, nil, origins, nil, Options{})
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %+v", res.Events)
	}
	var hypoOnly *catalog.Event
	for i := range res.Events {
		if res.Events[i].Classification == catalog.ClassHypocenterOnly {
			hypoOnly = &res.Events[i]
		}
	}
	if hypoOnly == nil || hypoOnly.OriginRef != "o_far" {
		t.Fatalf("no-cluster origin must become HYPOCENTER_ONLY: %+v", res.Events)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0].OriginID != "o_far" {
		t.Fatalf("unmatched-origins diagnostic missing: %+v", res.Unmatched)
	}
	if res.Unmatched[0].NearestDeltaSeconds != 3600 {
		t.Fatalf("nearest delta %v", res.Unmatched[0].NearestDeltaSeconds)
	}
}

func TestUnifyClassifications(t *testing.T) {
	clusters := []wfassoc.Cluster{cluster(t0, []string{"p1"}, []string{"w1"})}
	pickOnly := []wfassoc.Cluster{cluster(t0.Add(10*time.Minute), []string{"p2"}, nil)}
	waveOnly := []catalog.WaveformRecord{{ID: "w_empty", Start: t0.Add(20 * time.Minute), End: t0.Add(21 * time.Minute)}}
	res := Unify(clusters, pickOnly, nil, waveOnly, Options{})
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %+v", res.Events)
	}
	want := []catalog.Classification{
		catalog.ClassWaveformPick,
		catalog.ClassPickOnly,
		catalog.ClassWaveformOnly,
	}
	for i, w := range want {
		if res.Events[i].Classification != w {
			t.Fatalf("event %d classification %s, want %s", i, res.Events[i].Classification, w)
		}
	}
}

func TestUnifyPickOnlyClusterCanTakeOrigin(t *testing.T) {
	pickOnly := []wfassoc.Cluster{cluster(t0, []string{"p1"}, nil)}
	origins := []catalog.Origin{origin("o1", t0.Add(3*time.Second))}
	res := Unify(nil, pickOnly, origins, nil, Options{})
	if len(res.Events) != 1 {
		t.Fatalf("expected one event, got %+v", res.Events)
	}
	// Picks plus origin but no waveform stays PICK_ONLY in the ontology;
	// the origin reference is still recorded.
	if res.Events[0].OriginRef != "o1" {
		t.Fatalf("origin must attach to the pick cluster: %+v", res.Events[0])
	}
}

func TestUnifyNearestFirstAtMostOnce(t *testing.T) {
	clusters := []wfassoc.Cluster{
		cluster(t0, []string{"p1"}, []string{"w1"}),
		cluster(t0.Add(6*time.Second), []string{"p2"}, []string{"w2"}),
	}
	origins := []catalog.Origin{origin("o1", t0.Add(2*time.Second))}
	res := Unify(clusters, nil, origins, nil, Options{})
	var merged, bare int
	for _, e := range res.Events {
		switch e.Classification {
		case catalog.ClassFullyMerged:
			merged++
			if e.PickRefs[0] != "p1" {
				t.Fatalf("origin must bind the nearest cluster: %+v", e)
			}
		case catalog.ClassWaveformPick:
			bare++
		}
	}
	if merged != 1 || bare != 1 {
		t.Fatalf("merged %d bare %d: %+v", merged, bare, res.Events)
	}
}

func TestUnifyDeterministicIDs(t *testing.T) {
	clusters := []wfassoc.Cluster{cluster(t0, []string{"p1"}, []string{"w1"})}
	a := Unify(clusters, nil, nil, nil, Options{})
	b := Unify(clusters, nil, nil, nil, Options{})
	if a.Events[0].ID != b.Events[0].ID {
		t.Fatalf("ids differ across reruns: %s vs %s", a.Events[0].ID, b.Events[0].ID)
	}
	if a.Events[0].ID != catalog.EventID(t0, 0) {
		t.Fatalf("id must derive from the reference time: %s", a.Events[0].ID)
	}
}

func TestUnifySharedTimestampOrdinals(t *testing.T) {
	clusters := []wfassoc.Cluster{cluster(t0, []string{"p1"}, []string{"w1"})}
	origins := []catalog.Origin{origin("o1", t0.Add(time.Hour))}
	waveOnly := []catalog.WaveformRecord{{ID: "w2", Start: t0.Add(time.Hour), End: t0.Add(time.Hour + time.Minute)}}
	res := Unify(clusters, nil, origins, waveOnly, Options{})
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %+v", res.Events)
	}
	// The orphan origin and the empty waveform share a reference time and
	// must get distinct ordinal ids.
	ids := map[string]bool{}
	for _, e := range res.Events {
		if ids[e.ID] {
			t.Fatalf("duplicate event id %s", e.ID)
		}
		ids[e.ID] = true
	}
	if res.Events[1].ID != catalog.EventID(t0.Add(time.Hour), 1) {
		t.Fatalf("expected ordinal id, got %s", res.Events[1].ID)
	}
}

func TestValidate(t *testing.T) {
	picks := []catalog.Pick{{ID: "p1", Station: "CAB", Phase: catalog.PhaseP, Time: t0}}
	origins := []catalog.Origin{origin("o1", t0)}
	waves := []catalog.WaveformRecord{{ID: "w1", Start: t0, End: t0.Add(time.Minute)}}

	good := []catalog.Event{{
		ID:             "ev1",
		Classification: catalog.ClassFullyMerged,
		PickRefs:       []string{"p1"},
		OriginRef:      "o1",
		WaveformRefs:   []string{"w1"},
		ReferenceTime:  t0,
	}}
	if err := Validate(good, picks, origins, waves); err != nil {
		t.Fatalf("valid catalog rejected: %v", err)
	}

	dangling := []catalog.Event{{ID: "ev1", Classification: catalog.ClassPickOnly, PickRefs: []string{"missing"}, ReferenceTime: t0}}
	if err := Validate(dangling, picks, origins, waves); err == nil {
		t.Fatal("dangling pick reference must fail")
	}

	double := []catalog.Event{
		{ID: "ev1", Classification: catalog.ClassPickOnly, PickRefs: []string{"p1"}, ReferenceTime: t0},
		{ID: "ev2", Classification: catalog.ClassPickOnly, PickRefs: []string{"p1"}, ReferenceTime: t0.Add(time.Minute)},
	}
	if err := Validate(double, picks, origins, waves); err == nil {
		t.Fatal("double-claimed pick must fail")
	}
}
