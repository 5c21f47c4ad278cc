package wfassoc

import (
	"sort"
	"time"

	"seiscat/pkg/catalog"
)

// Defaults for interval containment and file adjacency.
const (
	DefaultSlack  = time.Second
	DefaultMaxGap = 30 * time.Second
)

// Options configures one association run.
type Options struct {
	// Slack widens each waveform interval on both ends before the
	// containment test; zero selects DefaultSlack.
	Slack time.Duration
	// MaxGap is the largest gap between picked waveform files (or between
	// stranded picks) still treated as the same event; zero selects
	// DefaultMaxGap.
	MaxGap time.Duration
}

func (o Options) slack() time.Duration {
	if o.Slack == 0 {
		return DefaultSlack
	}
	return o.Slack
}

func (o Options) maxGap() time.Duration {
	if o.MaxGap == 0 {
		return DefaultMaxGap
	}
	return o.MaxGap
}

// Cluster is one candidate event: the picks that landed together and the
// waveform files hosting them. A pick-only cluster has no waveforms.
type Cluster struct {
	// WaveformIDs and PickIDs are sorted for stable output.
	WaveformIDs []string
	PickIDs     []string
	// Reference is the earliest pick time in the cluster.
	Reference time.Time
}

// UnmatchedPick records a pick no waveform interval contains.
type UnmatchedPick struct {
	PickID  string
	Station string
	Phase   catalog.Phase
	Time    time.Time
}

// Result is the clustering outcome plus diagnostics.
type Result struct {
	// Clusters are waveform-linked pick clusters, ordered by reference time.
	Clusters []Cluster
	// PickOnly are time-clusters of picks no interval contains.
	PickOnly []Cluster
	// WaveformOnly lists waveform ids hosting no picks, sorted.
	WaveformOnly []string
	// Unmatched lists every pick outside all intervals, in pick order.
	Unmatched []UnmatchedPick
}

// Associate bins picks into waveform files by interval containment and
// clusters the result. No pick is dropped: picks outside every interval are
// reported unmatched and still clustered by time among themselves.
func Associate(picks []catalog.Pick, waves []catalog.WaveformRecord, opts Options) Result {
	slack := opts.slack()
	maxGap := opts.maxGap()

	// pickWaves[i] holds the indices of the waveforms containing pick i.
	pickWaves := make([][]int, len(picks))
	hosted := make(map[int]bool)
	for i, p := range picks {
		for w, rec := range waves {
			if rec.Contains(p.Time, slack) {
				pickWaves[i] = append(pickWaves[i], w)
				hosted[w] = true
			}
		}
	}

	// Union-find over picked waveforms: same pick, or adjacency within the
	// gap, joins two files into one event.
	uf := newUnionFind(len(waves))
	for _, ws := range pickWaves {
		for k := 1; k < len(ws); k++ {
			uf.union(ws[0], ws[k])
		}
	}
	hostedIdx := sortedKeys(hosted)
	for a := 0; a < len(hostedIdx); a++ {
		for b := a + 1; b < len(hostedIdx); b++ {
			if intervalGap(waves[hostedIdx[a]], waves[hostedIdx[b]]) <= maxGap {
				uf.union(hostedIdx[a], hostedIdx[b])
			}
		}
	}

	var res Result
	byRoot := make(map[int]*Cluster)
	for i, ws := range pickWaves {
		if len(ws) == 0 {
			res.Unmatched = append(res.Unmatched, UnmatchedPick{
				PickID:  picks[i].ID,
				Station: picks[i].Station,
				Phase:   picks[i].Phase,
				Time:    picks[i].Time,
			})
			continue
		}
		root := uf.find(ws[0])
		c := byRoot[root]
		if c == nil {
			c = &Cluster{}
			byRoot[root] = c
		}
		c.PickIDs = append(c.PickIDs, picks[i].ID)
		if c.Reference.IsZero() || picks[i].Time.Before(c.Reference) {
			c.Reference = picks[i].Time
		}
	}
	for w := range hosted {
		root := uf.find(w)
		if c := byRoot[root]; c != nil {
			c.WaveformIDs = append(c.WaveformIDs, waves[w].ID)
		}
	}
	for _, c := range byRoot {
		sort.Strings(c.WaveformIDs)
		sort.Strings(c.PickIDs)
		res.Clusters = append(res.Clusters, *c)
	}
	sort.Slice(res.Clusters, func(i, j int) bool {
		a, b := res.Clusters[i], res.Clusters[j]
		if !a.Reference.Equal(b.Reference) {
			return a.Reference.Before(b.Reference)
		}
		return a.PickIDs[0] < b.PickIDs[0]
	})

	res.PickOnly = clusterByTime(res.Unmatched, maxGap)

	for w, rec := range waves {
		if !hosted[w] {
			res.WaveformOnly = append(res.WaveformOnly, rec.ID)
		}
	}
	sort.Strings(res.WaveformOnly)
	return res
}

// clusterByTime groups the stranded picks into pick-only clusters: sorted by
// time, a gap larger than maxGap starts a new cluster.
func clusterByTime(unmatched []UnmatchedPick, maxGap time.Duration) []Cluster {
	if len(unmatched) == 0 {
		return nil
	}
	sorted := make([]UnmatchedPick, len(unmatched))
	copy(sorted, unmatched)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Time.Equal(sorted[j].Time) {
			return sorted[i].Time.Before(sorted[j].Time)
		}
		return sorted[i].PickID < sorted[j].PickID
	})

	var clusters []Cluster
	cur := Cluster{PickIDs: []string{sorted[0].PickID}, Reference: sorted[0].Time}
	last := sorted[0].Time
	for _, u := range sorted[1:] {
		if u.Time.Sub(last) > maxGap {
			sort.Strings(cur.PickIDs)
			clusters = append(clusters, cur)
			cur = Cluster{Reference: u.Time}
		}
		cur.PickIDs = append(cur.PickIDs, u.PickID)
		last = u.Time
	}
	sort.Strings(cur.PickIDs)
	clusters = append(clusters, cur)
	return clusters
}

// intervalGap is the separation between two waveform intervals; overlapping
// intervals have zero gap.
func intervalGap(a, b catalog.WaveformRecord) time.Duration {
	if a.Start.After(b.Start) {
		a, b = b, a
	}
	if !b.Start.After(a.End) {
		return 0
	}
	return b.Start.Sub(a.End)
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

type unionFind struct{ parent []int }

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		if ra > rb {
			ra, rb = rb, ra
		}
		u.parent[rb] = ra
	}
}
