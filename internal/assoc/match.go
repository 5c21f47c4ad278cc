// Package assoc provides the tolerance-windowed greedy bipartite matcher
// shared by the pick merger, the hypocenter associator, and the event
// unifier, plus the epicentral distance helper used for joint time-distance
// tolerance tests.
package assoc

import "sort"

// Pair is one candidate association between the left entity at index Left and
// the right entity at index Right. Delta is the match cost, typically the
// absolute time difference in seconds; smaller is better.
type Pair struct {
	Left  int
	Right int
	Delta float64
}

// Result is a committed match. Ambiguous marks pairs that won only by the
// deterministic order tie-break: at commit time another live candidate shared
// one side with an identical delta.
type Result struct {
	Pair
	Ambiguous bool
}

// Candidates enumerates all pairs admitted by the delta function. delta
// returns the match cost and whether the pair falls inside tolerance; pairs
// outside tolerance are never materialized.
func Candidates(nLeft, nRight int, delta func(i, j int) (float64, bool)) []Pair {
	var out []Pair
	for i := 0; i < nLeft; i++ {
		for j := 0; j < nRight; j++ {
			if d, ok := delta(i, j); ok {
				out = append(out, Pair{Left: i, Right: j, Delta: d})
			}
		}
	}
	return out
}

// Match commits candidate pairs greedily, nearest first, consuming each side
// at most once. Exact delta ties resolve by left index, then right index, so
// repeated runs over the same input commit identical matches. The input slice
// is not modified.
func Match(pairs []Pair) []Result {
	sorted := make([]Pair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Delta != sorted[b].Delta {
			return sorted[a].Delta < sorted[b].Delta
		}
		if sorted[a].Left != sorted[b].Left {
			return sorted[a].Left < sorted[b].Left
		}
		return sorted[a].Right < sorted[b].Right
	})

	usedLeft := make(map[int]bool)
	usedRight := make(map[int]bool)
	var out []Result
	for k, p := range sorted {
		if usedLeft[p.Left] || usedRight[p.Right] {
			continue
		}
		res := Result{Pair: p}
		// A live same-delta rival sharing either side means the order
		// tie-break decided this match.
		for m := k + 1; m < len(sorted) && sorted[m].Delta == p.Delta; m++ {
			rival := sorted[m]
			if usedLeft[rival.Left] || usedRight[rival.Right] {
				continue
			}
			if rival.Left == p.Left || rival.Right == p.Right {
				res.Ambiguous = true
				break
			}
		}
		usedLeft[p.Left] = true
		usedRight[p.Right] = true
		out = append(out, res)
	}
	return out
}

// MatchedSides returns lookup sets of the left and right indices consumed by
// the committed results.
func MatchedSides(results []Result) (left, right map[int]bool) {
	left = make(map[int]bool, len(results))
	right = make(map[int]bool, len(results))
	for _, r := range results {
		left[r.Left] = true
		right[r.Right] = true
	}
	return left, right
}
