package report

import (
	"encoding/json"
	"io"
	"sort"
	"time"

	"seiscat/internal/recparse"
)

// FileCounts pairs one input file with its parse counters.
type FileCounts struct {
	File      string `json:"file"`
	Kind      string `json:"kind"`
	Lines     int    `json:"lines"`
	Blank     int    `json:"blank"`
	Comment   int    `json:"comment"`
	OK        int    `json:"ok"`
	Recovered int    `json:"recovered"`
	Failed    int    `json:"failed"`
}

// StageTiming records one stage's wall-clock duration.
type StageTiming struct {
	Stage      string  `json:"stage"`
	DurationMS float64 `json:"duration_ms"`
}

// Summary is the run_summary.json payload. It is the only output carrying
// run metadata; the primary tables stay free of per-run noise so reruns
// compare byte for byte.
type Summary struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	Config      map[string]any `json:"config"`
	Files       []FileCounts   `json:"files"`
	Timings     []StageTiming  `json:"timings"`
	Picks       int            `json:"picks"`
	Origins     int            `json:"origins"`
	Events      int            `json:"events"`
	EventsBy    map[string]int `json:"events_by_classification"`
	Suppressed  int            `json:"suppressed_picks"`
	Unmatched   int            `json:"unmatched_picks"`
	OrphanedOrg int            `json:"unmatched_origins"`
}

// AddFile appends one file's counters in deterministic order by file name.
func (s *Summary) AddFile(file, kind string, c recparse.Counts) {
	s.Files = append(s.Files, FileCounts{
		File: file, Kind: kind,
		Lines: c.Lines, Blank: c.Blank, Comment: c.Comment,
		OK: c.OK, Recovered: c.Recovered, Failed: c.Failed,
	})
	sort.Slice(s.Files, func(i, j int) bool { return s.Files[i].File < s.Files[j].File })
}

// WriteSummary renders the summary as indented JSON.
func WriteSummary(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
