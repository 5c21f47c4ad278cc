// Package pipeline orchestrates one catalog reconstruction run: parse every
// configured legacy source, merge picks, associate hypocenters, cluster
// waveforms, unify into events, and write the report tables. Stages are pure
// functions of their inputs and the configuration, so a rerun over the same
// inputs reproduces every output byte for byte (run_summary.json excepted,
// which carries the run id and timings).
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"seiscat/internal/config"
	"seiscat/internal/hypo71"
	"seiscat/internal/hypoassoc"
	"seiscat/internal/metrics"
	"seiscat/internal/phase"
	"seiscat/internal/pickmerge"
	"seiscat/internal/recparse"
	"seiscat/internal/report"
	"seiscat/internal/unify"
	"seiscat/internal/wfassoc"
	"seiscat/pkg/catalog"
)

// Stage names used in timings, logs, and metrics labels.
const (
	StageParse   = "parse"
	StagePickMrg = "pick_merge"
	StageHypoAsc = "hypo_assoc"
	StageWaveAsc = "waveform_assoc"
	StageUnify   = "unify"
	StageReport  = "report"
)

// Result is everything one run produced: the three catalog tables, the
// waveform records that were read, and the run summary. Diagnostics are
// written to the output directory and summarized here by count.
type Result struct {
	RunID     string
	Picks     []catalog.Pick
	Origins   []catalog.Origin
	Events    []catalog.Event
	Waveforms []catalog.WaveformRecord
	Summary   report.Summary
	// OutputDir is where the report tables landed.
	OutputDir string
}

// Run executes the full pipeline for one configuration. It fails only on
// structural problems: a missing input file, an unreadable waveform index, a
// broken overlay file, or an output directory that cannot be written.
// Unparseable lines and unmatched entities are diagnostics, never errors.
func Run(ctx context.Context, runID string, cfg config.Run, log *zap.Logger, m *metrics.Metrics) (Result, error) {
	res := Result{RunID: runID, OutputDir: cfg.OutputDir}
	res.Summary = report.Summary{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Config:    cfg.Echo(),
		EventsBy:  make(map[string]int),
	}

	window, err := cfg.EraWindow()
	if err != nil {
		return res, err
	}
	var overlays []recparse.Overlay
	if cfg.Inputs.SpecOverlay != "" {
		overlays, err = recparse.LoadOverlays(cfg.Inputs.SpecOverlay)
		if err != nil {
			return res, fmt.Errorf("pipeline: %w", err)
		}
		log.Info("loaded spec overlays",
			zap.String("file", cfg.Inputs.SpecOverlay),
			zap.Int("overlays", len(overlays)))
	}

	phaseOpts := phase.Options{
		Stations: phase.NewStationTable(cfg.Stations...),
		Overlays: overlays,
		EraPivot: cfg.Era.Pivot,
		EraStart: window.Start,
		EraEnd:   window.End,
	}
	hypoOpts := hypo71.Options{
		Overlays: overlays,
		EraPivot: cfg.Era.Pivot,
		EraStart: window.Start,
		EraEnd:   window.End,
	}

	// Stage 1: parse every configured source file.
	start := time.Now()
	parsed, err := parseAll(ctx, cfg.Inputs, phaseOpts, hypoOpts, log, m, &res.Summary)
	if err != nil {
		return res, err
	}
	res.Waveforms = parsed.waves
	res.Summary.Timings = append(res.Summary.Timings, timing(StageParse, start))

	// Stage 2: merge primary and secondary picks.
	start = time.Now()
	merged := pickmerge.Merge(parsed.primary, parsed.secondary, pickmerge.Options{
		Tolerance: seconds(cfg.Tolerances.PickSeconds),
	})
	res.Picks = merged.Picks
	m.ObserveStage(StagePickMrg, len(merged.Picks), len(merged.Suppressions), time.Since(start))
	log.Info("merged picks",
		zap.Int("primary", len(parsed.primary)),
		zap.Int("secondary", len(parsed.secondary)),
		zap.Int("picks", len(merged.Picks)),
		zap.Int("suppressed", len(merged.Suppressions)))
	res.Summary.Timings = append(res.Summary.Timings, timing(StagePickMrg, start))

	// Stage 3: associate the two hypocenter catalogs.
	start = time.Now()
	assoc := hypoassoc.Associate(parsed.summary, parsed.alt, hypoassoc.Options{
		TimeTolerance:   seconds(cfg.Tolerances.HypoTimeSeconds),
		DistToleranceKm: cfg.Tolerances.HypoDistanceKm,
		NearMissFactor:  cfg.Tolerances.NearMissFactor,
		Preferred:       catalog.SourceKind(cfg.PreferredSource),
	})
	res.Origins = assoc.Origins
	m.ObserveStage(StageHypoAsc, len(assoc.Merges), len(assoc.NearMisses), time.Since(start))
	log.Info("associated hypocenters",
		zap.Int("origins", len(assoc.Origins)),
		zap.Int("merges", len(assoc.Merges)),
		zap.Int("near_misses", len(assoc.NearMisses)))
	res.Summary.Timings = append(res.Summary.Timings, timing(StageHypoAsc, start))

	// Stage 4: cluster picks against waveform intervals.
	start = time.Now()
	clustered := wfassoc.Associate(res.Picks, res.Waveforms, wfassoc.Options{
		Slack:  seconds(cfg.Tolerances.WaveformSlackSeconds),
		MaxGap: seconds(cfg.Tolerances.ClusterGapSeconds),
	})
	m.ObserveStage(StageWaveAsc, len(clustered.Clusters), len(clustered.Unmatched), time.Since(start))
	log.Info("clustered waveforms",
		zap.Int("clusters", len(clustered.Clusters)),
		zap.Int("pick_only", len(clustered.PickOnly)),
		zap.Int("waveform_only", len(clustered.WaveformOnly)),
		zap.Int("unmatched_picks", len(clustered.Unmatched)))
	res.Summary.Timings = append(res.Summary.Timings, timing(StageWaveAsc, start))

	// Stage 5: unify clusters and origins into the event catalog.
	start = time.Now()
	waveformOnly := waveformRecords(clustered.WaveformOnly, res.Waveforms)
	unified := unify.Unify(clustered.Clusters, clustered.PickOnly, res.Origins, waveformOnly, unify.Options{
		OriginTolerance: seconds(cfg.Tolerances.OriginSeconds),
	})
	res.Events = unified.Events
	if err := unify.Validate(res.Events, res.Picks, res.Origins, res.Waveforms); err != nil {
		return res, fmt.Errorf("pipeline: catalog validation: %w", err)
	}
	m.ObserveStage(StageUnify, len(unified.Events), len(unified.Unmatched), time.Since(start))
	m.SetCatalogSize(len(res.Picks), len(res.Origins), len(res.Events))
	log.Info("unified events",
		zap.Int("events", len(unified.Events)),
		zap.Int("unmatched_origins", len(unified.Unmatched)))
	res.Summary.Timings = append(res.Summary.Timings, timing(StageUnify, start))

	// Stage 6: write the report tables.
	start = time.Now()
	res.Summary.Picks = len(res.Picks)
	res.Summary.Origins = len(res.Origins)
	res.Summary.Events = len(res.Events)
	for _, e := range res.Events {
		res.Summary.EventsBy[string(e.Classification)]++
	}
	res.Summary.Suppressed = len(merged.Suppressions)
	res.Summary.Unmatched = len(clustered.Unmatched)
	res.Summary.OrphanedOrg = len(unified.Unmatched)
	if err := writeReports(cfg.OutputDir, res, parsed, merged, assoc, clustered, unified); err != nil {
		return res, err
	}
	res.Summary.Timings = append(res.Summary.Timings, timing(StageReport, start))
	if err := writeSummaryFile(cfg.OutputDir, res.Summary); err != nil {
		return res, err
	}
	log.Info("run complete",
		zap.String("run_id", runID),
		zap.String("output_dir", cfg.OutputDir),
		zap.Int("events", len(res.Events)))
	return res, nil
}

// parseResult accumulates every parse stage output across input files.
type parseResult struct {
	primary   []catalog.Pick
	secondary []catalog.Pick
	summary   []catalog.Origin
	alt       []catalog.Origin
	waves     []catalog.WaveformRecord
	failed    []recparse.Result
	unknown   map[string]int
}

func parseAll(ctx context.Context, in config.Inputs, phaseOpts phase.Options, hypoOpts hypo71.Options, log *zap.Logger, m *metrics.Metrics, sum *report.Summary) (parseResult, error) {
	pr := parseResult{unknown: make(map[string]int)}

	forFile := func(file, kind string, parse func(f *os.File) (recparse.Counts, error)) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("pipeline: open %s input: %w", kind, err)
		}
		defer f.Close()
		counts, err := parse(f)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		sum.AddFile(file, kind, counts)
		m.ObserveParse(kind, counts)
		log.Debug("parsed file",
			zap.String("file", file),
			zap.String("kind", kind),
			zap.Int("lines", counts.Lines),
			zap.Int("ok", counts.OK),
			zap.Int("recovered", counts.Recovered),
			zap.Int("failed", counts.Failed))
		return nil
	}

	for _, file := range in.IndividualPHA {
		err := forFile(file, string(catalog.SourceIndividualPHA), func(f *os.File) (recparse.Counts, error) {
			out, err := phase.ParseIndividual(f, file, phaseOpts)
			pr.addPhase(out, &pr.primary)
			return out.Counts, err
		})
		if err != nil {
			return pr, err
		}
	}
	for _, file := range in.MonthlyPHA {
		err := forFile(file, string(catalog.SourceMonthlyPHA), func(f *os.File) (recparse.Counts, error) {
			out, err := phase.ParseMonthly(f, file, phaseOpts)
			pr.addPhase(out, &pr.secondary)
			return out.Counts, err
		})
		if err != nil {
			return pr, err
		}
	}
	for _, file := range in.Hypo71Summary {
		err := forFile(file, string(catalog.SourceHypo71Summary), func(f *os.File) (recparse.Counts, error) {
			out, err := hypo71.ParseSummary(f, file, hypoOpts)
			pr.addHypo(out, &pr.summary)
			return out.Counts, err
		})
		if err != nil {
			return pr, err
		}
	}
	for _, file := range in.AltSummary {
		err := forFile(file, string(catalog.SourceAltSummary), func(f *os.File) (recparse.Counts, error) {
			out, err := hypo71.ParseAlt(f, file, hypoOpts)
			pr.addHypo(out, &pr.alt)
			return out.Counts, err
		})
		if err != nil {
			return pr, err
		}
	}
	if in.WaveformIndex != "" {
		f, err := os.Open(in.WaveformIndex)
		if err != nil {
			return pr, fmt.Errorf("pipeline: open waveform index: %w", err)
		}
		defer f.Close()
		pr.waves, err = wfassoc.ReadIndex(f, in.WaveformIndex)
		if err != nil {
			return pr, fmt.Errorf("pipeline: %w", err)
		}
		log.Debug("read waveform index",
			zap.String("file", in.WaveformIndex),
			zap.Int("records", len(pr.waves)))
	}
	return pr, nil
}

func (pr *parseResult) addPhase(out phase.Output, dst *[]catalog.Pick) {
	*dst = append(*dst, out.Picks...)
	pr.failed = append(pr.failed, out.Failed...)
	for stem, n := range out.UnknownStations {
		pr.unknown[stem] += n
	}
}

func (pr *parseResult) addHypo(out hypo71.Output, dst *[]catalog.Origin) {
	*dst = append(*dst, out.Origins...)
	pr.failed = append(pr.failed, out.Failed...)
}

func writeReports(dir string, res Result, parsed parseResult, merged pickmerge.Result, assoc hypoassoc.Result, clustered wfassoc.Result, unified unify.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: create output dir: %w", err)
	}
	report.SortFailed(parsed.failed)
	tables := []struct {
		name  string
		write func(f *os.File) error
	}{
		{"picks.csv", func(f *os.File) error { return report.WritePicks(f, res.Picks) }},
		{"origins.csv", func(f *os.File) error { return report.WriteOrigins(f, res.Origins) }},
		{"events.csv", func(f *os.File) error { return report.WriteEvents(f, res.Events) }},
		{"unparsed_lines.csv", func(f *os.File) error { return report.WriteUnparsed(f, parsed.failed) }},
		{"pick_suppressions.csv", func(f *os.File) error { return report.WriteSuppressions(f, merged.Suppressions) }},
		{"origin_nearmiss.csv", func(f *os.File) error { return report.WriteNearMisses(f, assoc.NearMisses) }},
		{"unmatched_picks.csv", func(f *os.File) error { return report.WriteUnmatchedPicks(f, clustered.Unmatched) }},
		{"unmatched_origins.csv", func(f *os.File) error { return report.WriteUnmatchedOrigins(f, unified.Unmatched) }},
		{"station_qc.csv", func(f *os.File) error { return report.WriteStationQC(f, parsed.unknown) }},
	}
	for _, t := range tables {
		if err := writeFile(filepath.Join(dir, t.name), t.write); err != nil {
			return err
		}
	}
	return nil
}

func writeSummaryFile(dir string, sum report.Summary) error {
	return writeFile(filepath.Join(dir, "run_summary.json"), func(f *os.File) error {
		return report.WriteSummary(f, sum)
	})
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pipeline: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("pipeline: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("pipeline: close %s: %w", path, err)
	}
	return nil
}

// waveformRecords resolves waveform-only ids back to their records.
func waveformRecords(ids []string, waves []catalog.WaveformRecord) []catalog.WaveformRecord {
	byID := make(map[string]catalog.WaveformRecord, len(waves))
	for _, w := range waves {
		byID[w.ID] = w
	}
	out := make([]catalog.WaveformRecord, 0, len(ids))
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			out = append(out, w)
		}
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func timing(stage string, start time.Time) report.StageTiming {
	return report.StageTiming{
		Stage:      stage,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
}
