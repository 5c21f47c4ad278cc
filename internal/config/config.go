// Package config defines the typed run configuration and its loading rules.
// Everything the tuning cycle touches lives here: input file sets, all
// association tolerances, the era window, the preferred hypocenter source,
// and the output, store, blob, and observability settings. Precedence is
// flags over environment over config file over defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, e.g. SEISCAT_OUTPUT_DIR.
const EnvPrefix = "SEISCAT"

// Inputs names the legacy source files for one run. Pick and hypocenter
// entries are file lists; the waveform index is a single CSV.
type Inputs struct {
	MonthlyPHA    []string `mapstructure:"monthly_pha"`
	IndividualPHA []string `mapstructure:"individual_pha"`
	Hypo71Summary []string `mapstructure:"hypo71_summary"`
	AltSummary    []string `mapstructure:"alt_summary"`
	WaveformIndex string   `mapstructure:"waveform_index"`
	// SpecOverlay optionally points at a YAML file with per-era column
	// offset overrides for the fixed-column formats.
	SpecOverlay string `mapstructure:"spec_overlay"`
}

// Tolerances holds every association window. Units are in the field names;
// all values must be positive.
type Tolerances struct {
	PickSeconds          float64 `mapstructure:"pick_seconds"`
	HypoTimeSeconds      float64 `mapstructure:"hypo_time_seconds"`
	HypoDistanceKm       float64 `mapstructure:"hypo_distance_km"`
	NearMissFactor       float64 `mapstructure:"near_miss_factor"`
	OriginSeconds        float64 `mapstructure:"origin_seconds"`
	WaveformSlackSeconds float64 `mapstructure:"waveform_slack_seconds"`
	ClusterGapSeconds    float64 `mapstructure:"cluster_gap_seconds"`
}

// Era bounds plausible record times and fixes the two-digit-year pivot.
type Era struct {
	Pivot int `mapstructure:"pivot"`
	// Start and End are YYYY-MM-DD; empty disables the bound.
	Start string `mapstructure:"start"`
	End   string `mapstructure:"end"`
}

// Store selects the catalog snapshot backend.
type Store struct {
	// Driver is none, sqlite, or postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Blob selects the artifact archive backend.
type Blob struct {
	// Driver is none, fs, memory, or s3.
	Driver string `mapstructure:"driver"`
	Root   string `mapstructure:"root"`
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
	// AccessKeyID and SecretAccessKey select static S3 credentials; empty
	// falls back to the default AWS chain.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Run is the complete configuration of one pipeline run.
type Run struct {
	Inputs     Inputs     `mapstructure:"inputs"`
	Tolerances Tolerances `mapstructure:"tolerances"`
	Era        Era        `mapstructure:"era"`
	// Stations is the known station stem table.
	Stations []string `mapstructure:"stations"`
	// PreferredSource wins attribute selection on a hypocenter merge.
	PreferredSource string `mapstructure:"preferred_source"`
	OutputDir       string `mapstructure:"output_dir"`
	Store           Store  `mapstructure:"store"`
	Blob            Blob   `mapstructure:"blob"`
	// MetricsListen enables the Prometheus endpoint when non-empty.
	MetricsListen string `mapstructure:"metrics_listen"`
	// LogLevel is debug, info, warn, or error; LogFormat is console or json.
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// SetDefaults installs every default on the viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tolerances.pick_seconds", 0.5)
	v.SetDefault("tolerances.hypo_time_seconds", 5.0)
	v.SetDefault("tolerances.hypo_distance_km", 15.0)
	v.SetDefault("tolerances.near_miss_factor", 3.0)
	v.SetDefault("tolerances.origin_seconds", 10.0)
	v.SetDefault("tolerances.waveform_slack_seconds", 1.0)
	v.SetDefault("tolerances.cluster_gap_seconds", 30.0)
	v.SetDefault("era.pivot", 80)
	v.SetDefault("preferred_source", "hypo71_sum")
	v.SetDefault("output_dir", "out")
	v.SetDefault("store.driver", "none")
	v.SetDefault("blob.driver", "none")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads the run configuration from the given file (optional), the
// environment, and the defaults, and validates the result.
func Load(v *viper.Viper, path string) (Run, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Run{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var run Run
	if err := v.Unmarshal(&run); err != nil {
		return Run{}, fmt.Errorf("decode config: %w", err)
	}
	if err := run.Validate(); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Validate rejects configurations the pipeline cannot run with. Missing
// input files are caught later, when the stage opens them; this only checks
// internal consistency.
func (r Run) Validate() error {
	if len(r.Inputs.MonthlyPHA) == 0 && len(r.Inputs.IndividualPHA) == 0 &&
		len(r.Inputs.Hypo71Summary) == 0 && len(r.Inputs.AltSummary) == 0 &&
		r.Inputs.WaveformIndex == "" {
		return fmt.Errorf("config: no inputs declared")
	}
	for name, v := range map[string]float64{
		"tolerances.pick_seconds":           r.Tolerances.PickSeconds,
		"tolerances.hypo_time_seconds":      r.Tolerances.HypoTimeSeconds,
		"tolerances.hypo_distance_km":       r.Tolerances.HypoDistanceKm,
		"tolerances.near_miss_factor":       r.Tolerances.NearMissFactor,
		"tolerances.origin_seconds":         r.Tolerances.OriginSeconds,
		"tolerances.waveform_slack_seconds": r.Tolerances.WaveformSlackSeconds,
		"tolerances.cluster_gap_seconds":    r.Tolerances.ClusterGapSeconds,
	} {
		if v <= 0 {
			return fmt.Errorf("config: %s must be positive, got %v", name, v)
		}
	}
	if r.Era.Pivot < 0 || r.Era.Pivot > 99 {
		return fmt.Errorf("config: era.pivot must be a two-digit year, got %d", r.Era.Pivot)
	}
	if _, err := r.EraWindow(); err != nil {
		return err
	}
	switch r.PreferredSource {
	case "hypo71_sum", "pinaall_dat":
	default:
		return fmt.Errorf("config: unknown preferred_source %q", r.PreferredSource)
	}
	switch r.Store.Driver {
	case "none", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown store.driver %q", r.Store.Driver)
	}
	if r.Store.Driver != "none" && r.Store.DSN == "" {
		return fmt.Errorf("config: store.driver %s requires store.dsn", r.Store.Driver)
	}
	switch r.Blob.Driver {
	case "none", "memory":
	case "fs":
		if r.Blob.Root == "" {
			return fmt.Errorf("config: blob.driver fs requires blob.root")
		}
	case "s3":
		if r.Blob.Bucket == "" {
			return fmt.Errorf("config: blob.driver s3 requires blob.bucket")
		}
	default:
		return fmt.Errorf("config: unknown blob.driver %q", r.Blob.Driver)
	}
	switch r.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", r.LogLevel)
	}
	switch r.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: unknown log_format %q", r.LogFormat)
	}
	return nil
}

// Window is the configured era bound as concrete times.
type Window struct {
	Start time.Time
	End   time.Time
}

// EraWindow parses the era bounds. Zero times mean unbounded.
func (r Run) EraWindow() (Window, error) {
	var w Window
	var err error
	if r.Era.Start != "" {
		if w.Start, err = time.Parse("2006-01-02", r.Era.Start); err != nil {
			return Window{}, fmt.Errorf("config: era.start: %w", err)
		}
	}
	if r.Era.End != "" {
		if w.End, err = time.Parse("2006-01-02", r.Era.End); err != nil {
			return Window{}, fmt.Errorf("config: era.end: %w", err)
		}
	}
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return Window{}, fmt.Errorf("config: era window ends before it starts")
	}
	return w, nil
}

// Echo renders the tuning-relevant settings for the run summary.
func (r Run) Echo() map[string]any {
	return map[string]any{
		"pick_tolerance_seconds":   r.Tolerances.PickSeconds,
		"hypo_time_seconds":        r.Tolerances.HypoTimeSeconds,
		"hypo_distance_km":         r.Tolerances.HypoDistanceKm,
		"near_miss_factor":         r.Tolerances.NearMissFactor,
		"origin_tolerance_seconds": r.Tolerances.OriginSeconds,
		"waveform_slack_seconds":   r.Tolerances.WaveformSlackSeconds,
		"cluster_gap_seconds":      r.Tolerances.ClusterGapSeconds,
		"era_pivot":                r.Era.Pivot,
		"era_start":                r.Era.Start,
		"era_end":                  r.Era.End,
		"preferred_source":         r.PreferredSource,
	}
}
