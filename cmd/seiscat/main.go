// Command seiscat rebuilds a seismic event catalog from legacy pick,
// hypocenter, and waveform-index files. Each invocation of `seiscat run` is
// one complete pipeline run; stored snapshots are inspected with `seiscat
// runs` and `seiscat show`.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"seiscat/internal/blob"
	"seiscat/internal/config"
	"seiscat/internal/metrics"
	"seiscat/internal/pipeline"
	"seiscat/internal/store"
	"seiscat/internal/store/postgres"
	"seiscat/internal/store/sqlite"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "seiscat: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "seiscat",
		Short:         "Rebuild a seismic event catalog from legacy source files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newRunsCmd(), newShowCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one reconstruction run",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			for flag, key := range map[string]string{
				"output-dir":     "output_dir",
				"metrics-listen": "metrics_listen",
				"log-level":      "log_level",
				"log-format":     "log_format",
			} {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the run configuration file")
	cmd.Flags().String("output-dir", "out", "directory for the report tables")
	cmd.Flags().String("metrics-listen", "", "address for the Prometheus endpoint, empty disables it")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "console", "log format (console, json)")
	return cmd
}

func run(parent context.Context, cfg config.Run) error {
	log, err := buildLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsListen != "" {
		srv := serveMetrics(cfg.MetricsListen, m, log)
		defer shutdownMetrics(srv, log)
	}

	runID := uuid.NewString()
	log.Info("starting run", zap.String("run_id", runID))
	res, err := pipeline.Run(ctx, runID, cfg, log, m)
	if err != nil {
		return err
	}

	if err := saveSnapshot(ctx, cfg.Store, res, log); err != nil {
		return err
	}
	if err := archiveOutputs(ctx, cfg.Blob, res, log); err != nil {
		return err
	}
	fmt.Printf("run %s: %d picks, %d origins, %d events -> %s\n",
		runID, len(res.Picks), len(res.Origins), len(res.Events), res.OutputDir)
	return nil
}

func newRunsCmd() *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored run snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), config.Store{Driver: driver, DSN: dsn})
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("runs requires a store, set --store-driver")
			}
			defer st.Close()
			ids, err := st.Runs(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
	addStoreFlags(cmd, &driver, &dsn)
	return cmd
}

func newShowCmd() *cobra.Command {
	var driver, dsn string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print one stored snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), config.Store{Driver: driver, DSN: dsn})
			if err != nil {
				return err
			}
			if st == nil {
				return errors.New("show requires a store, set --store-driver")
			}
			defer st.Close()
			snap, err := st.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	addStoreFlags(cmd, &driver, &dsn)
	return cmd
}

func addStoreFlags(cmd *cobra.Command, driver, dsn *string) {
	cmd.Flags().StringVar(driver, "store-driver", "sqlite", "snapshot store driver (sqlite, postgres)")
	cmd.Flags().StringVar(dsn, "store-dsn", "", "snapshot store DSN or file path")
}

func buildLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		return sqlite.NewStore(cfg.DSN)
	case "postgres":
		return postgres.NewStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func saveSnapshot(ctx context.Context, cfg config.Store, res pipeline.Result, log *zap.Logger) error {
	st, err := openStore(ctx, cfg)
	if err != nil || st == nil {
		return err
	}
	defer st.Close()
	snap := store.Snapshot{
		RunID:     res.RunID,
		Picks:     res.Picks,
		Origins:   res.Origins,
		Events:    res.Events,
		Waveforms: res.Waveforms,
	}
	if err := st.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	log.Info("saved snapshot", zap.String("run_id", res.RunID), zap.String("driver", cfg.Driver))
	return nil
}

func archiveOutputs(ctx context.Context, cfg config.Blob, res pipeline.Result, log *zap.Logger) error {
	if cfg.Driver == "" || cfg.Driver == "none" {
		return nil
	}
	bs, err := blob.Open(ctx, blob.Config{
		Driver:          blob.Driver(cfg.Driver),
		Root:            cfg.Root,
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		Prefix:          cfg.Prefix,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return err
	}
	infos, err := blob.ArchiveRun(ctx, bs, res.RunID, res.OutputDir)
	if err != nil {
		return fmt.Errorf("archive outputs: %w", err)
	}
	log.Info("archived outputs",
		zap.String("driver", cfg.Driver),
		zap.Int("objects", len(infos)))
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
	return srv
}

func shutdownMetrics(srv *http.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("metrics shutdown", zap.Error(err))
	}
}
