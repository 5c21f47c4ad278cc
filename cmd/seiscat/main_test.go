package main

import (
	"context"
	"path/filepath"
	"testing"

	"seiscat/internal/config"
)

func storeConfig(driver, dsn string) config.Store {
	return config.Store{Driver: driver, DSN: dsn}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "runs", "show"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not wired: %v", name, err)
		}
	}
}

func TestBuildLogger(t *testing.T) {
	for _, tc := range []struct {
		level, format string
		ok            bool
	}{
		{"info", "console", true},
		{"debug", "json", true},
		{"verbose", "console", false},
	} {
		log, err := buildLogger(tc.level, tc.format)
		if tc.ok && (err != nil || log == nil) {
			t.Errorf("buildLogger(%s, %s): %v", tc.level, tc.format, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("buildLogger(%s, %s): expected error", tc.level, tc.format)
		}
	}
}

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()

	st, err := openStore(ctx, storeConfig("none", ""))
	if err != nil || st != nil {
		t.Fatalf("none driver should yield no store: %v %v", st, err)
	}

	path := filepath.Join(t.TempDir(), "snap.db")
	st, err = openStore(ctx, storeConfig("sqlite", path))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	st.Close()

	if _, err := openStore(ctx, storeConfig("tape", "")); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
