package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	return map[string]Store{
		"memory": NewMemory(),
		"fs":     fsStore,
	}
}

func TestPutGetList(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			info, err := s.Put(ctx, "runs/run-1/picks.csv", strings.NewReader("id,station\n"), "text/csv")
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Key != "runs/run-1/picks.csv" || info.Size != 11 {
				t.Fatalf("info %+v", info)
			}

			_, rc, err := s.Get(ctx, "runs/run-1/picks.csv")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != "id,station\n" {
				t.Fatalf("content %q", data)
			}

			if _, err := s.Put(ctx, "runs/run-2/events.csv", strings.NewReader("x"), "text/csv"); err != nil {
				t.Fatalf("put: %v", err)
			}
			infos, err := s.List(ctx, "runs/run-1/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(infos) != 1 || infos[0].Key != "runs/run-1/picks.csv" {
				t.Fatalf("list %+v", infos)
			}
		})
	}
}

func TestPutRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Put(ctx, "runs/run-1/a.csv", strings.NewReader("x"), ""); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := s.Put(ctx, "runs/run-1/a.csv", strings.NewReader("y"), ""); err == nil {
				t.Fatal("artifacts are immutable; second put must fail")
			}
		})
	}
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Get(ctx, "runs/none/a.csv"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestFilesystemRejectsEscapingKeys(t *testing.T) {
	s, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../escape", "/abs/path", "."} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), ""); err == nil {
			t.Errorf("key %q must be rejected", key)
		}
	}
}

func TestArchiveRun(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"picks.csv":        "id\n",
		"run_summary.json": "{}\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o750); err != nil {
		t.Fatal(err)
	}

	s := NewMemory()
	infos, err := ArchiveRun(context.Background(), s, "run-1", dir)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected 2 artifacts, got %+v", infos)
	}
	if infos[0].Key != "runs/run-1/picks.csv" || infos[0].ContentType != "text/csv" {
		t.Fatalf("unexpected artifact %+v", infos[0])
	}
	if infos[1].ContentType != "application/json" {
		t.Fatalf("unexpected artifact %+v", infos[1])
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: DriverMemory})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("memory: %v %v", s, err)
	}
	s, err = Open(ctx, Config{Driver: DriverFilesystem, Root: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("fs: %v %v", s, err)
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatal("unknown driver must fail")
	}
}
