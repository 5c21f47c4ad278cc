// Package blob archives run artifacts. Every completed pipeline run can
// upload its output tables and diagnostics as immutable objects keyed
// runs/<run_id>/<name>, to the local filesystem, to memory (tests), or to an
// S3-compatible bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Driver identifies a concrete archive backend.
type Driver string

const (
	// DriverFilesystem is the local filesystem backend (default, dev).
	DriverFilesystem Driver = "fs"
	// DriverS3 is the S3 / MinIO compatible backend.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-memory backend used in tests.
	DriverMemory Driver = "memory"
)

// Info describes a stored artifact.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the archive backend interface. Artifacts are immutable: Put
// refuses to overwrite an existing key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotFound is returned when no artifact exists at the requested key.
var ErrNotFound = errors.New("blob: not found")

// Config selects and parameterizes a backend.
type Config struct {
	Driver Driver
	// Root is the directory root for the filesystem backend.
	Root string
	// Bucket, Region, Endpoint, Prefix configure the S3 backend.
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
	// AccessKeyID and SecretAccessKey select static credentials; empty falls
	// back to the default AWS chain.
	AccessKeyID     string
	SecretAccessKey string
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.Root)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.Driver)
	}
}

// RunKey builds the canonical artifact key for one run output.
func RunKey(runID, name string) string {
	return fmt.Sprintf("runs/%s/%s", runID, name)
}

// ArchiveRun uploads every regular file in dir under the run's key prefix
// and returns the stored infos sorted by key.
func ArchiveRun(ctx context.Context, store Store, runID, dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("open artifact %s: %w", e.Name(), err)
		}
		info, err := store.Put(ctx, RunKey(runID, e.Name()), f, contentTypeFor(e.Name()))
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("archive %s: %w", e.Name(), err)
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
