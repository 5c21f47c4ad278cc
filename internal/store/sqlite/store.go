// Package sqlite persists catalog snapshots to a single SQLite table as JSON
// blobs, one row per run and bucket.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"seiscat/internal/store"
)

// Store is the SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// NewStore opens (or creates) the database at path and ensures the snapshot
// table exists.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "seiscat.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (run_id, bucket)
	)`); err != nil {
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

var buckets = []string{"picks", "origins", "events", "waveforms"}

func marshalBucket(snap store.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case "picks":
		return json.Marshal(snap.Picks)
	case "origins":
		return json.Marshal(snap.Origins)
	case "events":
		return json.Marshal(snap.Events)
	case "waveforms":
		return json.Marshal(snap.Waveforms)
	}
	return nil, fmt.Errorf("unknown bucket %s", bucket)
}

func unmarshalBucket(snap *store.Snapshot, bucket string, payload []byte) error {
	switch bucket {
	case "picks":
		return json.Unmarshal(payload, &snap.Picks)
	case "origins":
		return json.Unmarshal(payload, &snap.Origins)
	case "events":
		return json.Unmarshal(payload, &snap.Events)
	case "waveforms":
		return json.Unmarshal(payload, &snap.Waveforms)
	}
	return fmt.Errorf("unknown bucket %s", bucket)
}

// Save writes every bucket of the snapshot in one transaction.
func (s *Store) Save(ctx context.Context, snap store.Snapshot) (retErr error) {
	if snap.RunID == "" {
		return fmt.Errorf("save snapshot: empty run id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		data, err := marshalBucket(snap, bucket)
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", bucket, err)
			return retErr
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots(run_id,bucket,payload) VALUES(?,?,?)
			 ON CONFLICT(run_id,bucket) DO UPDATE SET payload=excluded.payload`,
			snap.RunID, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// Load reads the snapshot for the run id.
func (s *Store) Load(ctx context.Context, runID string) (store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM snapshots WHERE run_id = ?`, runID)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("select snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snap := store.Snapshot{RunID: runID}
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return store.Snapshot{}, fmt.Errorf("scan: %w", err)
		}
		if err := unmarshalBucket(&snap, bucket, payload); err != nil {
			return store.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
		}
		found = true
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, err
	}
	if !found {
		return store.Snapshot{}, store.ErrNotFound
	}
	return snap, nil
}

// Runs lists stored run ids.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM snapshots ORDER BY run_id`)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
