// Package postgres provides the Postgres-backed snapshot store, mirroring
// the SQLite store's bucket layout over the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"seiscat/internal/store"
)

const defaultDSN = "postgres://localhost/seiscat?sslmode=disable"

// Store is the Postgres-backed snapshot store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the snapshot table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS snapshots (
		run_id TEXT NOT NULL,
		bucket TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (run_id, bucket)
	)`); err != nil {
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	return &Store{db: db}, nil
}

var buckets = []string{"picks", "origins", "events", "waveforms"}

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
		var data []byte
		switch bucket {
		case "picks":
			data, err = json.Marshal(snap.Picks)
		case "origins":
			data, err = json.Marshal(snap.Origins)
		case "events":
			data, err = json.Marshal(snap.Events)
		case "waveforms":
			data, err = json.Marshal(snap.Waveforms)
		}
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", bucket, err)
			return retErr
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots(run_id,bucket,payload) VALUES($1,$2,$3)
			 ON CONFLICT (run_id,bucket) DO UPDATE SET payload=excluded.payload`,
			snap.RunID, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	return tx.Commit()
}

// Load reads the snapshot for the run id.
func (s *Store) Load(ctx context.Context, runID string) (store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM snapshots WHERE run_id = $1`, runID)
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
		var target any
		switch bucket {
		case "picks":
			target = &snap.Picks
		case "origins":
			target = &snap.Origins
		case "events":
			target = &snap.Events
		case "waveforms":
			target = &snap.Waveforms
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
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
