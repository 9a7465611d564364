// Package sqlite provides a single-file SQLite snapshot log.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/hourswatch/internal/hours"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	taken_at       TEXT    NOT NULL,
	hours_pending  INTEGER NOT NULL,
	hours_approved INTEGER NOT NULL
)`

// SnapshotStore appends snapshot rows to a SQLite database.
type SnapshotStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*SnapshotStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers; the poller is the only one.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Close releases the database handle.
func (s *SnapshotStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Append inserts one row. Partial snapshots are rejected before touching the database.
func (s *SnapshotStore) Append(ctx context.Context, snapshot hours.Snapshot) error {
	if !snapshot.Complete() {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, hours.ErrIncompleteMetrics)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (taken_at, hours_pending, hours_approved) VALUES (?, ?, ?)`,
		snapshot.Timestamp.UTC().Format(time.RFC3339Nano),
		*snapshot.HoursPending,
		*snapshot.HoursApproved,
	)
	if err != nil {
		return fmt.Errorf("%w: insert snapshot: %w", hours.ErrStoreWrite, err)
	}
	return nil
}

// ReadAll renders every row, in insertion order, in the JSONL log layout.
func (s *SnapshotStore) ReadAll(ctx context.Context) ([]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT taken_at, hours_pending, hours_approved FROM snapshots ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	for rows.Next() {
		var (
			takenAt           string
			pending, approved int
		)
		if err := rows.Scan(&takenAt, &pending, &approved); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot timestamp %q: %w", takenAt, err)
		}
		record, err := hours.NewSnapshot(ts, hours.Metrics{
			HoursPending:  &pending,
			HoursApproved: &approved,
		}).MarshalRecord()
		if err != nil {
			return nil, err
		}
		buf.Write(record)
		buf.WriteByte('\n')
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return buf.Bytes(), nil
}
