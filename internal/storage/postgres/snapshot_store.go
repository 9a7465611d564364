// Package postgres provides a Postgres-backed snapshot log.
package postgres

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

const defaultTable = "hours_snapshots"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for snapshot rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Ping(context.Context) error
	Close()
}

// SnapshotStore appends snapshot rows and renders them back in log layout.
type SnapshotStore struct {
	pool  pool
	table string
	ids   hours.IDGenerator
}

// New connects to Postgres and ensures the snapshot table exists.
func New(ctx context.Context, cfg Config, ids hours.IDGenerator) (*SnapshotStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table, ids)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string, ids hours.IDGenerator) (*SnapshotStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SnapshotStore{pool: p, table: table, ids: ids}, nil
}

// EnsureSchema creates the snapshot table when missing.
func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id             TEXT PRIMARY KEY,
	taken_at       TIMESTAMPTZ NOT NULL,
	taken_at_ns    BIGINT NOT NULL,
	hours_pending  BIGINT NOT NULL,
	hours_approved BIGINT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create snapshot table: %w", err)
	}
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *SnapshotStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append inserts a snapshot row. Rows are never updated or deleted.
func (s *SnapshotStore) Append(ctx context.Context, snapshot hours.Snapshot) error {
	if !snapshot.Complete() {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, hours.ErrIncompleteMetrics)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	taken_at,
	taken_at_ns,
	hours_pending,
	hours_approved
) VALUES (
	$1,$2,$3,$4,$5
)`, s.table)
	// taken_at_ns keeps the nanoseconds TIMESTAMPTZ truncates.
	args := []any{
		id,
		snapshot.Timestamp.UTC(),
		snapshot.Timestamp.UnixNano(),
		*snapshot.HoursPending,
		*snapshot.HoursApproved,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: insert snapshot: %w", hours.ErrStoreWrite, err)
	}
	return nil
}

// ReadAll returns every row, oldest first, in the newline-delimited record layout.
func (s *SnapshotStore) ReadAll(ctx context.Context) ([]byte, error) {
	query := fmt.Sprintf(`SELECT taken_at_ns, hours_pending, hours_approved FROM %s ORDER BY taken_at_ns, id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var buf bytes.Buffer
	for rows.Next() {
		var (
			takenAt  int64
			pending  int
			approved int
		)
		if err := rows.Scan(&takenAt, &pending, &approved); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		record, err := hours.NewSnapshot(time.Unix(0, takenAt).UTC(), hours.Metrics{
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
