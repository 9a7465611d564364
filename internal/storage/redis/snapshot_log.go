// Package redis keeps the snapshot log in a Redis list.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

const defaultKey = "hourswatch:snapshots"

// SnapshotLog appends serialized records to a Redis list with RPUSH.
type SnapshotLog struct {
	client redis.UniversalClient
	key    string
}

// New creates a SnapshotLog on the given client. An empty key selects the default.
func New(client redis.UniversalClient, key string) (*SnapshotLog, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if key == "" {
		key = defaultKey
	}
	return &SnapshotLog{client: client, key: key}, nil
}

// Key returns the list key holding the records.
func (s *SnapshotLog) Key() string {
	return s.key
}

// Append pushes one record onto the tail of the list.
func (s *SnapshotLog) Append(ctx context.Context, snapshot hours.Snapshot) error {
	record, err := snapshot.MarshalRecord()
	if err != nil {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, err)
	}
	if err := s.client.RPush(ctx, s.key, record).Err(); err != nil {
		return fmt.Errorf("%w: redis rpush: %w", hours.ErrStoreWrite, err)
	}
	return nil
}

// ReadAll returns every record, oldest first, newline-terminated.
func (s *SnapshotLog) ReadAll(ctx context.Context) ([]byte, error) {
	records, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	var buf bytes.Buffer
	for _, record := range records {
		buf.WriteString(record)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Ping checks that Redis is reachable.
func (s *SnapshotLog) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
