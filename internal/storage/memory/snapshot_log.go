// Package memory keeps the snapshot log in-memory for development and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

// SnapshotLog stores serialized records in a buffer.
type SnapshotLog struct {
	mu  sync.RWMutex
	buf bytes.Buffer
	n   int
}

// NewSnapshotLog creates a new in-memory snapshot log.
func NewSnapshotLog() *SnapshotLog {
	return &SnapshotLog{}
}

// Append serializes and stores the snapshot.
func (s *SnapshotLog) Append(_ context.Context, snapshot hours.Snapshot) error {
	record, err := snapshot.MarshalRecord()
	if err != nil {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(record)
	s.buf.WriteByte('\n')
	s.n++
	return nil
}

// ReadAll returns a copy of the log contents.
func (s *SnapshotLog) ReadAll(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte{}, s.buf.Bytes()...), nil
}

// Len reports the number of records appended.
func (s *SnapshotLog) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.n
}
