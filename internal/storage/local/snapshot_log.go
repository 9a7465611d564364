// Package local implements the snapshot log as an append-only file on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

// Config captures the parameters for the local snapshot log.
type Config struct {
	// Path is the newline-delimited log file. It is created on the first append.
	Path string
}

// SnapshotLog appends snapshot records to a single file.
type SnapshotLog struct {
	mu   sync.Mutex
	path string
}

// New validates that the log's directory exists (creating it if needed) and is writable.
func New(cfg Config) (*SnapshotLog, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("log path is required")
	}
	dir := filepath.Dir(cfg.Path)

	info, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat log directory: %w", err)
		}
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("log directory path is not a directory")
	}

	if info, err := os.Stat(cfg.Path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("log path %q is a directory", cfg.Path)
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("log directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &SnapshotLog{path: cfg.Path}, nil
}

// Path returns the log file location.
func (s *SnapshotLog) Path() string {
	return s.path
}

// Append writes one record followed by a newline. Existing records are never rewritten.
func (s *SnapshotLog) Append(_ context.Context, snapshot hours.Snapshot) error {
	record, err := snapshot.MarshalRecord()
	if err != nil {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, err)
	}
	record = append(record, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	// #nosec G304 -- path comes from operator configuration.
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open log: %w", hours.ErrStoreWrite, err)
	}
	// A single write keeps the record contiguous for concurrent readers.
	if _, err := f.Write(record); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return fmt.Errorf("%w: write record: %w (close: %v)", hours.ErrStoreWrite, err, closeErr)
		}
		return fmt.Errorf("%w: write record: %w", hours.ErrStoreWrite, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close log: %w", hours.ErrStoreWrite, err)
	}
	return nil
}

// ReadAll returns the raw log contents. A log that was never written reads as empty.
// Readers may observe a partially written final line while an append is in flight.
func (s *SnapshotLog) ReadAll(_ context.Context) ([]byte, error) {
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return data, nil
}
