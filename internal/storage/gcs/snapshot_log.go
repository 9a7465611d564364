// Package gcs stores the snapshot log in Google Cloud Storage.
//
// GCS objects are immutable, so each record is written as its own object under
// a prefix. Object names start with a fixed-width UTC timestamp, which makes the
// bucket listing order chronological. ReadAll concatenates the objects into the
// same newline-delimited layout the local log uses.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

const objectTimeLayout = "20060102T150405.000000000Z"

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// SnapshotLog writes one object per snapshot record.
type SnapshotLog struct {
	client *storage.Client
	bucket string
	prefix string
	ids    hours.IDGenerator
}

// New creates a GCS-backed snapshot log.
func New(client *storage.Client, cfg Config, ids hours.IDGenerator) (*SnapshotLog, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if ids == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	return &SnapshotLog{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		ids:    ids,
	}, nil
}

// ObjectName builds the object path for a snapshot.
func (s *SnapshotLog) ObjectName(snapshot hours.Snapshot, id string) string {
	name := fmt.Sprintf("%s-%s.json", snapshot.Timestamp.UTC().Format(objectTimeLayout), id)
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Append uploads the snapshot as a new object; DoesNotExist preconditions prevent overwrites.
func (s *SnapshotLog) Append(ctx context.Context, snapshot hours.Snapshot) error {
	record, err := snapshot.MarshalRecord()
	if err != nil {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return fmt.Errorf("%w: %w", hours.ErrStoreWrite, err)
	}
	obj := s.client.Bucket(s.bucket).Object(s.ObjectName(snapshot, id)).If(storage.Conditions{DoesNotExist: true})
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := io.Copy(writer, bytes.NewReader(append(record, '\n'))); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("%w: copy object: %w (close writer: %v)", hours.ErrStoreWrite, err, closeErr)
		}
		return fmt.Errorf("%w: copy object: %w", hours.ErrStoreWrite, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: close writer: %w", hours.ErrStoreWrite, err)
	}
	return nil
}

// ReadAll lists every record object under the prefix and concatenates them in name order.
func (s *SnapshotLog) ReadAll(ctx context.Context) ([]byte, error) {
	query := &storage.Query{}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, fmt.Errorf("select attrs: %w", err)
	}
	bkt := s.client.Bucket(s.bucket)
	it := bkt.Objects(ctx, query)

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		names = append(names, attrs.Name)
	}

	var buf bytes.Buffer
	for _, name := range names {
		if err := s.readObject(ctx, bkt.Object(name), &buf); err != nil {
			if errors.Is(err, storage.ErrObjectNotExist) {
				continue
			}
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (s *SnapshotLog) readObject(ctx context.Context, obj *storage.ObjectHandle, buf *bytes.Buffer) error {
	r, err := obj.NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open object %s: %w", obj.ObjectName(), err)
	}
	defer r.Close() //nolint:errcheck // read-only handle
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object %s: %w", obj.ObjectName(), err)
	}
	buf.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		buf.WriteByte('\n')
	}
	return nil
}
