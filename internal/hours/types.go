package hours

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metrics holds the values scraped from one render. Nil means the value could not be extracted.
type Metrics struct {
	HoursPending  *int
	HoursApproved *int
}

// Complete reports whether both metrics were extracted.
func (m Metrics) Complete() bool {
	return m.HoursPending != nil && m.HoursApproved != nil
}

// Snapshot is one timestamped observation of the dashboard.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	HoursPending  *int      `json:"hours_pending,omitempty"`
	HoursApproved *int      `json:"hours_approved,omitempty"`
}

// NewSnapshot stamps metrics with the render time.
func NewSnapshot(at time.Time, m Metrics) Snapshot {
	return Snapshot{
		Timestamp:     at,
		HoursPending:  m.HoursPending,
		HoursApproved: m.HoursApproved,
	}
}

// Metrics returns the metric portion of the snapshot.
func (s Snapshot) Metrics() Metrics {
	return Metrics{HoursPending: s.HoursPending, HoursApproved: s.HoursApproved}
}

// Complete reports whether the snapshot may be persisted.
func (s Snapshot) Complete() bool {
	return s.Metrics().Complete()
}

// MarshalRecord encodes the snapshot as one log record without the trailing newline.
func (s Snapshot) MarshalRecord() ([]byte, error) {
	if !s.Complete() {
		return nil, ErrIncompleteMetrics
	}
	rec := struct {
		Timestamp     string `json:"timestamp"`
		HoursPending  int    `json:"hours_pending"`
		HoursApproved int    `json:"hours_approved"`
	}{
		Timestamp:     s.Timestamp.UTC().Format(time.RFC3339Nano),
		HoursPending:  *s.HoursPending,
		HoursApproved: *s.HoursApproved,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// NotificationRequest is the single reply owed to a chat user per command.
type NotificationRequest struct {
	UserID    string
	ChannelID string
	Text      string
}

// Command identifies one inbound hours command.
type Command struct {
	ID        string
	UserID    string
	ChannelID string
	Received  time.Time
}

// Acknowledgement is returned to the caller before any rendering happens.
type Acknowledgement struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
