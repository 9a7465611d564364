// Package publisher defines the snapshot event published after each persisted poll.
package publisher

import (
	"time"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

// EventSnapshotRecorded is the event type attached to every snapshot message.
const EventSnapshotRecorded = "snapshot.recorded"

// SnapshotEvent is the JSON payload published for a persisted snapshot.
type SnapshotEvent struct {
	Event         string    `json:"event"`
	Timestamp     time.Time `json:"timestamp"`
	HoursPending  int       `json:"hours_pending"`
	HoursApproved int       `json:"hours_approved"`
}

// NewSnapshotEvent builds the event payload for a complete snapshot.
func NewSnapshotEvent(s hours.Snapshot) (SnapshotEvent, error) {
	if !s.Complete() {
		return SnapshotEvent{}, hours.ErrIncompleteMetrics
	}
	return SnapshotEvent{
		Event:         EventSnapshotRecorded,
		Timestamp:     s.Timestamp.UTC(),
		HoursPending:  *s.HoursPending,
		HoursApproved: *s.HoursApproved,
	}, nil
}
