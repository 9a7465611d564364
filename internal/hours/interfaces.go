package hours

import (
	"context"
	"time"
)

// RenderRequest describes one render of the dashboard.
type RenderRequest struct {
	URL string
	// WaitForText lists strings that must be visible before the page text is read.
	WaitForText []string
	Timeout     time.Duration
}

// Renderer returns the visible text of a JavaScript-driven page.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (string, error)
}

// Notifier delivers a chat message and reports the HTTP status of the attempt.
type Notifier interface {
	Notify(ctx context.Context, req NotificationRequest) (int, error)
}

// ChannelJoiner joins the bot to a channel before replying.
type ChannelJoiner interface {
	JoinChannel(ctx context.Context, channelID string) (int, error)
}

// SnapshotStore is the append-only snapshot log.
type SnapshotStore interface {
	Append(ctx context.Context, snapshot Snapshot) error
	ReadAll(ctx context.Context) ([]byte, error)
}

// SnapshotPublisher fans persisted snapshots out to downstream consumers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot Snapshot) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces command IDs.
type IDGenerator interface {
	NewID() (string, error)
}
