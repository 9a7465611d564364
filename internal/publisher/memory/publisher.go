// Package memory contains an in-memory snapshot publisher for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/hourswatch/internal/hours"
	"github.com/JakeFAU/hourswatch/internal/publisher"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []publisher.SnapshotEvent
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// PublishSnapshot records the event and returns a pseudo ID.
func (p *Publisher) PublishSnapshot(_ context.Context, snapshot hours.Snapshot) (string, error) {
	ev, err := publisher.NewSnapshotEvent(snapshot)
	if err != nil {
		return "", fmt.Errorf("build snapshot event: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded events.
func (p *Publisher) Events() []publisher.SnapshotEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.SnapshotEvent, len(p.events))
	copy(out, p.events)
	return out
}
