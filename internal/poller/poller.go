// Package poller runs the background render, extract and persist loop.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hourswatch/internal/hours"
	"github.com/JakeFAU/hourswatch/internal/metrics"
)

// Config controls Poller behavior.
type Config struct {
	URL           string
	Interval      time.Duration
	Backoff       time.Duration
	RenderTimeout time.Duration
}

// Poller periodically snapshots the dashboard into the snapshot log.
type Poller struct {
	renderer  hours.Renderer
	store     hours.SnapshotStore
	publisher hours.SnapshotPublisher
	clock     hours.Clock
	cfg       Config
	logger    *zap.Logger
	after     func(time.Duration) <-chan time.Time
}

// New constructs a Poller. publisher may be nil.
func New(
	renderer hours.Renderer,
	store hours.SnapshotStore,
	publisher hours.SnapshotPublisher,
	clock hours.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Poller, error) {
	if renderer == nil {
		return nil, errors.New("poller: renderer is required")
	}
	if store == nil {
		return nil, errors.New("poller: store is required")
	}
	if clock == nil {
		return nil, errors.New("poller: clock is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("poller: url is required")
	}
	if cfg.Interval <= 0 || cfg.Backoff <= 0 {
		return nil, fmt.Errorf("poller: interval (%s) and backoff (%s) must be positive", cfg.Interval, cfg.Backoff)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		renderer:  renderer,
		store:     store,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		after:     time.After,
	}, nil
}

// Run blocks, executing cycles until the context finishes. A failed cycle is
// followed by the backoff delay, a successful one by the normal interval.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started",
		zap.String("url", p.cfg.URL),
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("backoff", p.cfg.Backoff),
	)
	for {
		delay := p.cfg.Interval
		if _, err := p.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("poller stopped")
				return
			}
			delay = p.cfg.Backoff
			p.logger.Error("poll cycle failed",
				zap.String("error_class", hours.Classify(err)),
				zap.Duration("next_in", delay),
				zap.Error(err),
			)
		} else {
			p.logger.Debug("poll cycle complete", zap.Duration("next_in", delay))
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-p.after(delay):
		}
	}
}

// RunCycle renders the dashboard once and appends a snapshot when both
// metrics were extracted. Nothing is appended on any failure.
func (p *Poller) RunCycle(ctx context.Context) (hours.Snapshot, error) {
	snapshot, err := p.runCycle(ctx)
	metrics.ObservePollCycle(err == nil)
	if err != nil {
		metrics.ObserveError(metrics.SourcePoller, hours.Classify(err))
	}
	return snapshot, err
}

func (p *Poller) runCycle(ctx context.Context) (hours.Snapshot, error) {
	start := p.clock.Now()
	text, err := p.renderer.Render(ctx, hours.RenderRequest{
		URL:         p.cfg.URL,
		WaitForText: hours.ReadyText(),
		Timeout:     p.cfg.RenderTimeout,
	})
	metrics.ObserveRender(metrics.SourcePoller, p.clock.Now().Sub(start))
	if err != nil {
		return hours.Snapshot{}, fmt.Errorf("render dashboard: %w", err)
	}

	m, failures := hours.ExtractWithFailures(hours.SplitLines(text))
	for _, f := range failures {
		p.logger.Warn("error parsing metric", zap.String("label", f.Label), zap.String("line", f.Line))
	}
	if !m.Complete() {
		return hours.Snapshot{}, fmt.Errorf("extract dashboard metrics: %w", hours.ErrIncompleteMetrics)
	}

	snapshot := hours.NewSnapshot(p.clock.Now(), m)
	if err := p.store.Append(ctx, snapshot); err != nil {
		return hours.Snapshot{}, fmt.Errorf("append snapshot: %w", err)
	}
	metrics.ObserveSnapshotAppended(*m.HoursPending, *m.HoursApproved)
	p.logger.Info("snapshot recorded",
		zap.Time("timestamp", snapshot.Timestamp),
		zap.Int("hours_pending", *m.HoursPending),
		zap.Int("hours_approved", *m.HoursApproved),
	)

	if p.publisher != nil {
		if _, err := p.publisher.PublishSnapshot(ctx, snapshot); err != nil {
			p.logger.Warn("publish snapshot failed", zap.Error(err))
		}
	}
	return snapshot, nil
}
