// Package responder answers on-demand hours commands. Each command is
// acknowledged immediately and answered later by a background task that
// renders the dashboard and sends exactly one notification.
package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/hourswatch/internal/hours"
	"github.com/JakeFAU/hourswatch/internal/metrics"
)

// Config controls Responder behavior.
type Config struct {
	URL             string
	RenderTimeout   time.Duration
	JoinBeforeReply bool
}

// Responder handles hours commands from chat users.
type Responder struct {
	renderer hours.Renderer
	notifier hours.Notifier
	joiner   hours.ChannelJoiner
	ids      hours.IDGenerator
	clock    hours.Clock
	runner   *Runner
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Responder. joiner may be nil when JoinBeforeReply is false.
func New(
	renderer hours.Renderer,
	notifier hours.Notifier,
	joiner hours.ChannelJoiner,
	ids hours.IDGenerator,
	clock hours.Clock,
	runner *Runner,
	cfg Config,
	logger *zap.Logger,
) (*Responder, error) {
	switch {
	case renderer == nil:
		return nil, errors.New("responder: renderer is required")
	case notifier == nil:
		return nil, errors.New("responder: notifier is required")
	case ids == nil:
		return nil, errors.New("responder: id generator is required")
	case clock == nil:
		return nil, errors.New("responder: clock is required")
	case runner == nil:
		return nil, errors.New("responder: runner is required")
	case cfg.URL == "":
		return nil, errors.New("responder: url is required")
	case cfg.JoinBeforeReply && joiner == nil:
		return nil, errors.New("responder: joiner is required when join_before_reply is set")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		renderer: renderer,
		notifier: notifier,
		joiner:   joiner,
		ids:      ids,
		clock:    clock,
		runner:   runner,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// HandleHoursCommand schedules the reply for (userID, channelID) and returns
// the acknowledgement without waiting on any network I/O.
func (r *Responder) HandleHoursCommand(ctx context.Context, userID, channelID string) hours.Acknowledgement {
	id, err := r.ids.NewID()
	if err != nil {
		r.logger.Warn("generate command id", zap.Error(err))
	}
	cmd := hours.Command{
		ID:        id,
		UserID:    userID,
		ChannelID: channelID,
		Received:  r.clock.Now(),
	}
	metrics.ObserveCommand()
	r.logger.Info("hours command accepted",
		zap.String("command_id", cmd.ID),
		zap.String("user_id", userID),
		zap.String("channel_id", channelID),
	)

	taskCtx := context.WithoutCancel(ctx)
	r.runner.Go(cmd.ID, func() {
		r.respond(taskCtx, cmd)
	})
	return hours.Ack()
}

func (r *Responder) respond(ctx context.Context, cmd hours.Command) {
	metrics.IncCommandsInFlight()
	defer metrics.DecCommandsInFlight()

	logger := r.logger.With(
		zap.String("command_id", cmd.ID),
		zap.String("user_id", cmd.UserID),
		zap.String("channel_id", cmd.ChannelID),
	)

	if r.cfg.JoinBeforeReply {
		status, err := r.joiner.JoinChannel(ctx, cmd.ChannelID)
		if err != nil {
			metrics.ObserveError(metrics.SourceCommand, hours.Classify(err))
			logger.Error("join channel failed, dropping reply", zap.Int("status_code", status), zap.Error(err))
			return
		}
	}

	m, err := r.fetchMetrics(ctx, logger)
	if err != nil {
		metrics.ObserveError(metrics.SourceCommand, hours.Classify(err))
		logger.Error("fetch dashboard metrics failed",
			zap.String("error_class", hours.Classify(err)),
			zap.Error(err),
		)
	}

	status, err := r.notifier.Notify(ctx, hours.NotificationRequest{
		UserID:    cmd.UserID,
		ChannelID: cmd.ChannelID,
		Text:      hours.ComposeMessage(m),
	})
	metrics.ObserveNotification(err == nil)
	if err != nil {
		metrics.ObserveError(metrics.SourceCommand, hours.Classify(err))
		logger.Error("send notification failed", zap.Int("status_code", status), zap.Error(err))
		return
	}
	logger.Info("hours command answered",
		zap.Int("status_code", status),
		zap.Duration("elapsed", r.clock.Now().Sub(cmd.Received)),
	)
}

// fetchMetrics renders and extracts without touching the snapshot log.
func (r *Responder) fetchMetrics(ctx context.Context, logger *zap.Logger) (hours.Metrics, error) {
	start := r.clock.Now()
	text, err := r.renderer.Render(ctx, hours.RenderRequest{
		URL:         r.cfg.URL,
		WaitForText: hours.ReadyText(),
		Timeout:     r.cfg.RenderTimeout,
	})
	metrics.ObserveRender(metrics.SourceCommand, r.clock.Now().Sub(start))
	if err != nil {
		return hours.Metrics{}, fmt.Errorf("render dashboard: %w", err)
	}
	m, failures := hours.ExtractWithFailures(hours.SplitLines(text))
	for _, f := range failures {
		logger.Warn("error parsing metric", zap.String("label", f.Label), zap.String("line", f.Line))
	}
	if !m.Complete() {
		return m, fmt.Errorf("extract dashboard metrics: %w", hours.ErrIncompleteMetrics)
	}
	return m, nil
}
