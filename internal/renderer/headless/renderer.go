// Package headless renders JavaScript-driven pages with headless Chrome and returns their visible text.
package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

const defaultTimeout = 15 * time.Second

// Config controls the behavior of the headless renderer.
type Config struct {
	// MaxParallel caps concurrent browser tabs. Zero means unlimited.
	MaxParallel int
	UserAgent   string
	// Timeout bounds a single render when the request does not carry its own.
	Timeout time.Duration
	// QPS throttles render starts. Zero disables throttling.
	QPS float64
	// QueueTimeout bounds the wait for a free tab when MaxParallel is reached. Zero means Timeout.
	QueueTimeout time.Duration
}

// Renderer implements hours.Renderer using chromedp.
type Renderer struct {
	cfg         Config
	limiter     chan struct{}
	throttle    *rate.Limiter
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates a renderer backed by a headless Chrome allocator.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.QPS < 0 {
		return nil, fmt.Errorf("qps must be >= 0")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.QueueTimeout <= 0 {
		cfg.QueueTimeout = cfg.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}
	var throttle *rate.Limiter
	if cfg.QPS > 0 {
		throttle = rate.NewLimiter(rate.Limit(cfg.QPS), 1)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		cfg:         cfg,
		limiter:     limiter,
		throttle:    throttle,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context and shuts the browser down.
func (r *Renderer) Close() {
	r.allocCancel()
}

// Render navigates to the URL, waits until every ready string is visible, and returns document.body.innerText.
func (r *Renderer) Render(ctx context.Context, req hours.RenderRequest) (string, error) {
	if err := r.acquireWithin(ctx, r.cfg.QueueTimeout); err != nil {
		return "", err
	}
	defer r.release()

	if r.throttle != nil {
		if err := r.throttle.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: render rate limit: %w", hours.ErrRenderFailed, err)
		}
	}

	// Each render gets its own browser tab, released when the render returns.
	tabCtx, tabCancel := chromedp.NewContext(r.allocator)
	defer tabCancel()

	taskCtx, cancel := context.WithTimeout(tabCtx, r.timeout(req))
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	text, err := r.run(taskCtx, req)
	if err != nil {
		if errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %w", hours.ErrRenderTimeout, time.Since(start).Round(time.Millisecond), err)
		}
		return "", fmt.Errorf("%w: %w", hours.ErrRenderFailed, err)
	}
	r.logger.Debug("render complete",
		zap.String("url", req.URL),
		zap.Int("bytes", len(text)),
		zap.Duration("duration", time.Since(start)),
	)
	return text, nil
}

func (r *Renderer) run(ctx context.Context, req hours.RenderRequest) (string, error) {
	var text string
	actions := []chromedp.Action{
		r.networkSetupAction(),
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	for _, want := range req.WaitForText {
		expr, err := textPresentExpr(want)
		if err != nil {
			return "", err
		}
		var present bool
		actions = append(actions, chromedp.Poll(expr, &present))
	}
	actions = append(actions, chromedp.Evaluate(innerTextExpr, &text))
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return text, nil
}

func (r *Renderer) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if r.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (r *Renderer) acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	select {
	case r.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("render slot wait canceled: %w", ctx.Err())
	}
}

// acquireWithin waits at most wait for a slot. Expiry of that wait is a render timeout.
func (r *Renderer) acquireWithin(ctx context.Context, wait time.Duration) error {
	if r.limiter == nil {
		return nil
	}
	if wait <= 0 {
		wait = defaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := r.acquire(waitCtx); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: no render slot free after %s", hours.ErrRenderTimeout, wait)
		}
		return fmt.Errorf("%w: %w", hours.ErrRenderFailed, err)
	}
	return nil
}

func (r *Renderer) release() {
	if r.limiter == nil {
		return
	}
	select {
	case <-r.limiter:
	default:
	}
}

func (r *Renderer) timeout(req hours.RenderRequest) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if r.cfg.Timeout > 0 {
		return r.cfg.Timeout
	}
	return defaultTimeout
}

const innerTextExpr = `document.body ? document.body.innerText : ""`

func textPresentExpr(text string) (string, error) {
	quoted, err := json.Marshal(text)
	if err != nil {
		return "", fmt.Errorf("quote wait text: %w", err)
	}
	return fmt.Sprintf(`!!document.body && document.body.innerText.includes(%s)`, quoted), nil
}
