// Package stealth renders pages with go-rod and its stealth evasions, for
// dashboards that refuse plain automated Chrome.
package stealth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/JakeFAU/hourswatch/internal/hours"
)

const defaultTimeout = 15 * time.Second

// Config controls the rod renderer.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome. Empty launches a local one.
	RemoteURL string
	// MaxParallel caps concurrent pages. Zero means unlimited.
	MaxParallel int
	Timeout     time.Duration
	// QueueTimeout bounds the wait for a free page slot. Zero means Timeout.
	QueueTimeout time.Duration
}

// Renderer implements hours.Renderer with a lazily launched rod browser.
type Renderer struct {
	cfg     Config
	limiter chan struct{}
	logger  *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// New validates cfg. The browser starts on the first Render.
func New(cfg Config, logger *zap.Logger) (*Renderer, error) {
	if cfg.MaxParallel < 0 {
		return nil, errors.New("max parallel must be >= 0")
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
	return &Renderer{cfg: cfg, limiter: limiter, logger: logger}, nil
}

// Render opens a stealth page, waits for every ready string, and returns document.body.innerText.
func (r *Renderer) Render(ctx context.Context, req hours.RenderRequest) (string, error) {
	if r.limiter != nil {
		waitCtx, waitCancel := context.WithTimeout(ctx, r.cfg.QueueTimeout)
		select {
		case r.limiter <- struct{}{}:
			waitCancel()
			defer func() { <-r.limiter }()
		case <-waitCtx.Done():
			waitCancel()
			if ctx.Err() == nil {
				return "", fmt.Errorf("%w: no page slot free after %s", hours.ErrRenderTimeout, r.cfg.QueueTimeout)
			}
			return "", fmt.Errorf("%w: render slot wait canceled: %w", hours.ErrRenderFailed, ctx.Err())
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.cfg.Timeout
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	browser, err := r.connect()
	if err != nil {
		return "", fmt.Errorf("%w: %w", hours.ErrRenderFailed, err)
	}

	start := time.Now()
	text, err := r.run(taskCtx, browser, req)
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

func (r *Renderer) run(ctx context.Context, browser *rod.Browser, req hours.RenderRequest) (string, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.logger.Debug("close page", zap.Error(cerr))
		}
	}()

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return "", fmt.Errorf("navigate %s: %w", req.URL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	for _, want := range req.WaitForText {
		js, err := textPresentFunc(want)
		if err != nil {
			return "", err
		}
		if err := p.Wait(rod.Eval(js)); err != nil {
			return "", fmt.Errorf("wait for %q: %w", want, err)
		}
	}
	res, err := p.Eval(innerTextFunc)
	if err != nil {
		return "", fmt.Errorf("read body text: %w", err)
	}
	return res.Value.Str(), nil
}

// connect launches or attaches to the browser once; a failed attempt is retried on the next call.
func (r *Renderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("renderer is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	wsURL := r.cfg.RemoteURL
	var lnch *launcher.Launcher
	if wsURL == "" {
		lnch = launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
	}
	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Kill()
		}
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	r.browser = b
	r.lnch = lnch
	r.logger.Info("browser connected", zap.Bool("remote", r.cfg.RemoteURL != ""))
	return b, nil
}

// Close shuts the browser down. Render fails afterwards.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.browser != nil {
		if err := r.browser.Close(); err != nil {
			r.logger.Warn("close browser", zap.Error(err))
		}
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Kill()
		r.lnch = nil
	}
}

const innerTextFunc = `() => document.body ? document.body.innerText : ""`

func textPresentFunc(text string) (string, error) {
	quoted, err := json.Marshal(text)
	if err != nil {
		return "", fmt.Errorf("quote wait text: %w", err)
	}
	return fmt.Sprintf(`() => !!document.body && document.body.innerText.includes(%s)`, quoted), nil
}
