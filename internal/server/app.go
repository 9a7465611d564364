// Package server builds the hourswatch dependency graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/hourswatch/internal/api"
	"github.com/JakeFAU/hourswatch/internal/clock/system"
	"github.com/JakeFAU/hourswatch/internal/config"
	"github.com/JakeFAU/hourswatch/internal/hours"
	"github.com/JakeFAU/hourswatch/internal/id/uuid"
	"github.com/JakeFAU/hourswatch/internal/logging"
	"github.com/JakeFAU/hourswatch/internal/notify/slack"
	"github.com/JakeFAU/hourswatch/internal/poller"
	gcppublisher "github.com/JakeFAU/hourswatch/internal/publisher/pubsub"
	"github.com/JakeFAU/hourswatch/internal/renderer/headless"
	"github.com/JakeFAU/hourswatch/internal/renderer/noop"
	"github.com/JakeFAU/hourswatch/internal/renderer/stealth"
	"github.com/JakeFAU/hourswatch/internal/responder"
	gcsstorage "github.com/JakeFAU/hourswatch/internal/storage/gcs"
	localstorage "github.com/JakeFAU/hourswatch/internal/storage/local"
	memorystorage "github.com/JakeFAU/hourswatch/internal/storage/memory"
	pgstore "github.com/JakeFAU/hourswatch/internal/storage/postgres"
	redisstorage "github.com/JakeFAU/hourswatch/internal/storage/redis"
	sqlitestorage "github.com/JakeFAU/hourswatch/internal/storage/sqlite"
	"github.com/JakeFAU/hourswatch/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	renderer  hours.Renderer
	store     hours.SnapshotStore
	publisher hours.SnapshotPublisher
	poller    *poller.Poller
	runner    *responder.Runner
	responder *responder.Responder
	apiServer *api.Server

	browser         *headless.Renderer
	rodBrowser      *stealth.Renderer
	pgStore         *pgstore.SnapshotStore
	sqliteStore     *sqlitestorage.SnapshotStore
	redisClient     *goredis.Client
	redisLog        *redisstorage.SnapshotLog
	storageClient   *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	tracerProvider  *sdktrace.TracerProvider
}

// Build creates the application's dependencies. The HTTP surface is only
// assembled when a Slack token is configured; the poller is always built.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("renderer_mode", cfg.Renderer.Mode),
		zap.String("store_backend", cfg.Store.Backend),
		zap.Bool("poller_enabled", cfg.Poller.Enabled),
	)

	var err error
	app.tracerProvider, err = telemetry.InitTracerProvider(ctx, telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	if err = app.setupRenderer(); err != nil {
		app.Close(ctx)
		return nil, err
	}
	if err = app.setupStore(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}
	if err = app.setupPublisher(ctx); err != nil {
		app.Close(ctx)
		return nil, err
	}

	clock := system.New()
	app.poller, err = poller.New(app.renderer, app.store, app.publisher, clock, poller.Config{
		URL:           cfg.Dashboard.URL,
		Interval:      cfg.Poller.Interval,
		Backoff:       cfg.Poller.Backoff,
		RenderTimeout: cfg.Renderer.Timeout,
	}, logging.Component(logger, "poller"))
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("poller init failed: %w", err)
	}
	return app, nil
}

// BuildServer adds the on-demand responder and HTTP API to the application.
func (a *App) BuildServer() error {
	notifier, err := slack.NewClient(slack.Config{
		BotToken: a.cfg.Slack.BotToken,
		BaseURL:  a.cfg.Slack.APIBaseURL,
		Timeout:  a.cfg.Slack.Timeout,
	}, logging.Component(a.logger, "slack"))
	if err != nil {
		return fmt.Errorf("slack client init failed: %w", err)
	}

	a.runner = responder.NewRunner(logging.Component(a.logger, "runner"))
	a.responder, err = responder.New(
		a.renderer,
		notifier,
		notifier,
		uuid.New(),
		system.New(),
		a.runner,
		responder.Config{
			URL:             a.cfg.Dashboard.URL,
			RenderTimeout:   a.cfg.Renderer.Timeout,
			JoinBeforeReply: a.cfg.Slack.JoinBeforeReply,
		},
		logging.Component(a.logger, "responder"),
	)
	if err != nil {
		return fmt.Errorf("responder init failed: %w", err)
	}

	a.apiServer = api.NewServer(a.responder, a.store, a.ready, a.cfg.Server.RequestTimeout, logging.Component(a.logger, "api"))
	return nil
}

// Handler exposes the HTTP handler built by BuildServer.
func (a *App) Handler() http.Handler {
	if a.apiServer == nil {
		return nil
	}
	return a.apiServer.Handler()
}

// Run starts the poller and HTTP server and blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	if a.apiServer == nil {
		return errors.New("server not built")
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	pollerDone := make(chan struct{})
	if a.cfg.Poller.Enabled {
		go func() {
			defer close(pollerDone)
			a.poller.Run(ctx)
		}()
	} else {
		a.logger.Info("poller disabled")
		close(pollerDone)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	<-pollerDone
	if err := a.runner.Wait(shutdownCtx); err != nil {
		a.logger.Warn("in-flight commands abandoned", zap.Error(err))
	}
	a.Close(shutdownCtx)
	return nil
}

// PollOnce runs a single poll cycle.
func (a *App) PollOnce(ctx context.Context) (hours.Snapshot, error) {
	snapshot, err := a.poller.RunCycle(ctx)
	if err != nil {
		return hours.Snapshot{}, fmt.Errorf("poll cycle: %w", err)
	}
	return snapshot, nil
}

// Poll runs the poller until ctx is canceled.
func (a *App) Poll(ctx context.Context) {
	a.poller.Run(ctx)
}

// Snapshots returns the raw snapshot log.
func (a *App) Snapshots(ctx context.Context) ([]byte, error) {
	data, err := a.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read snapshot log: %w", err)
	}
	return data, nil
}

// Close releases every external resource held by the application.
func (a *App) Close(ctx context.Context) {
	if a.browser != nil {
		a.browser.Close()
	}
	if a.rodBrowser != nil {
		a.rodBrowser.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.sqliteStore != nil {
		if err := a.sqliteStore.Close(); err != nil {
			a.logger.Warn("sqlite close failed", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
}

func (a *App) ready(ctx context.Context) error {
	if a.pgStore != nil {
		if err := a.pgStore.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if a.sqliteStore != nil {
		if err := a.sqliteStore.Ping(ctx); err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
	}
	if a.redisLog != nil {
		if err := a.redisLog.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) setupRenderer() error {
	switch a.cfg.Renderer.Mode {
	case config.RendererNoop:
		a.logger.Warn("renderer disabled; every render will fail")
		a.renderer = noop.New()
	case config.RendererStealth:
		browser, err := stealth.New(stealth.Config{
			RemoteURL:    a.cfg.Renderer.RemoteURL,
			MaxParallel:  a.cfg.Renderer.MaxParallel,
			Timeout:      a.cfg.Renderer.Timeout,
			QueueTimeout: a.cfg.SlotWait(),
		}, logging.Component(a.logger, "renderer"))
		if err != nil {
			return fmt.Errorf("stealth renderer init failed: %w", err)
		}
		a.rodBrowser = browser
		a.renderer = browser
		a.logger.Info("using stealth renderer",
			zap.Bool("remote", a.cfg.Renderer.RemoteURL != ""),
			zap.Duration("render_budget", a.cfg.RenderBudget()),
		)
	default:
		browser, err := headless.New(headless.Config{
			MaxParallel:  a.cfg.Renderer.MaxParallel,
			UserAgent:    a.cfg.Renderer.UserAgent,
			Timeout:      a.cfg.Renderer.Timeout,
			QPS:          a.cfg.Renderer.QPS,
			QueueTimeout: a.cfg.SlotWait(),
		}, logging.Component(a.logger, "renderer"))
		if err != nil {
			return fmt.Errorf("renderer init failed: %w", err)
		}
		a.browser = browser
		a.renderer = browser
		a.logger.Info("using headless renderer",
			zap.Int("max_parallel", a.cfg.Renderer.MaxParallel),
			zap.Duration("render_budget", a.cfg.RenderBudget()),
		)
	}
	return nil
}

func (a *App) setupStore(ctx context.Context) error {
	var err error
	switch a.cfg.Store.Backend {
	case config.StoreGCS:
		a.logger.Info("using GCS snapshot store", zap.String("bucket", a.cfg.Store.GCSBucket))
		a.storageClient, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.store, err = gcsstorage.New(a.storageClient, gcsstorage.Config{
			Bucket: a.cfg.Store.GCSBucket,
			Prefix: a.cfg.Store.GCSPrefix,
		}, uuid.New())
		if err != nil {
			return fmt.Errorf("gcs snapshot store init failed: %w", err)
		}
	case config.StorePostgres:
		a.logger.Info("using postgres snapshot store", zap.String("table", a.cfg.Store.Table))
		a.pgStore, err = pgstore.New(ctx, pgstore.Config{
			DSN:   a.cfg.Store.DSN,
			Table: a.cfg.Store.Table,
		}, uuid.New())
		if err != nil {
			return fmt.Errorf("postgres snapshot store init failed: %w", err)
		}
		a.store = a.pgStore
	case config.StoreSQLite:
		a.logger.Info("using sqlite snapshot store", zap.String("path", a.cfg.Store.SQLitePath))
		a.sqliteStore, err = sqlitestorage.Open(ctx, a.cfg.Store.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite snapshot store init failed: %w", err)
		}
		a.store = a.sqliteStore
	case config.StoreRedis:
		a.redisClient = goredis.NewClient(&goredis.Options{Addr: a.cfg.Store.RedisAddr})
		a.redisLog, err = redisstorage.New(a.redisClient, a.cfg.Store.RedisKey)
		if err != nil {
			return fmt.Errorf("redis snapshot store init failed: %w", err)
		}
		a.store = a.redisLog
		a.logger.Info("using redis snapshot store",
			zap.String("addr", a.cfg.Store.RedisAddr),
			zap.String("key", a.redisLog.Key()),
		)
	case config.StoreMemory:
		a.logger.Warn("using in-memory snapshot store; snapshots are lost on exit")
		a.store = memorystorage.NewSnapshotLog()
	default:
		localLog, err := localstorage.New(localstorage.Config{Path: a.cfg.Store.LocalPath})
		if err != nil {
			return fmt.Errorf("local snapshot log init failed: %w", err)
		}
		a.store = localLog
		a.logger.Info("using local snapshot log", zap.String("path", localLog.Path()))
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if !a.cfg.PubSub.Enabled() {
		a.logger.Debug("no Pub/Sub topic configured, snapshot events disabled")
		return nil
	}
	var err error
	a.pubsubClient, err = pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubPublisher = a.pubsubClient.Publisher(a.cfg.PubSub.TopicName)
	a.publisher = gcppublisher.New(a.pubsubPublisher)
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}
