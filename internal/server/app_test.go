package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/hourswatch/internal/config"
	"github.com/JakeFAU/hourswatch/internal/hours"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Server:    config.ServerConfig{Port: 8080, RequestTimeout: time.Second},
		Dashboard: config.DashboardConfig{URL: "https://dashboard.example.com/shr123"},
		Renderer: config.RendererConfig{
			Mode:    config.RendererNoop,
			Timeout: time.Second,
		},
		Poller: config.PollerConfig{Enabled: true, Interval: time.Minute, Backoff: time.Second},
		Slack: config.SlackConfig{
			BotToken:   "xoxb-test",
			APIBaseURL: "https://slack.invalid/api",
			Timeout:    time.Second,
		},
		Store: config.StoreConfig{Backend: config.StoreMemory},
	}
}

func TestBuild_PollOnceWithDisabledRenderer(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	_, err = app.PollOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, hours.ErrRendererDisabled)

	data, err := app.Snapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestBuild_LocalStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store = config.StoreConfig{
		Backend:   config.StoreLocal,
		LocalPath: filepath.Join(t.TempDir(), "logs", "hours_log.jsonl"),
	}

	app, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	data, err := app.Snapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestBuildServer_RequiresSlackToken(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Slack.BotToken = ""

	app, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	require.Error(t, app.BuildServer())
	assert.Nil(t, app.Handler())
}

func TestBuildServer_ServesRoutes(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	require.NoError(t, app.BuildServer())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshots", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestRun_RequiresServer(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, testConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)

	require.Error(t, app.Run(ctx))
}

func TestBuild_SQLiteStoreIsReady(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Store = config.StoreConfig{
		Backend:    config.StoreSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "hours.db"),
	}

	app, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close(ctx)
	require.NoError(t, app.BuildServer())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuild_StealthRendererIsLazy(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Renderer.Mode = config.RendererStealth
	cfg.Renderer.MaxParallel = 1

	app, err := Build(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.rodBrowser)
	app.Close(ctx)

	_, err = app.PollOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, hours.ErrRenderFailed)
}

func TestBuild_LogsResolvedStoreLocation(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "hours_log.jsonl")
	cfg.Store = config.StoreConfig{Backend: config.StoreLocal, LocalPath: path}
	core, logs := observer.New(zap.InfoLevel)
	app, err := Build(ctx, cfg, zap.New(core))
	require.NoError(t, err)
	app.Close(ctx)

	entries := logs.FilterMessage("using local snapshot log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].ContextMap()["path"])

	// The redis client connects lazily, so Build needs no server.
	cfg.Store = config.StoreConfig{Backend: config.StoreRedis, RedisAddr: "127.0.0.1:1"}
	core, logs = observer.New(zap.InfoLevel)
	app, err = Build(ctx, cfg, zap.New(core))
	require.NoError(t, err)
	app.Close(ctx)

	entries = logs.FilterMessage("using redis snapshot store").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "hourswatch:snapshots", entries[0].ContextMap()["key"])
}
