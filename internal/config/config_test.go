package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Poller.Interval != 5*time.Minute || cfg.Poller.Backoff != time.Minute {
		t.Fatalf("unexpected poller defaults: %+v", cfg.Poller)
	}
	if cfg.Renderer.Timeout != 15*time.Second || cfg.Renderer.Mode != RendererChromedp {
		t.Fatalf("unexpected renderer defaults: %+v", cfg.Renderer)
	}
	if cfg.Store.Backend != StoreLocal || cfg.Store.LocalPath == "" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if cfg.PubSub.Enabled() {
		t.Fatal("expected pubsub to be disabled by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
dashboard:
  url: https://dashboard.example.com/view
renderer:
  mode: noop
  timeout: 12s
  max_parallel: 4
  qps: 0.5
poller:
  enabled: false
  interval: 10m
  backoff: 30s
slack:
  bot_token: xoxb-test
  api_base_url: https://slack.example.com/api
  join_before_reply: true
store:
  backend: postgres
  dsn: postgres://localhost/hours
  table: snapshots
pubsub:
  project_id: proj
  topic_name: hours
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Dashboard.URL != "https://dashboard.example.com/view" {
		t.Fatalf("unexpected dashboard url %q", cfg.Dashboard.URL)
	}
	if cfg.Renderer.Mode != RendererNoop || cfg.Renderer.Timeout != 12*time.Second || cfg.Renderer.MaxParallel != 4 {
		t.Fatalf("expected renderer overrides to apply: %+v", cfg.Renderer)
	}
	if cfg.Poller.Enabled || cfg.Poller.Interval != 10*time.Minute || cfg.Poller.Backoff != 30*time.Second {
		t.Fatalf("expected poller overrides to apply: %+v", cfg.Poller)
	}
	if !cfg.Slack.JoinBeforeReply || cfg.Slack.BotToken != "xoxb-test" {
		t.Fatalf("expected slack overrides to apply: %+v", cfg.Slack)
	}
	if cfg.Store.Backend != StorePostgres || cfg.Store.Table != "snapshots" {
		t.Fatalf("expected store overrides to apply: %+v", cfg.Store)
	}
	if !cfg.PubSub.Enabled() {
		t.Fatal("expected pubsub enabled")
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
	if got := cfg.RenderBudget(); got != 24*time.Second {
		t.Fatalf("expected render budget 24s, got %v", got)
	}
}

func TestSlotWait(t *testing.T) {
	t.Parallel()

	cfg := Config{Renderer: RendererConfig{Timeout: 10 * time.Second}}
	if got := cfg.SlotWait(); got != 10*time.Second {
		t.Fatalf("expected slot wait to default to the render timeout, got %v", got)
	}
	cfg.Renderer.QueueTimeout = 3 * time.Second
	if got := cfg.SlotWait(); got != 3*time.Second {
		t.Fatalf("expected explicit queue timeout, got %v", got)
	}
	if got := cfg.RenderBudget(); got != 13*time.Second {
		t.Fatalf("expected render budget 13s, got %v", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Dashboard: DashboardConfig{URL: "https://example.com"},
		Renderer:  RendererConfig{Mode: RendererChromedp, Timeout: time.Second},
		Poller:    PollerConfig{Interval: time.Minute, Backoff: time.Second},
		Slack:     SlackConfig{APIBaseURL: "https://slack.com/api"},
		Store:     StoreConfig{Backend: StoreMemory},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}
	stealthCfg := base
	stealthCfg.Renderer.Mode = RendererStealth
	stealthCfg.Renderer.RemoteURL = "ws://127.0.0.1:9222/devtools/browser/abc"
	if err := stealthCfg.Validate(); err != nil {
		t.Fatalf("stealth renderer should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"dashboard url", func(c *Config) { c.Dashboard.URL = " " }, "dashboard.url"},
		{"renderer mode", func(c *Config) { c.Renderer.Mode = "colly" }, "renderer.mode"},
		{"renderer timeout", func(c *Config) { c.Renderer.Timeout = 0 }, "renderer.timeout"},
		{"renderer parallel", func(c *Config) { c.Renderer.MaxParallel = -1 }, "renderer.max_parallel"},
		{"renderer qps", func(c *Config) { c.Renderer.QPS = -1 }, "renderer.qps"},
		{"renderer queue timeout", func(c *Config) { c.Renderer.QueueTimeout = -time.Second }, "renderer.queue_timeout"},
		{"poller interval", func(c *Config) { c.Poller.Interval = 0 }, "poller.interval"},
		{"poller backoff", func(c *Config) { c.Poller.Backoff = 0 }, "poller.backoff"},
		{"backoff exceeds interval", func(c *Config) { c.Poller.Backoff = time.Hour }, "must not exceed"},
		{"slack base url", func(c *Config) { c.Slack.APIBaseURL = "" }, "slack.api_base_url"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "s3" }, "store.backend"},
		{"local path", func(c *Config) { c.Store = StoreConfig{Backend: StoreLocal} }, "store.local_path"},
		{"gcs bucket", func(c *Config) { c.Store = StoreConfig{Backend: StoreGCS} }, "store.gcs_bucket"},
		{"postgres dsn", func(c *Config) { c.Store = StoreConfig{Backend: StorePostgres} }, "store.dsn"},
		{"sqlite path", func(c *Config) { c.Store = StoreConfig{Backend: StoreSQLite} }, "store.sqlite_path"},
		{"redis addr", func(c *Config) { c.Store = StoreConfig{Backend: StoreRedis} }, "store.redis_addr"},
		{"request timeout", func(c *Config) { c.Server.RequestTimeout = -time.Second }, "server.request_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
