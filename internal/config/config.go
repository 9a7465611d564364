// Package config loads and validates hourswatch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreLocal    = "local"
	StoreMemory   = "memory"
	StoreGCS      = "gcs"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

// Renderer modes.
const (
	RendererChromedp = "chromedp"
	RendererStealth  = "stealth"
	RendererNoop     = "noop"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Slack     SlackConfig     `mapstructure:"slack"`
	Store     StoreConfig     `mapstructure:"store"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DashboardConfig points at the page being scraped.
type DashboardConfig struct {
	URL string `mapstructure:"url"`
}

// RendererConfig configures the headless rendering subsystem.
type RendererConfig struct {
	Mode        string        `mapstructure:"mode"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxParallel int           `mapstructure:"max_parallel"`
	QPS         float64       `mapstructure:"qps"`
	UserAgent   string        `mapstructure:"user_agent"`
	// QueueTimeout bounds the wait for a free render slot. Zero means Timeout.
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
	// RemoteURL attaches the stealth renderer to an existing Chrome DevTools endpoint.
	RemoteURL string `mapstructure:"remote_url"`
}

// PollerConfig controls the background polling loop.
type PollerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// SlackConfig holds messaging API credentials and behavior.
type SlackConfig struct {
	BotToken        string        `mapstructure:"bot_token"`
	APIBaseURL      string        `mapstructure:"api_base_url"`
	JoinBeforeReply bool          `mapstructure:"join_before_reply"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// StoreConfig selects and configures the snapshot log backend.
type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	LocalPath  string `mapstructure:"local_path"`
	GCSBucket  string `mapstructure:"gcs_bucket"`
	GCSPrefix  string `mapstructure:"gcs_prefix"`
	DSN        string `mapstructure:"dsn"`
	Table      string `mapstructure:"table"`
	SQLitePath string `mapstructure:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr"`
	RedisKey   string `mapstructure:"redis_key"`
}

// PubSubConfig holds metadata for snapshot event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether snapshot events should be published.
func (c PubSubConfig) Enabled() bool {
	return c.ProjectID != "" && c.TopicName != ""
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HOURSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("dashboard.url", "https://airtable.com/appOKDJk2ALKSisEM/shriBhjoCj83rYCGT")
	v.SetDefault("renderer.mode", RendererChromedp)
	v.SetDefault("renderer.timeout", "15s")
	v.SetDefault("renderer.max_parallel", 2)
	v.SetDefault("renderer.qps", 0)
	v.SetDefault("renderer.queue_timeout", 0)
	v.SetDefault("renderer.user_agent", "hourswatch/0.1")
	v.SetDefault("renderer.remote_url", "")
	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval", "5m")
	v.SetDefault("poller.backoff", "1m")
	v.SetDefault("slack.bot_token", "")
	v.SetDefault("slack.api_base_url", "https://slack.com/api")
	v.SetDefault("slack.join_before_reply", false)
	v.SetDefault("slack.timeout", "10s")
	v.SetDefault("store.backend", StoreLocal)
	v.SetDefault("store.local_path", "data/hours_log.jsonl")
	v.SetDefault("store.gcs_prefix", "hours")
	v.SetDefault("store.table", "hours_snapshots")
	v.SetDefault("store.sqlite_path", "data/hours.db")
	v.SetDefault("store.redis_key", "hourswatch:snapshots")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must be >= 0")
	}
	if strings.TrimSpace(c.Dashboard.URL) == "" {
		return fmt.Errorf("dashboard.url is required")
	}
	switch c.Renderer.Mode {
	case RendererChromedp, RendererStealth, RendererNoop:
	default:
		return fmt.Errorf("renderer.mode must be one of %q, %q, %q, got %q",
			RendererChromedp, RendererStealth, RendererNoop, c.Renderer.Mode)
	}
	if c.Renderer.Timeout <= 0 {
		return fmt.Errorf("renderer.timeout must be > 0")
	}
	if c.Renderer.MaxParallel < 0 {
		return fmt.Errorf("renderer.max_parallel must be >= 0")
	}
	if c.Renderer.QPS < 0 {
		return fmt.Errorf("renderer.qps must be >= 0")
	}
	if c.Renderer.QueueTimeout < 0 {
		return fmt.Errorf("renderer.queue_timeout must be >= 0")
	}
	if c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be > 0")
	}
	if c.Poller.Backoff <= 0 {
		return fmt.Errorf("poller.backoff must be > 0")
	}
	if c.Poller.Backoff > c.Poller.Interval {
		return fmt.Errorf("poller.backoff must not exceed poller.interval")
	}
	if c.Slack.APIBaseURL == "" {
		return fmt.Errorf("slack.api_base_url is required")
	}
	return c.validateStore()
}

func (c Config) validateStore() error {
	switch c.Store.Backend {
	case StoreLocal:
		if strings.TrimSpace(c.Store.LocalPath) == "" {
			return fmt.Errorf("store.local_path is required for the local backend")
		}
	case StoreGCS:
		if c.Store.GCSBucket == "" {
			return fmt.Errorf("store.gcs_bucket is required for the gcs backend")
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres backend")
		}
	case StoreSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	return nil
}

// SlotWait is how long a render may queue for a free slot before it times out.
func (c Config) SlotWait() time.Duration {
	if c.Renderer.QueueTimeout > 0 {
		return c.Renderer.QueueTimeout
	}
	return c.Renderer.Timeout
}

// RenderBudget is the upper bound for a single render including queueing for a slot.
func (c Config) RenderBudget() time.Duration {
	return c.SlotWait() + c.Renderer.Timeout
}
