// Package config provides configuration management for the openclaw control plane.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Bus        BusConfig        `mapstructure:"bus"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Merge      MergeConfig      `mapstructure:"merge"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int      `mapstructure:"writeTimeout"` // in seconds
	CORSOrigins  []string `mapstructure:"corsOrigins"`
}

// StorageConfig selects and configures the relational store.
// Driver "sqlite" uses Path; driver "postgres" uses DSN.
type StorageConfig struct {
	Driver      string `mapstructure:"driver"`
	Path        string `mapstructure:"path"`
	DSN         string `mapstructure:"dsn"`
	BusyTimeout int    `mapstructure:"busyTimeout"` // sqlite, in milliseconds
}

// BusConfig holds event bus configuration.
// Empty NATS URL means the in-memory bus.
type BusConfig struct {
	Provider      string `mapstructure:"provider"` // memory, nats
	NATSURL       string `mapstructure:"natsUrl"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// DispatcherConfig holds dispatcher process configuration.
type DispatcherConfig struct {
	MaxConcurrent        int `mapstructure:"maxConcurrent"`
	PollIntervalSecs     int `mapstructure:"pollInterval"`      // fallback message poll
	ReconcileIntervalSec int `mapstructure:"reconcileInterval"` // stuck-state sweep
	StuckAgentMinutes    int `mapstructure:"stuckAgentMinutes"`
	StatsPort            int `mapstructure:"statsPort"` // dispatcher health/stats endpoint
}

// AgentConfig holds agent run defaults and tool-bridge wiring.
type AgentConfig struct {
	DefaultAdapter string `mapstructure:"defaultAdapter"`
	DefaultModel   string `mapstructure:"defaultModel"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	BridgePath     string `mapstructure:"bridgePath"` // tool-bridge binary; probed when empty
	APIURL         string `mapstructure:"apiUrl"`     // callback base URL for subprocesses
}

// MergeConfig holds merge worker configuration.
type MergeConfig struct {
	PollIntervalSecs int `mapstructure:"pollInterval"`
	GitTimeoutSecs   int `mapstructure:"gitTimeout"`
}

// WebhookConfig holds webhook intake configuration.
// Empty Secret disables signature verification.
type WebhookConfig struct {
	Secret string `mapstructure:"secret"`
	TeamID string `mapstructure:"teamId"` // team that receives webhook-created tasks
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// PollInterval returns the fallback poll interval as a time.Duration.
func (d *DispatcherConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSecs) * time.Second
}

// ReconcileInterval returns the reconciliation interval as a time.Duration.
func (d *DispatcherConfig) ReconcileInterval() time.Duration {
	return time.Duration(d.ReconcileIntervalSec) * time.Second
}

// StuckAgentTimeout returns how long an agent may sit in "working"
// without an open session before reconciliation resets it.
func (d *DispatcherConfig) StuckAgentTimeout() time.Duration {
	return time.Duration(d.StuckAgentMinutes) * time.Minute
}

// Timeout returns the default adapter run timeout as a time.Duration.
func (a *AgentConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// PollInterval returns the merge queue poll interval as a time.Duration.
func (m *MergeConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSecs) * time.Second
}

// GitTimeout returns the per-git-command timeout as a time.Duration.
func (m *MergeConfig) GitTimeout() time.Duration {
	return time.Duration(m.GitTimeoutSecs) * time.Second
}

// detectDefaultLogFormat returns "json" in production-like environments
// and "text" for terminal/development use.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("OPENCLAW_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.corsOrigins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "openclaw.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.busyTimeout", 5000)

	// Bus defaults - empty URL means use the in-memory event bus
	v.SetDefault("bus.provider", "memory")
	v.SetDefault("bus.natsUrl", "")
	v.SetDefault("bus.maxReconnects", 10)

	// Dispatcher defaults
	v.SetDefault("dispatcher.maxConcurrent", 32)
	v.SetDefault("dispatcher.pollInterval", 5)
	v.SetDefault("dispatcher.reconcileInterval", 60)
	v.SetDefault("dispatcher.stuckAgentMinutes", 30)
	v.SetDefault("dispatcher.statsPort", 8081)

	// Agent defaults
	v.SetDefault("agent.defaultAdapter", "claude")
	v.SetDefault("agent.defaultModel", "claude-sonnet-4-20250514")
	v.SetDefault("agent.timeoutSeconds", 1800)
	v.SetDefault("agent.bridgePath", "")
	v.SetDefault("agent.apiUrl", "http://localhost:8080")

	// Merge worker defaults
	v.SetDefault("merge.pollInterval", 5)
	v.SetDefault("merge.gitTimeout", 60)

	// Webhook defaults - empty secret disables signature verification
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.teamId", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix OPENCLAW_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/openclaw/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("OPENCLAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys).
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion,
	// so we bind keys where env var naming differs from config key naming.
	_ = v.BindEnv("bus.natsUrl", "OPENCLAW_BUS_NATS_URL")
	_ = v.BindEnv("dispatcher.maxConcurrent", "OPENCLAW_DISPATCHER_MAX_CONCURRENT")
	_ = v.BindEnv("dispatcher.pollInterval", "OPENCLAW_DISPATCHER_POLL_INTERVAL")
	_ = v.BindEnv("dispatcher.reconcileInterval", "OPENCLAW_DISPATCHER_RECONCILE_INTERVAL")
	_ = v.BindEnv("dispatcher.statsPort", "OPENCLAW_DISPATCHER_STATS_PORT")
	_ = v.BindEnv("agent.defaultAdapter", "OPENCLAW_AGENT_DEFAULT_ADAPTER")
	_ = v.BindEnv("agent.defaultModel", "OPENCLAW_AGENT_DEFAULT_MODEL")
	_ = v.BindEnv("agent.timeoutSeconds", "OPENCLAW_AGENT_TIMEOUT_SECONDS")
	_ = v.BindEnv("agent.bridgePath", "OPENCLAW_AGENT_BRIDGE_PATH")
	_ = v.BindEnv("agent.apiUrl", "OPENCLAW_AGENT_API_URL", "OPENCLAW_API_URL")
	_ = v.BindEnv("merge.pollInterval", "OPENCLAW_MERGE_POLL_INTERVAL")
	_ = v.BindEnv("merge.gitTimeout", "OPENCLAW_MERGE_GIT_TIMEOUT")
	_ = v.BindEnv("webhook.secret", "OPENCLAW_WEBHOOK_SECRET")
	_ = v.BindEnv("webhook.teamId", "OPENCLAW_WEBHOOK_TEAM_ID")
	_ = v.BindEnv("storage.busyTimeout", "OPENCLAW_STORAGE_BUSY_TIMEOUT")
	_ = v.BindEnv("server.corsOrigins", "OPENCLAW_SERVER_CORS_ORIGINS")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/openclaw/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.Path == "" {
			errs = append(errs, "storage.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			errs = append(errs, "storage.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, "storage.driver must be one of: sqlite, postgres")
	}

	switch cfg.Bus.Provider {
	case "memory":
	case "nats":
		if cfg.Bus.NATSURL == "" {
			errs = append(errs, "bus.natsUrl is required for the nats provider")
		}
	default:
		errs = append(errs, "bus.provider must be one of: memory, nats")
	}

	if cfg.Dispatcher.MaxConcurrent <= 0 {
		errs = append(errs, "dispatcher.maxConcurrent must be positive")
	}
	if cfg.Agent.TimeoutSeconds <= 0 {
		errs = append(errs, "agent.timeoutSeconds must be positive")
	}
	if cfg.Merge.GitTimeoutSecs <= 0 {
		errs = append(errs, "merge.gitTimeout must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
