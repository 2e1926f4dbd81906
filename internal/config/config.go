// Package config provides configuration types and defaults for agentdesk.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/tracing"
)

// Theme values accepted by ui.theme.
const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"
)

// Config holds all configuration options for agentdesk.
type Config struct {
	Backend BackendConfig   `mapstructure:"backend"`
	Session SessionConfig   `mapstructure:"session"`
	Titles  TitlesConfig    `mapstructure:"titles"`
	Attach  AttachConfig    `mapstructure:"attach"`
	Storage StorageConfig   `mapstructure:"storage"`
	UI      UIConfig        `mapstructure:"ui"`
	Tracing TracingConfig   `mapstructure:"tracing"`
	Flags   map[string]bool `mapstructure:"flags"`
	LogPath string          `mapstructure:"log_path"`
}

// BackendConfig describes how to reach the agent backend.
type BackendConfig struct {
	// URL is the WebSocket endpoint carrying the event channel.
	// Empty runs the front-end against an in-process loopback.
	URL          string        `mapstructure:"url"`
	TitleURL     string        `mapstructure:"title_url"`  // HTTP endpoint for title generation
	AuthToken    string        `mapstructure:"auth_token"` // sent as a bearer token
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SessionConfig holds defaults applied to new sessions.
type SessionConfig struct {
	DefaultCwd     string `mapstructure:"default_cwd"`
	AllowedTools   string `mapstructure:"allowed_tools"` // comma-separated
	RecentCwdLimit int    `mapstructure:"recent_cwd_limit"`
}

// TitlesConfig configures the title cache.
type TitlesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// AttachConfig configures the context attachment pipeline.
type AttachConfig struct {
	MaxFileBytes int64 `mapstructure:"max_file_bytes"`
}

// StorageConfig locates the local database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// UIConfig holds user interface configuration options.
type UIConfig struct {
	Theme         string `mapstructure:"theme"`          // "light", "dark" or "system" (default)
	MarkdownStyle string `mapstructure:"markdown_style"` // glamour style; empty follows the theme
}

// TracingConfig holds distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the trace export backend.
	// Options: "none", "file", "stdout", "otlp"
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for "file" exporter.
	// Default: ~/.config/agentdesk/traces/traces.jsonl
	FilePath string `mapstructure:"file_path"`

	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ProviderConfig converts the tracing section into a tracing.Config.
func (t TracingConfig) ProviderConfig() tracing.Config {
	cfg := tracing.DefaultConfig()
	cfg.Enabled = t.Enabled
	if t.Exporter != "" {
		cfg.Exporter = t.Exporter
	}
	cfg.FilePath = t.FilePath
	if t.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = t.OTLPEndpoint
	}
	cfg.SampleRate = t.SampleRate
	return cfg
}

// ConfigDir returns ~/.config/agentdesk, or "" when the home directory is unknown.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "agentdesk")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "traces", "traces.jsonl")
}

// DefaultDBPath returns the default SQLite database location.
func DefaultDBPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "agentdesk.db")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Backend: BackendConfig{
			WriteTimeout: 10 * time.Second,
		},
		Session: SessionConfig{
			AllowedTools:   "Read,Edit,Bash",
			RecentCwdLimit: 10,
		},
		Titles: TitlesConfig{
			CacheTTL: 30 * time.Minute,
		},
		Attach: AttachConfig{
			MaxFileBytes: 1 << 20,
		},
		Storage: StorageConfig{
			DBPath: DefaultDBPath(),
		},
		UI: UIConfig{
			Theme: ThemeSystem,
		},
		Tracing: TracingConfig{
			Exporter:     "file",
			FilePath:     DefaultTracesFilePath(),
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// ValidTheme reports whether s is an accepted ui.theme value.
func ValidTheme(s string) bool {
	switch s {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Validate checks the whole configuration.
func Validate(cfg Config) error {
	if err := ValidateBackend(cfg.Backend); err != nil {
		return err
	}
	if cfg.Session.RecentCwdLimit <= 0 {
		return fmt.Errorf("session.recent_cwd_limit must be positive, got %d", cfg.Session.RecentCwdLimit)
	}
	if strings.TrimSpace(cfg.Session.AllowedTools) == "" {
		return fmt.Errorf("session.allowed_tools must not be empty")
	}
	if cfg.Titles.CacheTTL < 0 {
		return fmt.Errorf("titles.cache_ttl must not be negative, got %s", cfg.Titles.CacheTTL)
	}
	if cfg.Attach.MaxFileBytes <= 0 {
		return fmt.Errorf("attach.max_file_bytes must be positive, got %d", cfg.Attach.MaxFileBytes)
	}
	if cfg.Storage.DBPath != "" && !filepath.IsAbs(cfg.Storage.DBPath) {
		return fmt.Errorf("storage.db_path must be absolute, got %q", cfg.Storage.DBPath)
	}
	if cfg.UI.Theme != "" && !ValidTheme(cfg.UI.Theme) {
		return fmt.Errorf("ui.theme must be \"light\", \"dark\", or \"system\", got %q", cfg.UI.Theme)
	}
	return ValidateTracing(cfg.Tracing)
}

// ValidateBackend checks the backend URLs and timeouts.
func ValidateBackend(b BackendConfig) error {
	if b.URL != "" {
		u, err := url.Parse(b.URL)
		if err != nil {
			return fmt.Errorf("backend.url: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("backend.url must use ws:// or wss://, got %q", b.URL)
		}
	}
	if b.TitleURL != "" {
		u, err := url.Parse(b.TitleURL)
		if err != nil {
			return fmt.Errorf("backend.title_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("backend.title_url must use http:// or https://, got %q", b.TitleURL)
		}
	}
	if b.WriteTimeout < 0 {
		return fmt.Errorf("backend.write_timeout must not be negative, got %s", b.WriteTimeout)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if tracing.Enabled {
		if tracing.Exporter == "file" && tracing.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# agentdesk configuration

# Agent backend
backend:
  # WebSocket endpoint for session events. Leave empty to run offline.
  # url: wss://agents.example.com/events
  # HTTP endpoint that turns a prompt into a session title.
  # Without it the first line of the prompt is used.
  # title_url: https://agents.example.com/titles
  # auth_token: ""
  write_timeout: 10s

# Session defaults
session:
  # Working directory for new sessions. When empty the most recently used
  # directory is offered instead.
  # default_cwd: /path/to/project
  allowed_tools: Read,Edit,Bash
  recent_cwd_limit: 10

titles:
  cache_ttl: 30m

attach:
  max_file_bytes: 1048576   # Files larger than this are skipped

# storage:
#   db_path: ~/.config/agentdesk/agentdesk.db

ui:
  theme: system   # light, dark, or system
  # markdown_style: dark

# Distributed tracing
# tracing:
#   enabled: false
#   exporter: file                 # none, file, stdout, otlp
#   file_path: ~/.config/agentdesk/traces/traces.jsonl
#   otlp_endpoint: localhost:4317
#   sample_rate: 1.0

# log_path: debug.log
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
