// Package config handles configuration loading and validation for taskrelay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/colonyops/taskrelay/internal/core/styles"
	"gopkg.in/yaml.v3"
)

// DefaultTimezone is the zone used for timestamps without an offset.
const DefaultTimezone = "Europe/Madrid"

// DefaultAlertTemplate renders one consolidated urgency alert.
const DefaultAlertTemplate = `{{- if .Critical }}URGENT, due within the hour:
{{ range .Critical }}- [{{ .ID }}] {{ .Title }} (due {{ clock .Due }}, {{ until $.Now .Due }})
{{ end }}{{ end }}
{{- if .Warning }}Coming up:
{{ range .Warning }}- [{{ .ID }}] {{ .Title }} (due {{ clock .Due }}, {{ until $.Now .Due }})
{{ end }}{{ end }}`

// DefaultDigestTemplate renders the periodic summary of open tasks.
const DefaultDigestTemplate = `{{- if not .Groups }}No active tasks.{{ else }}Task summary, {{ clock .Now }}
{{ range .Groups }}
{{ .Label }}:
{{ range .Tasks }}- [{{ .ID }}] {{ .Title }}{{ if .HasDue }} (due {{ clock .Due }}){{ end }}
{{ end }}{{ end }}{{ end }}`

// Config holds the application configuration.
type Config struct {
	Timezone  string          `yaml:"timezone"`
	Theme     string          `yaml:"theme"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Remote    RemoteConfig    `yaml:"remote"`
	Reminders RemindersConfig `yaml:"reminders"`
	Notify    NotifyConfig    `yaml:"notify"`
	Sync      SyncConfig      `yaml:"sync"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// DatabaseConfig tunes the SQLite connection pool.
type DatabaseConfig struct {
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

// ServerConfig configures the sync server started by `serve`.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Token           string        `yaml:"token"` // empty disables auth
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RemoteConfig points a client at a sync server.
type RemoteConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// RemindersConfig configures the scheduler ticks and urgency windows.
type RemindersConfig struct {
	AlertInterval   time.Duration `yaml:"alert_interval"`
	DigestInterval  time.Duration `yaml:"digest_interval"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	CriticalWindow  time.Duration `yaml:"critical_window"`
	WarningWindow   time.Duration `yaml:"warning_window"`
	WarningCooldown time.Duration `yaml:"warning_cooldown"`
}

// NotifyConfig selects and tunes the notification sink.
type NotifyConfig struct {
	WebhookURL string          `yaml:"webhook_url"` // empty logs notifications instead
	Timeout    time.Duration   `yaml:"timeout"`
	Templates  TemplatesConfig `yaml:"templates"`
}

// TemplatesConfig overrides the message formats.
type TemplatesConfig struct {
	Alert  string `yaml:"alert"`
	Digest string `yaml:"digest"`
}

// SyncConfig configures client-side replication.
type SyncConfig struct {
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timezone: DefaultTimezone,
		Theme:    styles.DefaultTheme,
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			BusyTimeout:  5 * time.Second,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:5000",
			ShutdownTimeout: 10 * time.Second,
		},
		Remote: RemoteConfig{
			Timeout: 15 * time.Second,
		},
		Reminders: RemindersConfig{
			AlertInterval:   15 * time.Minute,
			DigestInterval:  2 * time.Hour,
			PollInterval:    5 * time.Second,
			CriticalWindow:  time.Hour,
			WarningWindow:   4 * time.Hour,
			WarningCooldown: time.Hour,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
			Templates: TemplatesConfig{
				Alert:  DefaultAlertTemplate,
				Digest: DefaultDigestTemplate,
			},
		},
		Sync: SyncConfig{
			WatchDebounce: 2 * time.Second,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
// Token fields may reference environment variables as $VAR or ${VAR}.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.Server.Token = os.ExpandEnv(cfg.Server.Token)
	cfg.Remote.Token = os.ExpandEnv(cfg.Remote.Token)

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	setString(&c.Timezone, d.Timezone)
	setString(&c.Theme, d.Theme)
	setInt(&c.Database.MaxOpenConns, d.Database.MaxOpenConns)
	setInt(&c.Database.MaxIdleConns, d.Database.MaxIdleConns)
	setDuration(&c.Database.BusyTimeout, d.Database.BusyTimeout)
	setString(&c.Server.Addr, d.Server.Addr)
	setDuration(&c.Server.ShutdownTimeout, d.Server.ShutdownTimeout)
	setDuration(&c.Remote.Timeout, d.Remote.Timeout)
	setDuration(&c.Reminders.AlertInterval, d.Reminders.AlertInterval)
	setDuration(&c.Reminders.DigestInterval, d.Reminders.DigestInterval)
	setDuration(&c.Reminders.PollInterval, d.Reminders.PollInterval)
	setDuration(&c.Reminders.CriticalWindow, d.Reminders.CriticalWindow)
	setDuration(&c.Reminders.WarningWindow, d.Reminders.WarningWindow)
	setDuration(&c.Reminders.WarningCooldown, d.Reminders.WarningCooldown)
	setDuration(&c.Notify.Timeout, d.Notify.Timeout)
	setString(&c.Notify.Templates.Alert, d.Notify.Templates.Alert)
	setString(&c.Notify.Templates.Digest, d.Notify.Templates.Digest)
	setDuration(&c.Sync.WatchDebounce, d.Sync.WatchDebounce)
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setDuration(v *time.Duration, def time.Duration) {
	if *v == 0 {
		*v = def
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		return fmt.Errorf("unknown theme %q, available: %s", c.Theme, strings.Join(styles.ThemeNames(), ", "))
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}

	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}

	positive := []struct {
		name string
		v    time.Duration
	}{
		{"database.busy_timeout", c.Database.BusyTimeout},
		{"server.shutdown_timeout", c.Server.ShutdownTimeout},
		{"remote.timeout", c.Remote.Timeout},
		{"reminders.alert_interval", c.Reminders.AlertInterval},
		{"reminders.digest_interval", c.Reminders.DigestInterval},
		{"reminders.poll_interval", c.Reminders.PollInterval},
		{"reminders.critical_window", c.Reminders.CriticalWindow},
		{"reminders.warning_window", c.Reminders.WarningWindow},
		{"reminders.warning_cooldown", c.Reminders.WarningCooldown},
		{"notify.timeout", c.Notify.Timeout},
		{"sync.watch_debounce", c.Sync.WatchDebounce},
	}
	for _, p := range positive {
		if p.v < 0 {
			return fmt.Errorf("%s must be positive, got %s", p.name, p.v)
		}
	}

	if c.Reminders.CriticalWindow >= c.Reminders.WarningWindow {
		return fmt.Errorf("reminders.critical_window (%s) must be shorter than reminders.warning_window (%s)",
			c.Reminders.CriticalWindow, c.Reminders.WarningWindow)
	}

	return nil
}

// Location resolves Timezone, falling back to UTC when the zone is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
