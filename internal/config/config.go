// Package config loads and writes clinsync configuration. Settings live in
// config.yaml inside the data directory and may be overridden per-setting
// with CLINSYNC_* environment variables; nested keys map dots to
// underscores (CLINSYNC_REMOTE_DIR, CLINSYNC_ARCHIVE_OLDER_THAN_DAYS).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/clinsync/clinsync/internal/archive"
	"github.com/clinsync/clinsync/internal/clinic"
)

// FileName is the config file name inside the data directory.
const FileName = "config.yaml"

// Config is the full clinsync configuration.
type Config struct {
	// RemoteDir is the directory-backed remote (a synced network share).
	RemoteDir string `yaml:"remote_dir" mapstructure:"remote_dir"`

	// ProbeAddr is the host:port the connectivity checker dials. Empty
	// means reachability of RemoteDir decides online state.
	ProbeAddr string `yaml:"probe_addr,omitempty" mapstructure:"probe_addr"`

	// DashboardPort serves the websocket dashboard.
	DashboardPort int `yaml:"dashboard_port" mapstructure:"dashboard_port"`

	// MaxErrorLog bounds the in-memory error ledger.
	MaxErrorLog int `yaml:"max_error_log" mapstructure:"max_error_log"`

	// SyncDebounce coalesces bursts of remote file changes in the daemon.
	SyncDebounce time.Duration `yaml:"sync_debounce" mapstructure:"sync_debounce"`

	// ArchiveInterval is how often the daemon runs the archiver.
	ArchiveInterval time.Duration `yaml:"archive_interval" mapstructure:"archive_interval"`

	Archive archive.Settings `yaml:"archive" mapstructure:"archive"`
	Hours   clinic.Hours     `yaml:"hours" mapstructure:"hours"`

	Log LogConfig `yaml:"log" mapstructure:"log"`
}

// LogConfig controls the optional rotating log file.
type LogConfig struct {
	// File is the log file path. Empty logs to stderr only.
	File       string `yaml:"file,omitempty" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		RemoteDir:       "",
		DashboardPort:   8372,
		MaxErrorLog:     100,
		SyncDebounce:    2 * time.Second,
		ArchiveInterval: time.Hour,
		Archive:         archive.DefaultSettings(),
		Hours:           clinic.DefaultHours(),
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.DashboardPort < 0 || c.DashboardPort > 65535 {
		return fmt.Errorf("invalid dashboard_port: %d", c.DashboardPort)
	}
	if c.MaxErrorLog < 0 {
		return fmt.Errorf("max_error_log must not be negative (got %d)", c.MaxErrorLog)
	}
	if c.SyncDebounce < 0 {
		return fmt.Errorf("sync_debounce must not be negative (got %v)", c.SyncDebounce)
	}
	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("invalid archive settings: %w", err)
	}
	if err := c.Hours.Validate(); err != nil {
		return fmt.Errorf("invalid hours: %w", err)
	}
	return nil
}

// Load reads the configuration from dataDir/config.yaml, applying defaults
// for missing settings and CLINSYNC_* environment overrides on top. A
// missing file is not an error; it yields the defaults.
func Load(dataDir string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CLINSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(dataDir, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("remote_dir", def.RemoteDir)
	v.SetDefault("probe_addr", def.ProbeAddr)
	v.SetDefault("dashboard_port", def.DashboardPort)
	v.SetDefault("max_error_log", def.MaxErrorLog)
	v.SetDefault("sync_debounce", def.SyncDebounce)
	v.SetDefault("archive_interval", def.ArchiveInterval)
	v.SetDefault("archive.enabled", def.Archive.Enabled)
	v.SetDefault("archive.older_than_days", def.Archive.OlderThanDays)
	v.SetDefault("archive.include_types", def.Archive.IncludeTypes)
	v.SetDefault("archive.max_archived_items", def.Archive.MaxArchivedItems)
	v.SetDefault("hours.open", def.Hours.Open)
	v.SetDefault("hours.close", def.Hours.Close)
	v.SetDefault("hours.slot_minutes", def.Hours.SlotMinutes)
	v.SetDefault("log.file", def.Log.File)
	v.SetDefault("log.max_size_mb", def.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", def.Log.MaxBackups)
	v.SetDefault("log.max_age_days", def.Log.MaxAgeDays)
}

// Write persists the configuration as YAML in dataDir.
func Write(dataDir string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dataDir, FileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize config: %w", err)
	}
	return nil
}
