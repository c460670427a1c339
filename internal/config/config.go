// Package config handles configuration management for repod.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Watcher WatcherConfig `mapstructure:"watcher"`
	Git     GitConfig     `mapstructure:"git"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Journal JournalConfig `mapstructure:"journal"`
	Logging LoggingConfig `mapstructure:"logging"`
	Limits  LimitsConfig  `mapstructure:"limits"`
}

// ServerConfig holds HTTP/WebSocket server configuration. Both surfaces are
// served on the same port; WebSocket clients connect on /ws.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	Host        string `mapstructure:"host"`
	ExternalURL string `mapstructure:"external_url"` // Optional: public URL (e.g., behind a tunnel)
}

// WatcherConfig holds file watcher configuration.
type WatcherConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	DebounceMS     int      `mapstructure:"debounce_ms"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
}

// GitConfig holds git executable configuration.
type GitConfig struct {
	Command     string `mapstructure:"command"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// FetcherConfig holds background fetch configuration.
type FetcherConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	Prune           bool `mapstructure:"prune"`
}

// JournalConfig holds operation journal configuration.
type JournalConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LimitsConfig holds various limits.
type LimitsConfig struct {
	MaxRepos          int `mapstructure:"max_repos"`
	MaxHistoryEntries int `mapstructure:"max_history_entries"`
	HealthCheckMins   int `mapstructure:"health_check_mins"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.repod")
		v.AddConfigPath("/etc/repod")
	}

	v.SetEnvPrefix("REPOD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 7850)
	v.SetDefault("server.host", "127.0.0.1")

	// Watcher defaults - uses centralized patterns from defaults.go
	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.debounce_ms", 100)
	v.SetDefault("watcher.ignore_patterns", DefaultWatcherIgnorePatterns)

	// Git defaults
	v.SetDefault("git.command", "git")
	v.SetDefault("git.timeout_secs", 60)

	// Fetcher defaults
	v.SetDefault("fetcher.enabled", false)
	v.SetDefault("fetcher.interval_minutes", 15)
	v.SetDefault("fetcher.prune", false)

	// Journal defaults
	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")
	v.SetDefault("journal.retention_days", 30)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// Limits defaults
	v.SetDefault("limits.max_repos", 100)
	v.SetDefault("limits.max_history_entries", 500)
	v.SetDefault("limits.health_check_mins", 5)
}

// postProcess applies post-processing to configuration.
func postProcess(cfg *Config) error {
	if cfg.Journal.Path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve journal path: %w", err)
		}
		cfg.Journal.Path = filepath.Join(dir, "journal.db")
	}

	absPath, err := filepath.Abs(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve journal path: %w", err)
	}
	cfg.Journal.Path = absPath

	return nil
}

// GetConfigDir returns the user config directory for repod.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".repod"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
