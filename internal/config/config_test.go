package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7850 {
		t.Errorf("default Port = %d, want 7850", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("default Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if !cfg.Watcher.Enabled {
		t.Error("default Watcher.Enabled should be true")
	}
	if cfg.Watcher.DebounceMS != 100 {
		t.Errorf("default DebounceMS = %d, want 100", cfg.Watcher.DebounceMS)
	}
	if cfg.Git.Command != "git" {
		t.Errorf("default Git.Command = %s, want git", cfg.Git.Command)
	}
	if cfg.Git.TimeoutSecs != 60 {
		t.Errorf("default TimeoutSecs = %d, want 60", cfg.Git.TimeoutSecs)
	}
	if cfg.Fetcher.Enabled {
		t.Error("default Fetcher.Enabled should be false")
	}
	if !cfg.Journal.Enabled {
		t.Error("default Journal.Enabled should be true")
	}
	if cfg.Journal.Path == "" {
		t.Error("journal path should be filled in by post-processing")
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := t.TempDir()

	configContent := `
server:
  port: 9000
  host: "0.0.0.0"

watcher:
  enabled: false
  debounce_ms: 200

git:
  command: "/usr/local/bin/git"
  timeout_secs: 120

fetcher:
  enabled: true
  interval_minutes: 5
  prune: true

journal:
  path: "` + filepath.Join(tempDir, "journal.db") + `"
  retention_days: 7

logging:
  level: debug
  format: json
`
	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Watcher.Enabled {
		t.Error("Watcher.Enabled should be false")
	}
	if cfg.Watcher.DebounceMS != 200 {
		t.Errorf("DebounceMS = %d, want 200", cfg.Watcher.DebounceMS)
	}
	if cfg.Git.Command != "/usr/local/bin/git" {
		t.Errorf("Git.Command = %s, want /usr/local/bin/git", cfg.Git.Command)
	}
	if !cfg.Fetcher.Enabled {
		t.Error("Fetcher.Enabled should be true")
	}
	if cfg.Fetcher.IntervalMinutes != 5 {
		t.Errorf("IntervalMinutes = %d, want 5", cfg.Fetcher.IntervalMinutes)
	}
	if cfg.Journal.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", cfg.Journal.RetentionDays)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REPOD_SERVER_PORT", "9123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9123 {
		t.Fatalf("Server.Port = %d, want 9123", cfg.Server.Port)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	tempDir := t.TempDir()

	configContent := `
server:
  port: 99999
`
	configPath := filepath.Join(tempDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("expected validation error for out-of-range port")
	}
}

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if dir == "" {
		t.Error("GetConfigDir() returned empty string")
	}
	if filepath.Base(dir) != ".repod" {
		t.Errorf("GetConfigDir() = %s, want to end with .repod", dir)
	}
}

func TestIgnorePatternsOrDefault(t *testing.T) {
	if got := IgnorePatternsOrDefault(nil); len(got) != len(DefaultWatcherIgnorePatterns) {
		t.Errorf("expected defaults for empty input, got %d patterns", len(got))
	}
	custom := []string{"*.tmp"}
	if got := IgnorePatternsOrDefault(custom); len(got) != 1 || got[0] != "*.tmp" {
		t.Errorf("expected custom patterns, got %v", got)
	}
}
