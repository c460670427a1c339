package cmd

import (
	"testing"

	"github.com/repod-io/repod/internal/config"
)

func TestGetConfigValue(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		key  string
		want interface{}
	}{
		{"server.port", 7850},
		{"server.host", "127.0.0.1"},
		{"watcher.enabled", true},
		{"watcher.debounce_ms", 100},
		{"git.command", "git"},
		{"fetcher.enabled", false},
		{"logging.level", "info"},
		{"limits.max_repos", 100},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error = %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("getConfigValue(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestGetConfigValueUnknownKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := getConfigValue(cfg, "nope.nothing"); err == nil {
		t.Error("unknown key should return an error")
	}
	if _, err := getConfigValue(cfg, "server"); err == nil {
		t.Error("bare section key should return an error")
	}
}

func TestSetNestedValue(t *testing.T) {
	data := make(map[string]interface{})

	if err := setNestedValue(data, "server.port", "9000"); err != nil {
		t.Fatalf("setNestedValue() error = %v", err)
	}
	server, ok := data["server"].(map[string]interface{})
	if !ok {
		t.Fatal("server section not created")
	}
	if server["port"] != 9000 {
		t.Errorf("port = %v (%T), want 9000 (int)", server["port"], server["port"])
	}

	if err := setNestedValue(data, "server.host", "0.0.0.0"); err != nil {
		t.Fatalf("setNestedValue() error = %v", err)
	}
	if server["host"] != "0.0.0.0" {
		t.Errorf("host = %v, want 0.0.0.0", server["host"])
	}
}

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		input string
		want  interface{}
	}{
		{"9000", 9000},
		{"true", true},
		{"false", false},
		{"debug", "debug"},
		{"127.0.0.1", "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := coerceValue(tt.input); got != tt.want {
				t.Errorf("coerceValue(%q) = %v (%T), want %v (%T)", tt.input, got, got, tt.want, tt.want)
			}
		})
	}
}
