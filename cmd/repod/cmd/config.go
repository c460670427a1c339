package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/repod-io/repod/internal/config"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage repod configuration.

Without subcommands, shows the current effective configuration.

Examples:
  repod config              # Show current config
  repod config init         # Create config file with defaults
  repod config path         # Show config file location
  repod config get <key>    # Get a config value
  repod config set <key> <value>  # Set a config value`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		printConfig(cfg)
	},
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.repod/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  repod config init          # Create ~/.repod/config.yaml
  repod config init --local  # Create ./config.yaml
  repod config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	Run:   runConfigPath,
}

// configGetCmd gets a config value.
var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key.

Keys use dot notation to access nested values.

Examples:
  repod config get server.port
  repod config get logging.level
  repod config get fetcher.interval_minutes`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a config value.
var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by key.

Creates the config file if it doesn't exist.
Keys use dot notation to access nested values.

Examples:
  repod config set server.port 9000
  repod config set logging.level debug
  repod config set fetcher.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.repod/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func printConfig(cfg *config.Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Printf("Host:             %s\n", cfg.Server.Host)
	fmt.Printf("Port:             %d\n", cfg.Server.Port)
	fmt.Printf("Watcher Enabled:  %t\n", cfg.Watcher.Enabled)
	fmt.Printf("Debounce (ms):    %d\n", cfg.Watcher.DebounceMS)
	fmt.Printf("Git Command:      %s\n", cfg.Git.Command)
	fmt.Printf("Fetcher Enabled:  %t\n", cfg.Fetcher.Enabled)
	fmt.Printf("Journal Enabled:  %t\n", cfg.Journal.Enabled)
	fmt.Printf("Journal Path:     %s\n", cfg.Journal.Path)
	fmt.Printf("Log Level:        %s\n", cfg.Logging.Level)
	fmt.Printf("Log Format:       %s\n", cfg.Logging.Format)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		if !configInitForce {
			return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
		}
	}

	if err := writeDefaultConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Edit this file to customize repod behavior.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting config dir: %v\n", err)
		os.Exit(1)
	}

	locations := []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/repod/config.yaml",
	}

	fmt.Println("Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, loc, exists)
	}

	fmt.Printf("\nConfig directory: %s\n", configDir)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}

	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")

	var data map[string]interface{}
	if content, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	if err := setNestedValue(data, key, value); err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, configPath)
	return nil
}

func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid key: %s", key)
	}

	switch parts[0] {
	case "server":
		switch parts[1] {
		case "port":
			return cfg.Server.Port, nil
		case "host":
			return cfg.Server.Host, nil
		case "external_url":
			return cfg.Server.ExternalURL, nil
		}
	case "watcher":
		switch parts[1] {
		case "enabled":
			return cfg.Watcher.Enabled, nil
		case "debounce_ms":
			return cfg.Watcher.DebounceMS, nil
		}
	case "git":
		switch parts[1] {
		case "command":
			return cfg.Git.Command, nil
		case "timeout_secs":
			return cfg.Git.TimeoutSecs, nil
		}
	case "fetcher":
		switch parts[1] {
		case "enabled":
			return cfg.Fetcher.Enabled, nil
		case "interval_minutes":
			return cfg.Fetcher.IntervalMinutes, nil
		case "prune":
			return cfg.Fetcher.Prune, nil
		}
	case "journal":
		switch parts[1] {
		case "enabled":
			return cfg.Journal.Enabled, nil
		case "path":
			return cfg.Journal.Path, nil
		case "retention_days":
			return cfg.Journal.RetentionDays, nil
		}
	case "logging":
		switch parts[1] {
		case "level":
			return cfg.Logging.Level, nil
		case "format":
			return cfg.Logging.Format, nil
		}
	case "limits":
		switch parts[1] {
		case "max_repos":
			return cfg.Limits.MaxRepos, nil
		case "max_history_entries":
			return cfg.Limits.MaxHistoryEntries, nil
		case "health_check_mins":
			return cfg.Limits.HealthCheckMins, nil
		}
	}

	return nil, fmt.Errorf("unknown config key: %s", key)
}

func setNestedValue(data map[string]interface{}, key string, value string) error {
	parts := strings.Split(key, ".")

	current := data
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		if nested, ok := current[parts[i]].(map[string]interface{}); ok {
			current = nested
		} else {
			return fmt.Errorf("cannot set nested value: %s is not a map", parts[i])
		}
	}

	current[parts[len(parts)-1]] = coerceValue(value)
	return nil
}

// coerceValue turns string input into a typed YAML value so that
// `repod config set server.port 9000` writes a number, not "9000".
func coerceValue(value string) interface{} {
	var typed interface{}
	if err := yaml.Unmarshal([]byte(value), &typed); err != nil {
		return value
	}
	return typed
}

func writeDefaultConfig(path string) error {
	const defaultConfig = `# repod configuration
# See 'repod config get <key>' for current effective values.

server:
  # Bind address. Keep 127.0.0.1 unless a reverse proxy handles auth.
  host: 127.0.0.1
  port: 7850
  # External URL when running behind a tunnel or proxy.
  # external_url: https://repod.example.com

watcher:
  enabled: true
  # Quiet period after a filesystem event before state is refreshed.
  debounce_ms: 100
  # Extra ignore patterns on top of the built-in defaults.
  # ignore_patterns:
  #   - "*.log"

git:
  command: git
  timeout_secs: 60

fetcher:
  # Periodic background fetch for all registered repositories.
  enabled: false
  interval_minutes: 15
  prune: false

journal:
  # Operation history, stored in SQLite.
  enabled: true
  # path: ~/.repod/journal.db
  retention_days: 30

logging:
  # trace, debug, info, warn, error
  level: info
  # console or json
  format: console

limits:
  max_repos: 100
  max_history_entries: 500
  # Minutes between repository health checks. 0 disables.
  health_check_mins: 5
`

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
