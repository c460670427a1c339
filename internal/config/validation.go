package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateWatcher(&cfg.Watcher); err != nil {
		return err
	}
	if err := validateGit(&cfg.Git); err != nil {
		return err
	}
	if err := validateFetcher(&cfg.Fetcher); err != nil {
		return err
	}
	if err := validateJournal(&cfg.Journal); err != nil {
		return err
	}
	if err := validateLimits(&cfg.Limits); err != nil {
		return err
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}
	if cfg.ExternalURL != "" {
		if err := validateExternalURL(cfg.ExternalURL, "server.external_url", []string{"http", "https"}); err != nil {
			return err
		}
	}
	return nil
}

// validateExternalURL validates that a URL is well-formed and uses an allowed scheme.
func validateExternalURL(rawURL, fieldName string, allowedSchemes []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", fieldName, err)
	}

	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", fieldName)
	}

	schemeValid := false
	for _, scheme := range allowedSchemes {
		if strings.EqualFold(parsed.Scheme, scheme) {
			schemeValid = true
			break
		}
	}
	if !schemeValid {
		return fmt.Errorf("%s must use one of these schemes: %s", fieldName, strings.Join(allowedSchemes, ", "))
	}

	return nil
}

func validateWatcher(cfg *WatcherConfig) error {
	if cfg.DebounceMS < 0 {
		return fmt.Errorf("watcher.debounce_ms cannot be negative")
	}
	if cfg.DebounceMS > 10000 {
		return fmt.Errorf("watcher.debounce_ms cannot exceed 10000ms")
	}
	return nil
}

func validateGit(cfg *GitConfig) error {
	if cfg.Command == "" {
		return fmt.Errorf("git.command cannot be empty")
	}
	if cfg.TimeoutSecs < 1 {
		return fmt.Errorf("git.timeout_secs must be at least 1")
	}
	if cfg.TimeoutSecs > 3600 {
		return fmt.Errorf("git.timeout_secs cannot exceed 3600")
	}
	return nil
}

func validateFetcher(cfg *FetcherConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.IntervalMinutes < 1 {
		return fmt.Errorf("fetcher.interval_minutes must be at least 1")
	}
	return nil
}

func validateJournal(cfg *JournalConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Path == "" {
		return fmt.Errorf("journal.path cannot be empty when journal is enabled")
	}
	if cfg.RetentionDays < 1 {
		return fmt.Errorf("journal.retention_days must be at least 1")
	}
	return nil
}

func validateLimits(cfg *LimitsConfig) error {
	if cfg.MaxRepos < 1 {
		return fmt.Errorf("limits.max_repos must be at least 1")
	}
	if cfg.MaxHistoryEntries < 10 {
		return fmt.Errorf("limits.max_history_entries must be at least 10")
	}
	if cfg.HealthCheckMins < 0 {
		return fmt.Errorf("limits.health_check_mins cannot be negative")
	}
	return nil
}
