package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// RepoDefinition represents a registered repository.
type RepoDefinition struct {
	ID           string    `mapstructure:"id" yaml:"id"`
	Name         string    `mapstructure:"name" yaml:"name"`
	Path         string    `mapstructure:"path" yaml:"path"`
	AutoFetch    bool      `mapstructure:"auto_fetch" yaml:"auto_fetch"`
	CreatedAt    time.Time `mapstructure:"created_at" yaml:"created_at"`
	LastAccessed time.Time `mapstructure:"last_accessed" yaml:"last_accessed"`
}

// ReposConfig represents the complete repos.yaml file.
type ReposConfig struct {
	Repos []RepoDefinition `mapstructure:"repos" yaml:"repos"`
}

// DefaultReposPath returns the default path for repos.yaml.
func DefaultReposPath() string {
	configDir, err := GetConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".repod", "repos.yaml")
	}
	return filepath.Join(configDir, "repos.yaml")
}

// LoadRepos loads the repository registry from repos.yaml. A missing file is
// created with an empty registry.
func LoadRepos(configPath string) (*ReposConfig, error) {
	v := viper.New()

	if configPath == "" {
		configPath = DefaultReposPath()
	}
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if notFound || os.IsNotExist(err) {
			cfg := &ReposConfig{Repos: []RepoDefinition{}}
			if err := SaveRepos(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to create default repos config: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading repos config: %w", err)
	}

	var cfg ReposConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing repos config: %w", err)
	}

	if err := postProcessRepos(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateRepos(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SaveRepos saves the repository registry.
func SaveRepos(configPath string, cfg *ReposConfig) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal repos config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write repos config: %w", err)
	}

	return nil
}

// Add appends a new repository definition and returns it. Name defaults to
// the directory base name.
func (c *ReposConfig) Add(name, path string) (RepoDefinition, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return RepoDefinition{}, fmt.Errorf("failed to resolve repo path: %w", err)
	}

	for _, r := range c.Repos {
		if r.Path == absPath {
			return RepoDefinition{}, fmt.Errorf("path already registered as %s: %s", r.ID, absPath)
		}
	}

	if name == "" {
		name = filepath.Base(absPath)
	}

	def := RepoDefinition{
		ID:           newRepoID(),
		Name:         name,
		Path:         absPath,
		CreatedAt:    time.Now(),
		LastAccessed: time.Now(),
	}
	c.Repos = append(c.Repos, def)
	return def, nil
}

// Remove deletes a repository definition by ID. Returns false if not found.
func (c *ReposConfig) Remove(id string) bool {
	for i, r := range c.Repos {
		if r.ID == id {
			c.Repos = append(c.Repos[:i], c.Repos[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the definition with the given ID, or nil.
func (c *ReposConfig) Find(id string) *RepoDefinition {
	for i := range c.Repos {
		if c.Repos[i].ID == id {
			return &c.Repos[i]
		}
	}
	return nil
}

func newRepoID() string {
	return "repo-" + uuid.New().String()[:8]
}

// postProcessRepos generates missing IDs, resolves paths, and fills
// timestamps.
func postProcessRepos(cfg *ReposConfig) error {
	for i := range cfg.Repos {
		if cfg.Repos[i].ID == "" {
			cfg.Repos[i].ID = newRepoID()
		}

		absPath, err := filepath.Abs(cfg.Repos[i].Path)
		if err != nil {
			return fmt.Errorf("failed to resolve repo path: %w", err)
		}
		cfg.Repos[i].Path = absPath

		if cfg.Repos[i].Name == "" {
			cfg.Repos[i].Name = filepath.Base(absPath)
		}
		if cfg.Repos[i].CreatedAt.IsZero() {
			cfg.Repos[i].CreatedAt = time.Now()
		}
		if cfg.Repos[i].LastAccessed.IsZero() {
			cfg.Repos[i].LastAccessed = time.Now()
		}
	}
	return nil
}

// ValidateRepos validates the repository registry.
func ValidateRepos(cfg *ReposConfig) error {
	seenIDs := make(map[string]bool)
	seenPaths := make(map[string]string)

	for _, r := range cfg.Repos {
		if r.ID == "" {
			return fmt.Errorf("repo entry %q has no id", r.Name)
		}
		if seenIDs[r.ID] {
			return fmt.Errorf("duplicate repo id: %s", r.ID)
		}
		seenIDs[r.ID] = true

		if r.Path == "" {
			return fmt.Errorf("repo %s has no path", r.ID)
		}
		if prev, ok := seenPaths[r.Path]; ok {
			return fmt.Errorf("repo %s and %s share the same path: %s", prev, r.ID, r.Path)
		}
		seenPaths[r.Path] = r.ID
	}

	return nil
}
