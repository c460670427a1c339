package config

// DefaultWatcherIgnorePatterns is the canonical list of patterns the worktree
// watcher skips. These include both directories and file patterns. Paths
// inside .git are never matched against this list since the daemon watches
// the git directory through its own channel.
//
// Users can override via config.yaml: watcher.ignore_patterns
var DefaultWatcherIgnorePatterns = []string{
	"node_modules",
	"vendor",
	"__pycache__",
	".pytest_cache",
	".mypy_cache",
	".tox",
	".venv",
	"venv",
	".idea",
	".vscode",
	"dist",
	"build",
	"target",
	"coverage",
	".next",
	".nuxt",
	".cache",
	"*.pyc",
	"*.swp",
	"*.swo",
	"*~",
	".DS_Store",
	"Thumbs.db",
}

// IgnorePatternsOrDefault returns the provided list if non-empty, otherwise
// the defaults.
func IgnorePatternsOrDefault(custom []string) []string {
	if len(custom) > 0 {
		return custom
	}
	return DefaultWatcherIgnorePatterns
}
