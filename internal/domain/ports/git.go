package ports

import "context"

// GitFileStatus represents the status of a file in git.
type GitFileStatus struct {
	Path        string `json:"path"`
	Status      string `json:"status"` // two-char porcelain code: "M ", " M", "??", ...
	IsStaged    bool   `json:"is_staged"`
	IsUntracked bool   `json:"is_untracked"`
}

// StatusProvider defines the contract for working-tree status queries.
type StatusProvider interface {
	// Status returns the current porcelain status.
	Status(ctx context.Context) ([]GitFileStatus, error)

	// Diff returns the unstaged diff for a specific file.
	Diff(ctx context.Context, path string) (string, error)

	// DiffStaged returns the staged diff for a specific file.
	DiffStaged(ctx context.Context, path string) (string, error)
}
