// Package gitstatus implements working-tree status and diff queries on top
// of the git CLI.
package gitstatus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/adapters/gitexec"
	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/domain/ports"
)

// Provider answers status and diff queries for one repository.
type Provider struct {
	exec *gitexec.Executor
	root string
}

// NewProvider creates a provider over an executor rooted at the repository.
func NewProvider(exec *gitexec.Executor) *Provider {
	return &Provider{exec: exec, root: exec.WorkDir()}
}

// Status returns the porcelain status of the working tree.
func (p *Provider) Status(ctx context.Context) ([]ports.GitFileStatus, error) {
	res, err := p.exec.Run(ctx, "status", "--porcelain", "-uall")
	if err != nil {
		return nil, domain.NewGitError("status", err)
	}
	if !res.Success() {
		return nil, domain.NewGitExitError("status", domain.ErrNotGitRepo, res.ExitCode, res.Stderr)
	}
	return parsePorcelain(res.Stdout), nil
}

// parsePorcelain parses `git status --porcelain` output. Leading spaces in
// the two status columns are significant and must not be trimmed.
func parsePorcelain(output string) []ports.GitFileStatus {
	// Empty slice, not nil, so JSON marshals to [].
	files := make([]ports.GitFileStatus, 0)

	for _, line := range strings.Split(strings.TrimSuffix(output, "\n"), "\n") {
		if len(line) < 4 {
			continue
		}

		staged := line[0]
		unstaged := line[1]
		path := strings.TrimLeft(line[2:], " ")

		// Renames come as "XY old -> new"; report the new path.
		if strings.Contains(path, " -> ") {
			parts := strings.Split(path, " -> ")
			path = parts[len(parts)-1]
		}

		files = append(files, ports.GitFileStatus{
			Path:        path,
			Status:      string([]byte{staged, unstaged}),
			IsStaged:    staged != ' ' && staged != '?',
			IsUntracked: staged == '?' && unstaged == '?',
		})
	}

	return files
}

// Diff returns the unstaged diff for a file.
func (p *Provider) Diff(ctx context.Context, path string) (string, error) {
	res, err := p.exec.Run(ctx, "diff", "--", path)
	if err != nil {
		return "", domain.NewGitError("diff", err)
	}
	if !res.Success() {
		return "", domain.NewGitExitError("diff", fmt.Errorf("diff failed"), res.ExitCode, res.Stderr)
	}
	return res.Stdout, nil
}

// DiffStaged returns the staged diff for a file.
func (p *Provider) DiffStaged(ctx context.Context, path string) (string, error) {
	res, err := p.exec.Run(ctx, "diff", "--cached", "--", path)
	if err != nil {
		return "", domain.NewGitError("diff --cached", err)
	}
	if !res.Success() {
		return "", domain.NewGitExitError("diff --cached", fmt.Errorf("diff failed"), res.ExitCode, res.Stderr)
	}
	return res.Stdout, nil
}

// DiffNewFile synthesizes a diff for an untracked file: all lines added.
func (p *Provider) DiffNewFile(path string) (string, error) {
	fullPath := filepath.Join(p.root, path)

	info, err := os.Stat(fullPath)
	if err != nil {
		return "", domain.ErrRepoNotFound
	}
	if info.IsDir() {
		return "", fmt.Errorf("path is a directory: %s", path)
	}
	if info.Size() > 1024*1024 {
		return fmt.Sprintf("diff --git a/%s b/%s\nnew file mode 100644\n--- /dev/null\n+++ b/%s\n@@ -0,0 +1 @@\n+[File too large to display: %d bytes]\n", path, path, path, info.Size()), nil
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if isBinary(content) {
		return fmt.Sprintf("diff --git a/%s b/%s\nnew file mode 100644\nBinary file %s\n", path, path, path), nil
	}

	lines := strings.Split(string(content), "\n")
	var sb strings.Builder
	fmt.Fprintf(&sb, "diff --git a/%s b/%s\n", path, path)
	sb.WriteString("new file mode 100644\n")
	sb.WriteString("--- /dev/null\n")
	fmt.Fprintf(&sb, "+++ b/%s\n", path)
	fmt.Fprintf(&sb, "@@ -0,0 +1,%d @@\n", len(lines))
	for _, line := range lines {
		sb.WriteString("+")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// isBinary checks the first 8KB for null bytes.
func isBinary(content []byte) bool {
	checkLen := len(content)
	if checkLen > 8192 {
		checkLen = 8192
	}
	for i := 0; i < checkLen; i++ {
		if content[i] == 0 {
			return true
		}
	}
	return false
}

// BranchInfo is the upstream position of the current branch.
type BranchInfo struct {
	Branch   string `json:"branch"`
	Upstream string `json:"upstream,omitempty"`
	Ahead    int    `json:"ahead"`
	Behind   int    `json:"behind"`
}

// BranchInfo returns the current branch with ahead/behind counts against its
// upstream. Missing upstream is not an error; counts stay zero.
func (p *Provider) BranchInfo(ctx context.Context) (BranchInfo, error) {
	var info BranchInfo

	res, err := p.exec.Run(ctx, "branch", "--show-current")
	if err != nil {
		return info, domain.NewGitError("branch", err)
	}
	info.Branch = res.Output()

	res, err = p.exec.Run(ctx, "rev-parse", "--abbrev-ref", "@{upstream}")
	if err != nil || !res.Success() {
		return info, nil
	}
	info.Upstream = res.Output()

	res, err = p.exec.Run(ctx, "rev-list", "--left-right", "--count", "HEAD...@{upstream}")
	if err != nil || !res.Success() {
		return info, nil
	}
	parts := strings.Fields(res.Output())
	if len(parts) == 2 {
		_, _ = fmt.Sscanf(parts[0], "%d", &info.Ahead)
		_, _ = fmt.Sscanf(parts[1], "%d", &info.Behind)
	}
	return info, nil
}

// FileEntry is a file in the summarized status with diff stats.
type FileEntry struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	Additions int    `json:"additions,omitempty"`
	Deletions int    `json:"deletions,omitempty"`
}

// Summary is the categorized status of the working tree.
type Summary struct {
	Branch     string      `json:"branch"`
	Upstream   string      `json:"upstream,omitempty"`
	Ahead      int         `json:"ahead"`
	Behind     int         `json:"behind"`
	Staged     []FileEntry `json:"staged"`
	Unstaged   []FileEntry `json:"unstaged"`
	Untracked  []FileEntry `json:"untracked"`
	Conflicted []FileEntry `json:"conflicted"`
}

// Summarize returns the categorized working-tree status with branch position
// and per-file diff stats.
func (p *Provider) Summarize(ctx context.Context) (*Summary, error) {
	branch, err := p.BranchInfo(ctx)
	if err != nil {
		return nil, err
	}

	files, err := p.Status(ctx)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Branch:     branch.Branch,
		Upstream:   branch.Upstream,
		Ahead:      branch.Ahead,
		Behind:     branch.Behind,
		Staged:     make([]FileEntry, 0),
		Unstaged:   make([]FileEntry, 0),
		Untracked:  make([]FileEntry, 0),
		Conflicted: make([]FileEntry, 0),
	}

	for _, f := range files {
		staged, unstaged := f.Status[0], f.Status[1]
		switch {
		case isConflict(staged, unstaged):
			s.Conflicted = append(s.Conflicted, FileEntry{Path: f.Path, Status: "!"})
		case f.IsUntracked:
			s.Untracked = append(s.Untracked, FileEntry{Path: f.Path, Status: "?"})
		default:
			if staged != ' ' && staged != '?' {
				add, del := p.diffStats(ctx, f.Path, true)
				s.Staged = append(s.Staged, FileEntry{Path: f.Path, Status: string(staged), Additions: add, Deletions: del})
			}
			if unstaged != ' ' && unstaged != '?' {
				add, del := p.diffStats(ctx, f.Path, false)
				s.Unstaged = append(s.Unstaged, FileEntry{Path: f.Path, Status: string(unstaged), Additions: add, Deletions: del})
			}
		}
	}

	return s, nil
}

// isConflict recognizes the porcelain unmerged combinations.
func isConflict(staged, unstaged byte) bool {
	return staged == 'U' || unstaged == 'U' ||
		(staged == 'A' && unstaged == 'A') ||
		(staged == 'D' && unstaged == 'D')
}

// diffStats returns additions and deletions for one file via numstat.
func (p *Provider) diffStats(ctx context.Context, path string, staged bool) (additions, deletions int) {
	args := []string{"diff", "--numstat"}
	if staged {
		args = append(args, "--cached")
	}
	args = append(args, "--", path)

	res, err := p.exec.Run(ctx, args...)
	if err != nil || !res.Success() || res.Stdout == "" {
		return 0, 0
	}

	parts := strings.Fields(res.Output())
	if len(parts) >= 2 {
		_, _ = fmt.Sscanf(parts[0], "%d", &additions)
		_, _ = fmt.Sscanf(parts[1], "%d", &deletions)
	}
	return
}

// ConflictedFiles lists files currently in an unmerged state.
func (p *Provider) ConflictedFiles(ctx context.Context) []string {
	res, err := p.exec.Run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil || !res.Success() {
		log.Debug().Err(err).Msg("conflicted files query failed")
		return nil
	}
	return res.Lines()
}
