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
)

// Stage stages the given files for commit.
func (p *Provider) Stage(ctx context.Context, paths []string) error {
	args := append([]string{"add", "--"}, paths...)
	res, err := p.exec.Run(ctx, args...)
	if err != nil {
		return domain.NewGitError("add", err)
	}
	if !res.Success() {
		return domain.NewGitExitError("add", fmt.Errorf("%s", strings.TrimSpace(res.Stderr)), res.ExitCode, res.Stderr)
	}
	log.Info().Strs("paths", paths).Msg("staged files")
	return nil
}

// Unstage removes files from the staging area. Before the first commit there
// is no HEAD to reset against, so `rm --cached` is used instead.
func (p *Provider) Unstage(ctx context.Context, paths []string) error {
	headRes, err := p.exec.Run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return domain.NewGitError("rev-parse", err)
	}
	headExists := headRes.Success()

	var args []string
	if headExists {
		args = append([]string{"reset", "HEAD", "--"}, paths...)
	} else {
		args = append([]string{"rm", "--cached", "-r", "--"}, paths...)
	}

	res, err := p.exec.Run(ctx, args...)
	if err != nil {
		return domain.NewGitError(args[0], err)
	}
	if !res.Success() {
		return domain.NewGitExitError(args[0], fmt.Errorf("%s", strings.TrimSpace(res.Stderr)), res.ExitCode, res.Stderr)
	}
	log.Info().Strs("paths", paths).Bool("head_exists", headExists).Msg("unstaged files")
	return nil
}

// Discard drops uncommitted changes: staged files are reset first, tracked
// modifications checked out, untracked files deleted from disk.
func (p *Provider) Discard(ctx context.Context, paths []string) error {
	status, err := p.Status(ctx)
	if err != nil {
		return err
	}

	byPath := make(map[string]string, len(status))
	for _, f := range status {
		byPath[f.Path] = f.Status
	}

	var tracked, untracked, staged []string
	for _, path := range paths {
		st, ok := byPath[path]
		if !ok {
			continue // already clean or unknown path
		}

		indexStatus, worktreeStatus := st[0], st[1]
		switch {
		case st == "??":
			untracked = append(untracked, path)
		case indexStatus != ' ' && indexStatus != '?':
			staged = append(staged, path)
			if worktreeStatus != ' ' {
				tracked = append(tracked, path)
			}
		case worktreeStatus != ' ':
			tracked = append(tracked, path)
		}
	}

	var failures []string

	if len(staged) > 0 {
		res, err := p.exec.Run(ctx, append([]string{"reset", "HEAD", "--"}, staged...)...)
		if err != nil || !res.Success() {
			failures = append(failures, fmt.Sprintf("unstage failed: %s", resultError(res, err)))
		}
	}

	allTracked := append(tracked, staged...)
	if len(allTracked) > 0 {
		res, err := p.exec.Run(ctx, append([]string{"checkout", "--"}, allTracked...)...)
		if err != nil || !res.Success() {
			failures = append(failures, fmt.Sprintf("checkout failed: %s", resultError(res, err)))
		}
	}

	for _, path := range untracked {
		if err := os.Remove(filepath.Join(p.root, path)); err != nil {
			failures = append(failures, fmt.Sprintf("delete %s failed: %v", path, err))
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("discard errors: %s", strings.Join(failures, "; "))
	}
	log.Info().Strs("paths", paths).Msg("discarded changes")
	return nil
}

// CommitResult is the outcome of a commit.
type CommitResult struct {
	Success        bool   `json:"success"`
	SHA            string `json:"sha,omitempty"`
	Message        string `json:"message,omitempty"`
	FilesCommitted int    `json:"files_committed,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Commit commits the currently staged changes.
func (p *Provider) Commit(ctx context.Context, message string) (*CommitResult, error) {
	res, err := p.exec.Run(ctx, "diff", "--cached", "--name-only")
	if err != nil {
		return nil, domain.NewGitError("diff --cached", err)
	}
	stagedFiles := res.Lines()
	if len(stagedFiles) == 0 {
		return &CommitResult{Success: false, Error: "Nothing to commit (no staged changes)"}, nil
	}

	res, err = p.exec.Run(ctx, "commit", "-m", message)
	if err != nil {
		return nil, domain.NewGitError("commit", err)
	}
	if !res.Success() {
		return &CommitResult{Success: false, Error: fmt.Sprintf("Commit failed: %s", strings.TrimSpace(res.Stderr))}, nil
	}

	shaRes, _ := p.exec.Run(ctx, "rev-parse", "--short", "HEAD")
	sha := ""
	if shaRes != nil {
		sha = shaRes.Output()
	}

	log.Info().Str("sha", sha).Int("files", len(stagedFiles)).Msg("committed changes")

	return &CommitResult{
		Success:        true,
		SHA:            sha,
		FilesCommitted: len(stagedFiles),
		Message:        fmt.Sprintf("Committed: %s", firstLine(message, 50)),
	}, nil
}

// CheckoutResult is the outcome of a branch switch.
type CheckoutResult struct {
	Success    bool   `json:"success"`
	Branch     string `json:"branch,omitempty"`
	FromBranch string `json:"from_branch,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Checkout switches to a branch, optionally creating it.
func (p *Provider) Checkout(ctx context.Context, branch string, create bool) (*CheckoutResult, error) {
	from, err := p.BranchInfo(ctx)
	if err != nil {
		return nil, err
	}

	args := []string{"checkout"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, branch)

	res, err := p.exec.Run(ctx, args...)
	if err != nil {
		return nil, domain.NewGitError("checkout", err)
	}
	if !res.Success() {
		errMsg := strings.TrimSpace(res.Stderr)
		switch {
		case strings.Contains(errMsg, "Your local changes") || strings.Contains(errMsg, "uncommitted changes"):
			return &CheckoutResult{Success: false, Error: "Cannot switch branches: you have uncommitted changes"}, nil
		case strings.Contains(errMsg, "already exists"):
			return &CheckoutResult{Success: false, Error: fmt.Sprintf("Branch %q already exists", branch)}, nil
		default:
			return &CheckoutResult{Success: false, Error: fmt.Sprintf("Checkout failed: %s", errMsg)}, nil
		}
	}

	action := "Switched to"
	if create {
		action = "Created and switched to"
	}
	log.Info().Str("branch", branch).Str("from", from.Branch).Bool("created", create).Msg("checkout branch")

	return &CheckoutResult{
		Success:    true,
		Branch:     branch,
		FromBranch: from.Branch,
		Message:    fmt.Sprintf("%s branch %q", action, branch),
	}, nil
}

// resultError formats the useful part of a failed invocation.
func resultError(res *gitexec.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	return strings.TrimSpace(res.Stderr)
}

// firstLine truncates a commit message for display.
func firstLine(s string, maxLen int) string {
	if idx := strings.Index(s, "\n"); idx > 0 {
		s = s[:idx]
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
