package gitstatus

import (
	"context"
	"fmt"
	"strings"

	"github.com/repod-io/repod/internal/domain"
)

const logFormat = "%H|%h|%an|%ae|%aI|%ar|%s|%P"

// LogEntry is a single commit in the history.
type LogEntry struct {
	SHA          string   `json:"sha"`
	ShortSHA     string   `json:"short_sha"`
	Author       string   `json:"author"`
	AuthorEmail  string   `json:"author_email"`
	Date         string   `json:"date"`
	RelativeDate string   `json:"relative_date"`
	Subject      string   `json:"subject"`
	ParentSHAs   []string `json:"parent_shas,omitempty"`
	IsMerge      bool     `json:"is_merge"`
}

// LogResult is a page of commit history.
type LogResult struct {
	Commits []LogEntry `json:"commits"`
	HasMore bool       `json:"has_more"`
}

// Log returns a page of commit history, newest first.
func (p *Provider) Log(ctx context.Context, limit, skip int, branch, path string) (*LogResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	args := []string{"log", "--format=" + logFormat, fmt.Sprintf("-n%d", limit+1)}
	if skip > 0 {
		args = append(args, fmt.Sprintf("--skip=%d", skip))
	}
	if branch != "" {
		args = append(args, branch)
	}
	if path != "" {
		args = append(args, "--", path)
	}

	res, err := p.exec.Run(ctx, args...)
	if err != nil {
		return nil, domain.NewGitError("log", err)
	}
	if !res.Success() {
		return nil, domain.NewGitExitError("log", fmt.Errorf("%s", strings.TrimSpace(res.Stderr)), res.ExitCode, res.Stderr)
	}

	commits := parseLog(res.Stdout)
	hasMore := len(commits) > limit
	if hasMore {
		commits = commits[:limit]
	}

	return &LogResult{Commits: commits, HasMore: hasMore}, nil
}

// parseLog parses pipe-delimited log lines in logFormat.
func parseLog(output string) []LogEntry {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	commits := make([]LogEntry, 0, len(lines))

	for _, line := range lines {
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "|", 8)
		if len(parts) < 7 {
			continue
		}

		entry := LogEntry{
			SHA:          parts[0],
			ShortSHA:     parts[1],
			Author:       parts[2],
			AuthorEmail:  parts[3],
			Date:         parts[4],
			RelativeDate: parts[5],
			Subject:      parts[6],
		}
		if len(parts) > 7 && parts[7] != "" {
			entry.ParentSHAs = strings.Split(parts[7], " ")
			entry.IsMerge = len(entry.ParentSHAs) > 1
		}
		commits = append(commits, entry)
	}

	return commits
}
