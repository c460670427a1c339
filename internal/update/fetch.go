// Package update implements the fetch and update (pull) workflows on top of
// the git executor: per-remote fetches with result aggregation, and a
// config-driven merge-or-rebase update of the current branch.
package update

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/adapters/gitexec"
	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
	"github.com/repod-io/repod/internal/repo"
)

// FetchResult is the outcome of fetching one remote.
type FetchResult struct {
	Remote      string   `json:"remote"`
	Success     bool     `json:"success"`
	UpdatedRefs []string `json:"updated_refs,omitempty"`
	PrunedRefs  []string `json:"pruned_refs,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// FetchOptions controls a fetch run.
type FetchOptions struct {
	// Remotes to fetch. Empty means the tracked remote of the current
	// branch, falling back to every configured remote.
	Remotes []string
	Prune   bool
}

// Fetcher runs git fetch against a repository's remotes.
type Fetcher struct {
	repo *repo.Repository
	hub  ports.EventHub
}

// NewFetcher creates a fetcher for the repository.
func NewFetcher(r *repo.Repository, hub ports.EventHub) *Fetcher {
	return &Fetcher{repo: r, hub: hub}
}

// Fetch fetches the selected remotes one by one. Per-remote failures are
// collected in the results, not short-circuited; the returned error is only
// set when no remote could be resolved at all.
func (f *Fetcher) Fetch(ctx context.Context, opts FetchOptions) ([]FetchResult, error) {
	remotes := opts.Remotes
	if len(remotes) == 0 {
		remotes = f.defaultRemotes()
	}
	if len(remotes) == 0 {
		return nil, domain.ErrNoTrackedBranch
	}

	results := make([]FetchResult, 0, len(remotes))
	for _, remote := range remotes {
		res := f.fetchOne(ctx, remote, opts.Prune)
		results = append(results, res)

		if f.hub != nil {
			f.hub.Publish(events.NewFetchCompletedEvent(f.repo.ID, remote, res.Success, res.UpdatedRefs, res.Error))
		}
	}

	// Converge the snapshot now instead of waiting for the watcher.
	if err := f.repo.Reread(); err != nil {
		log.Warn().Err(err).Str("repo_id", f.repo.ID).Msg("snapshot reread after fetch failed")
	}

	return results, nil
}

// defaultRemotes picks the tracked remote of the current branch, else all
// configured remotes.
func (f *Fetcher) defaultRemotes() []string {
	info := f.repo.Info()
	if info.Branch != "" {
		if t, ok := info.TrackingFor(info.Branch); ok && t.Remote != "." {
			return []string{t.Remote}
		}
	}
	return info.RemoteNames()
}

func (f *Fetcher) fetchOne(ctx context.Context, remote string, prune bool) FetchResult {
	args := []string{"fetch"}
	if prune {
		args = append(args, "--prune")
	}
	args = append(args, remote)

	result := FetchResult{Remote: remote}

	var refLines []string
	res, err := f.repo.Exec().RunWith(ctx, gitexec.Options{
		OnStderr: func(line string) {
			refLines = append(refLines, line)
		},
	}, args...)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if !res.Success() {
		kind := gitexec.ClassifyFailure(res)
		log.Warn().
			Str("repo_id", f.repo.ID).
			Str("remote", remote).
			Int("exit_code", res.ExitCode).
			Str("failure", kind.String()).
			Msg("fetch failed")
		result.Error = firstNonEmptyLine(res.Stderr)
		return result
	}

	result.Success = true
	result.UpdatedRefs, result.PrunedRefs = parseFetchRefs(refLines)

	log.Info().
		Str("repo_id", f.repo.ID).
		Str("remote", remote).
		Int("updated", len(result.UpdatedRefs)).
		Int("pruned", len(result.PrunedRefs)).
		Msg("fetch completed")

	return result
}

// parseFetchRefs extracts updated and pruned ref names from git fetch
// progress lines, e.g.
//
//	   abc1234..def5678  main       -> origin/main
//	 * [new branch]      feature    -> origin/feature
//	 - [deleted]         (none)     -> origin/stale
func parseFetchRefs(lines []string) (updated, pruned []string) {
	for _, line := range lines {
		idx := strings.Index(line, " -> ")
		if idx < 0 {
			continue
		}
		ref := strings.TrimSpace(line[idx+4:])
		if ref == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "- ") {
			pruned = append(pruned, ref)
		} else {
			updated = append(updated, ref)
		}
	}
	return updated, pruned
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
