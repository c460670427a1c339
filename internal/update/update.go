package update

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/adapters/gitexec"
	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
	"github.com/repod-io/repod/internal/gitstate"
	"github.com/repod-io/repod/internal/repo"
)

// Outcome is the result category of an update run.
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeNothingToUpdate Outcome = "nothing_to_update"
	OutcomeNoTrackedBranch Outcome = "no_tracked_branch"
	OutcomeConflict        Outcome = "conflict"
	OutcomeLocalChanges    Outcome = "local_changes_would_be_overwritten"
	OutcomeError           Outcome = "error"
)

// Method selects how the local branch incorporates the remote branch.
type Method string

const (
	MethodMerge  Method = "merge"
	MethodRebase Method = "rebase"
)

// Result describes one update run.
type Result struct {
	Outcome          Outcome  `json:"outcome"`
	Method           Method   `json:"method"`
	Target           string   `json:"target,omitempty"` // e.g. origin/main
	ConflictingFiles []string `json:"conflicting_files,omitempty"`
	OverwrittenFiles []string `json:"overwritten_files,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// UpdateOptions controls an update run.
type UpdateOptions struct {
	// FetchFirst fetches the tracked remote before updating.
	FetchFirst bool
	// Method overrides the config-derived merge/rebase choice when set.
	Method Method
}

// Updater brings the current branch up to date with its tracked remote
// branch. The method comes from branch.<name>.rebase / pull.rebase; when the
// config is silent, merge with a fast-forward attempt first.
type Updater struct {
	repo    *repo.Repository
	hub     ports.EventHub
	fetcher *Fetcher
}

// NewUpdater creates an updater for the repository.
func NewUpdater(r *repo.Repository, hub ports.EventHub) *Updater {
	return &Updater{
		repo:    r,
		hub:     hub,
		fetcher: NewFetcher(r, hub),
	}
}

// Update runs the workflow. The returned error covers precondition and
// infrastructure failures; git-level outcomes (conflicts, overwritten local
// changes) land in the Result instead.
func (u *Updater) Update(ctx context.Context, opts UpdateOptions) (*Result, error) {
	info := u.repo.Info()

	switch info.State {
	case gitstate.StateMerging, gitstate.StateRebasing, gitstate.StateGrafting, gitstate.StateReverting:
		return nil, fmt.Errorf("%w: repository is %s", domain.ErrUpdateInProgress, info.State)
	}
	if info.IsDetached() {
		return nil, domain.ErrDetachedHead
	}

	tracking, ok := info.TrackingFor(info.Branch)
	if !ok || tracking.Remote == "." {
		result := &Result{Outcome: OutcomeNoTrackedBranch}
		u.publish(result)
		return result, nil
	}

	if opts.FetchFirst {
		if _, err := u.fetcher.Fetch(ctx, FetchOptions{Remotes: []string{tracking.Remote}}); err != nil {
			return nil, err
		}
		info = u.repo.Info()
	}

	method := opts.Method
	if method == "" {
		method = MethodMerge
		if u.repo.Config().RebaseOnUpdate(info.Branch) {
			method = MethodRebase
		}
	}

	target := tracking.RemoteBranch
	result := &Result{Method: method, Target: target}

	// Nothing to do when the remote-tracking branch already equals HEAD.
	if remoteHash, ok := info.RemoteBranches[target]; ok && remoteHash == info.Revision {
		result.Outcome = OutcomeNothingToUpdate
		u.publish(result)
		return result, nil
	}

	switch method {
	case MethodRebase:
		u.rebase(ctx, target, result)
	default:
		u.merge(ctx, target, result)
	}

	if err := u.repo.Reread(); err != nil {
		log.Warn().Err(err).Str("repo_id", u.repo.ID).Msg("snapshot reread after update failed")
	}

	u.publish(result)

	log.Info().
		Str("repo_id", u.repo.ID).
		Str("method", string(method)).
		Str("target", target).
		Str("outcome", string(result.Outcome)).
		Msg("update completed")

	return result, nil
}

// merge tries a fast-forward first and falls back to a real merge.
func (u *Updater) merge(ctx context.Context, target string, result *Result) {
	res, err := u.repo.Exec().Run(ctx, "merge", "--ff-only", target)
	if err != nil {
		result.Outcome = OutcomeError
		result.Error = err.Error()
		return
	}
	if res.Success() {
		result.Outcome = OutcomeSuccess
		return
	}

	// Not fast-forwardable. A diverged branch needs a merge commit.
	if !strings.Contains(res.Stderr, "Not possible to fast-forward") &&
		!strings.Contains(res.Stderr, "not possible to fast-forward") {
		u.classify(ctx, res, result)
		return
	}

	res, err = u.repo.Exec().Run(ctx, "merge", target)
	if err != nil {
		result.Outcome = OutcomeError
		result.Error = err.Error()
		return
	}
	if res.Success() {
		result.Outcome = OutcomeSuccess
		return
	}
	u.classify(ctx, res, result)
}

// rebase runs the rebase and aborts on failure so the worktree is never left
// mid-rebase. Conflicts are reported with the conflicting files collected
// before the abort.
func (u *Updater) rebase(ctx context.Context, target string, result *Result) {
	res, err := u.repo.Exec().Run(ctx, "rebase", target)
	if err != nil {
		result.Outcome = OutcomeError
		result.Error = err.Error()
		u.abortRebase()
		return
	}
	if res.Success() {
		result.Outcome = OutcomeSuccess
		return
	}

	u.classify(ctx, res, result)
	u.abortRebase()
}

// abortRebase restores the worktree. Runs on a fresh context so an abort
// still happens when the caller's context is already cancelled.
func (u *Updater) abortRebase() {
	if res, err := u.repo.Exec().Run(context.Background(), "rebase", "--abort"); err != nil || !res.Success() {
		log.Warn().Str("repo_id", u.repo.ID).Msg("rebase abort failed")
	}
}

// classify maps a failed merge/rebase result onto an Outcome.
func (u *Updater) classify(ctx context.Context, res *gitexec.Result, result *Result) {
	switch gitexec.ClassifyFailure(res) {
	case gitexec.FailureConflict:
		result.Outcome = OutcomeConflict
		result.ConflictingFiles = u.conflictedFiles(ctx)
	case gitexec.FailureLocalChanges:
		result.Outcome = OutcomeLocalChanges
		// git prints the overwritten-files block on stderr.
		result.OverwrittenFiles = gitexec.LocalChangesPaths(res.Stderr)
	default:
		result.Outcome = OutcomeError
		result.Error = firstNonEmptyLine(res.Stderr)
	}
}

func (u *Updater) conflictedFiles(ctx context.Context) []string {
	res, err := u.repo.Exec().Run(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil || !res.Success() {
		return nil
	}
	return res.Lines()
}

func (u *Updater) publish(result *Result) {
	if u.hub == nil {
		return
	}
	u.hub.Publish(events.NewUpdateCompletedEvent(
		u.repo.ID,
		string(result.Method),
		string(result.Outcome),
		result.ConflictingFiles,
		result.OverwrittenFiles,
		result.Error,
	))
}
