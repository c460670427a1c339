// Package repo ties one registered repository root to its live state: the
// gitdir layout, the current RepoInfo snapshot, the untracked-files holder
// and the git executor. A Manager owns one Repository per registered root.
package repo

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/adapters/gitexec"
	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
	"github.com/repod-io/repod/internal/gitconfig"
	"github.com/repod-io/repod/internal/gitdir"
	"github.com/repod-io/repod/internal/gitstate"
	"github.com/repod-io/repod/internal/untracked"
)

// Repository holds the live state of one registered root. The RepoInfo
// snapshot is immutable; Reread swaps the pointer under the write lock, so
// readers only ever pay a pointer load.
type Repository struct {
	ID   string
	Root string
	Name string

	layout    *gitdir.Layout
	exec      *gitexec.Executor
	hub       ports.EventHub
	untracked *untracked.Holder

	mu   sync.RWMutex
	info *gitstate.RepoInfo
	cfg  *gitconfig.Config
}

// Open discovers the git directory under root and builds the initial
// snapshot. Fails with domain.ErrNotGitRepo (wrapped) when root is not a
// git worktree.
func Open(id, root, name string, hub ports.EventHub, gitPath string, timeout time.Duration) (*Repository, error) {
	layout, err := gitdir.Discover(root)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", root, err)
	}

	exec := gitexec.New(gitPath, root, timeout)

	r := &Repository{
		ID:        id,
		Root:      root,
		Name:      name,
		layout:    layout,
		exec:      exec,
		hub:       hub,
		untracked: untracked.NewHolder(id, exec, hub),
	}

	if err := r.reread(false); err != nil {
		return nil, err
	}
	return r, nil
}

// Layout returns the resolved git directory layout.
func (r *Repository) Layout() *gitdir.Layout { return r.layout }

// Exec returns the repository's git executor.
func (r *Repository) Exec() *gitexec.Executor { return r.exec }

// Untracked returns the untracked-files holder.
func (r *Repository) Untracked() *untracked.Holder { return r.untracked }

// Info returns the current snapshot. Never nil after Open succeeds.
func (r *Repository) Info() *gitstate.RepoInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

// Config returns the parsed git config backing the current snapshot.
func (r *Repository) Config() *gitconfig.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Reread rebuilds the snapshot from disk and publishes diff events for
// whatever changed since the previous one.
func (r *Repository) Reread() error {
	return r.reread(true)
}

func (r *Repository) reread(publish bool) error {
	cfg, err := gitconfig.Load(r.layout.Config())
	if err != nil {
		return fmt.Errorf("read config for %s: %w", r.Root, err)
	}
	for _, warn := range cfg.Warnings {
		log.Warn().Err(warn).Str("repo_id", r.ID).Msg("git config parse warning")
	}

	submodules, err := gitconfig.LoadModules(r.layout.ModulesFile())
	if err != nil {
		// A broken .gitmodules should not take the snapshot down.
		log.Warn().Err(err).Str("repo_id", r.ID).Msg("failed to read .gitmodules")
	}

	info, warns := gitstate.Build(r.layout, cfg, submodules)
	for _, warn := range warns {
		log.Warn().Err(warn).Str("repo_id", r.ID).Msg("snapshot read warning")
	}

	r.mu.Lock()
	prev := r.info
	r.info = info
	r.cfg = cfg
	r.mu.Unlock()

	if publish && r.hub != nil {
		r.publishDiff(prev, info)
	}
	return nil
}

// publishDiff emits events for everything that changed between snapshots.
func (r *Repository) publishDiff(prev, cur *gitstate.RepoInfo) {
	if prev == nil {
		r.hub.Publish(events.NewRepoStateChangedEvent(r.ID, cur.Branch, cur.Revision, string(cur.State)))
		return
	}

	if prev.Branch != cur.Branch {
		r.hub.Publish(events.NewBranchChangedEvent(r.ID, prev.Branch, cur.Branch))
	}
	if prev.State != cur.State || prev.Revision != cur.Revision || prev.Branch != cur.Branch {
		r.hub.Publish(events.NewRepoStateChangedEvent(r.ID, cur.Branch, cur.Revision, string(cur.State)))
	}
	if !sameRemotes(prev, cur) {
		r.hub.Publish(events.NewRemotesChangedEvent(r.ID, cur.RemoteNames()))
	}
}

func sameRemotes(a, b *gitstate.RepoInfo) bool {
	an, bn := a.RemoteNames(), b.RemoteNames()
	if len(an) != len(bn) {
		return false
	}
	for i := range an {
		if an[i] != bn[i] {
			return false
		}
	}
	// Names matching is not enough; URL edits matter too.
	for i := range a.Remotes {
		if a.Remotes[i].FirstURL() != b.Remotes[i].FirstURL() {
			return false
		}
	}
	return true
}
