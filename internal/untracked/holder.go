// Package untracked maintains an incremental cache of files not tracked by
// git, kept in sync from file-system events so that full `git status`
// rescans stay rare.
package untracked

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/adapters/gitexec"
	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
)

// Holder caches the untracked file set of one repository.
//
// Created files land in a pending set first: whether a new file is untracked
// depends on ignore rules, so pending paths are verified against git on the
// next query instead of per event. Index or exclude-file changes invalidate
// the whole cache; the next query does a full rescan.
type Holder struct {
	repoID string
	exec   *gitexec.Executor
	hub    ports.EventHub

	mu      sync.Mutex
	files   map[string]struct{}
	pending map[string]struct{}
	ready   bool
	dirty   bool
}

// NewHolder creates a holder. It is empty and not ready until the first
// Rescan.
func NewHolder(repoID string, exec *gitexec.Executor, hub ports.EventHub) *Holder {
	return &Holder{
		repoID:  repoID,
		exec:    exec,
		files:   make(map[string]struct{}),
		pending: make(map[string]struct{}),
		hub:     hub,
	}
}

// Rescan rebuilds the cache from `git ls-files --others --exclude-standard`.
func (h *Holder) Rescan(ctx context.Context) error {
	res, err := h.exec.Run(ctx, "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		return domain.NewGitError("ls-files", err)
	}
	if !res.Success() {
		return domain.NewGitExitError("ls-files", domain.ErrNotGitRepo, res.ExitCode, res.Stderr)
	}

	files := make(map[string]struct{})
	for _, path := range strings.Split(res.Stdout, "\x00") {
		if path != "" {
			files[path] = struct{}{}
		}
	}

	h.mu.Lock()
	h.files = files
	h.pending = make(map[string]struct{})
	h.ready = true
	h.dirty = false
	count := len(files)
	h.mu.Unlock()

	log.Debug().Str("repo_id", h.repoID).Int("count", count).Msg("untracked files rescanned")
	if h.hub != nil {
		h.hub.Publish(events.NewUntrackedChangedEvent(h.repoID, count, true))
	}
	return nil
}

// Invalidate marks the cache dirty; the next query triggers a full rescan.
// Called when the index, HEAD or ignore rules change.
func (h *Holder) Invalidate() {
	h.mu.Lock()
	h.dirty = true
	h.mu.Unlock()
}

// IsDirty reports whether a full rescan is pending.
func (h *Holder) IsDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty || !h.ready
}

// OnFileCreated records a created worktree path as possibly untracked.
func (h *Holder) OnFileCreated(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.ready {
		return
	}
	if _, known := h.files[path]; !known {
		h.pending[path] = struct{}{}
	}
}

// OnFileDeleted removes a deleted worktree path from the cache.
func (h *Holder) OnFileDeleted(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, path)
	delete(h.pending, path)
}

// ContainsFile reports whether the path is untracked, settling any dirty or
// pending state first.
func (h *Holder) ContainsFile(ctx context.Context, path string) (bool, error) {
	if err := h.settle(ctx); err != nil {
		return false, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.files[path]
	return ok, nil
}

// Snapshot returns the sorted untracked file list, settling any dirty or
// pending state first.
func (h *Holder) Snapshot(ctx context.Context) ([]string, error) {
	if err := h.settle(ctx); err != nil {
		return nil, err
	}

	h.mu.Lock()
	out := make([]string, 0, len(h.files))
	for path := range h.files {
		out = append(out, path)
	}
	h.mu.Unlock()

	sort.Strings(out)
	return out, nil
}

// settle brings the cache up to date: full rescan when dirty, otherwise
// verification of pending created paths only.
func (h *Holder) settle(ctx context.Context) error {
	h.mu.Lock()
	needRescan := h.dirty || !h.ready
	var pending []string
	if !needRescan {
		for path := range h.pending {
			pending = append(pending, path)
		}
	}
	h.mu.Unlock()

	if needRescan {
		return h.Rescan(ctx)
	}
	if len(pending) == 0 {
		return nil
	}
	return h.verifyPending(ctx, pending)
}

// verifyPending asks git which of the pending paths are actually untracked;
// ignored files fall out here.
func (h *Holder) verifyPending(ctx context.Context, pending []string) error {
	args := append([]string{"ls-files", "--others", "--exclude-standard", "-z", "--"}, pending...)
	res, err := h.exec.Run(ctx, args...)
	if err != nil {
		return domain.NewGitError("ls-files", err)
	}
	if !res.Success() {
		return domain.NewGitExitError("ls-files", domain.ErrNotGitRepo, res.ExitCode, res.Stderr)
	}

	confirmed := make(map[string]struct{})
	for _, path := range strings.Split(res.Stdout, "\x00") {
		if path != "" {
			confirmed[path] = struct{}{}
		}
	}

	h.mu.Lock()
	for _, path := range pending {
		delete(h.pending, path)
		if _, ok := confirmed[path]; ok {
			h.files[path] = struct{}{}
		}
	}
	count := len(h.files)
	h.mu.Unlock()

	log.Debug().
		Str("repo_id", h.repoID).
		Int("pending", len(pending)).
		Int("confirmed", len(confirmed)).
		Msg("pending untracked paths verified")

	if h.hub != nil && len(confirmed) > 0 {
		h.hub.Publish(events.NewUntrackedChangedEvent(h.repoID, count, false))
	}
	return nil
}
