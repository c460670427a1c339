// Package watcher implements the file system watcher using fsnotify.
//
// Each repository gets its own watcher covering the worktree and the git
// directory. For linked worktrees the git directory lives outside the
// worktree, so the watcher accepts extra roots beyond the primary one.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
)

// pendingRename tracks a file that was renamed away; the new path arrives as
// a later CREATE in the same directory.
type pendingRename struct {
	oldPath   string
	timestamp time.Time
}

// Watcher implements the FileWatcher port for one repository.
type Watcher struct {
	repoID     string
	rootPath   string
	extraRoots []string
	hub        ports.EventHub
	debounceMS int

	mu             sync.RWMutex
	watcher        *fsnotify.Watcher
	ignorePatterns []string
	skipPaths      []string
	running        bool
	cancel         context.CancelFunc

	debouncer *Debouncer

	// Rename tracking: directory path -> pending rename info.
	pendingRenames   map[string]pendingRename
	pendingRenamesMu sync.Mutex
}

// NewWatcher creates a watcher rooted at the repository worktree.
func NewWatcher(repoID, rootPath string, hub ports.EventHub, debounceMS int, ignorePatterns []string) *Watcher {
	return &Watcher{
		repoID:         repoID,
		rootPath:       rootPath,
		hub:            hub,
		debounceMS:     debounceMS,
		ignorePatterns: ignorePatterns,
		pendingRenames: make(map[string]pendingRename),
	}
}

// AddRoot registers an additional directory tree to watch, typically the git
// directory of a linked worktree. Must be called before Start.
func (w *Watcher) AddRoot(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.extraRoots {
		if r == path {
			return
		}
	}
	w.extraRoots = append(w.extraRoots, path)
}

// AddSkipPath excludes an absolute directory subtree from watching. Used for
// the object store and reflog directories, which churn constantly and carry
// no state the daemon cares about.
func (w *Watcher) AddSkipPath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.skipPaths = append(w.skipPaths, filepath.Clean(path))
}

// Start begins watching all registered roots.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.debouncer = NewDebouncer(time.Duration(w.debounceMS)*time.Millisecond, w.handleDebouncedEvent)

	roots := append([]string{w.rootPath}, w.extraRoots...)
	w.running = true
	w.mu.Unlock()

	for _, root := range roots {
		if err := w.addWatchRecursive(root); err != nil {
			_ = w.Stop()
			return err
		}
	}

	go w.eventLoop(watchCtx)

	// On macOS, deletions often surface as RENAME without a following
	// CREATE. Stale pending renames get flushed as deletions.
	go w.pendingRenameCleanup(watchCtx)

	log.Info().
		Str("repo_id", w.repoID).
		Str("path", w.rootPath).
		Int("roots", len(roots)).
		Int("debounce_ms", w.debounceMS).
		Msg("file watcher started")

	return nil
}

// Stop terminates file watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false

	if w.cancel != nil {
		w.cancel()
	}

	if w.debouncer != nil {
		w.debouncer.Stop()
	}

	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		log.Info().Str("repo_id", w.repoID).Msg("file watcher stopped")
		return err
	}

	return nil
}

// AddIgnorePattern adds a pattern to the ignore list.
func (w *Watcher) AddIgnorePattern(pattern string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignorePatterns = append(w.ignorePatterns, pattern)
}

// IsRunning returns true if the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// addWatchRecursive adds watches to a directory and all subdirectories.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip files/dirs we can't access
		}
		if !info.IsDir() {
			return nil
		}
		if w.shouldSkipDir(path) || w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to add watch")
			return nil
		}
		return nil
	})
}

// eventLoop handles fsnotify events.
func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("repo_id", w.repoID).Msg("watcher error")
		}
	}
}

// pendingRenameCleanup flushes pending renames older than a second as
// deletions.
func (w *Watcher) pendingRenameCleanup(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processStalePendingRenames()
		}
	}
}

func (w *Watcher) processStalePendingRenames() {
	w.pendingRenamesMu.Lock()
	defer w.pendingRenamesMu.Unlock()

	now := time.Now()
	for dir, pending := range w.pendingRenames {
		if now.Sub(pending.timestamp) > time.Second {
			delete(w.pendingRenames, dir)

			log.Debug().
				Str("repo_id", w.repoID).
				Str("path", pending.oldPath).
				Msg("stale pending rename treated as deletion")

			w.hub.Publish(events.NewFileChangedEvent(w.repoID, pending.oldPath, events.FileChangeDeleted, 0))
		}
	}
}

// handleEvent processes a single fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath := w.eventPath(event.Name)

	if w.shouldSkipDir(event.Name) || w.shouldIgnore(event.Name) || w.shouldIgnore(relPath) {
		return
	}

	var changeType events.FileChangeType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		changeType = events.FileChangeCreated
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addWatchRecursive(event.Name)
		}
	case event.Op&fsnotify.Write == fsnotify.Write:
		changeType = events.FileChangeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		changeType = events.FileChangeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		// Hold the old path until a CREATE arrives in the same directory.
		dir := filepath.Dir(relPath)
		w.pendingRenamesMu.Lock()
		w.pendingRenames[dir] = pendingRename{
			oldPath:   relPath,
			timestamp: time.Now(),
		}
		w.pendingRenamesMu.Unlock()
		return
	case event.Op&fsnotify.Chmod == fsnotify.Chmod:
		return
	default:
		return
	}

	w.debouncer.Add(relPath, changeType)
}

// handleDebouncedEvent is called after the debounce window expires.
func (w *Watcher) handleDebouncedEvent(path string, changeType events.FileChangeType) {
	var size int64
	if changeType != events.FileChangeDeleted {
		if info, err := os.Stat(w.absPath(path)); err == nil {
			size = info.Size()
		}
	}

	// A CREATE shortly after a RENAME in the same directory is the second
	// half of that rename.
	if changeType == events.FileChangeCreated {
		dir := filepath.Dir(path)
		w.pendingRenamesMu.Lock()
		pending, hasPending := w.pendingRenames[dir]
		if hasPending {
			if time.Since(pending.timestamp) < time.Second {
				delete(w.pendingRenames, dir)
				w.pendingRenamesMu.Unlock()

				w.hub.Publish(events.NewFileRenamedEvent(w.repoID, pending.oldPath, path))

				log.Debug().
					Str("repo_id", w.repoID).
					Str("old_path", pending.oldPath).
					Str("new_path", path).
					Msg("file renamed")
				return
			}
			delete(w.pendingRenames, dir)
		}
		w.pendingRenamesMu.Unlock()
	}

	w.hub.Publish(events.NewFileChangedEvent(w.repoID, path, changeType, size))

	log.Debug().
		Str("repo_id", w.repoID).
		Str("path", path).
		Str("change", string(changeType)).
		Int64("size", size).
		Msg("file changed")
}

// eventPath converts an absolute event path to a path relative to the
// primary root. Paths under an extra root (an external git directory) stay
// absolute so consumers can still classify them.
func (w *Watcher) eventPath(name string) string {
	relPath, err := filepath.Rel(w.rootPath, name)
	if err != nil || strings.HasPrefix(relPath, "..") {
		return name
	}
	return relPath
}

// absPath reverses eventPath.
func (w *Watcher) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.rootPath, path)
}

// shouldSkipDir checks the absolute skip list.
func (w *Watcher) shouldSkipDir(path string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	clean := filepath.Clean(path)
	for _, skip := range w.skipPaths {
		if clean == skip || strings.HasPrefix(clean, skip+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// shouldIgnore checks if a path matches any ignore pattern.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)

	for _, pattern := range w.ignorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}

		parts := splitPath(path)
		for _, part := range parts {
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}

	return false
}

// splitPath splits a path into its components.
func splitPath(path string) []string {
	var parts []string
	for path != "" && path != "/" && path != "." {
		dir, file := filepath.Split(path)
		if file != "" {
			parts = append([]string{file}, parts...)
		}
		path = filepath.Clean(dir)
	}
	return parts
}
