// Package gitdir resolves the on-disk layout of a repository's git directory
// and classifies paths under it into semantic kinds. It is pure path logic;
// nothing here invokes git.
package gitdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/repod-io/repod/internal/domain"
)

// gitdirPrefix is the prefix of a .git *file* pointing at the real git dir
// (linked worktrees and submodules).
const gitdirPrefix = "gitdir:"

// Layout describes where a repository keeps its git metadata. For a plain
// repository GitDir and CommonDir are the same directory; for a linked
// worktree GitDir holds the per-worktree files (HEAD, index, rebase state)
// while CommonDir holds the shared ones (config, refs, packed-refs, objects).
type Layout struct {
	WorkTree  string
	GitDir    string
	CommonDir string
}

// Discover locates the git directory for a working tree root.
func Discover(root string) (*Layout, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	dotGit := filepath.Join(absRoot, ".git")
	info, err := os.Stat(dotGit)
	if err != nil {
		return nil, domain.ErrNoGitDir
	}

	gitDir := dotGit
	if !info.IsDir() {
		gitDir, err = readGitDirFile(dotGit, absRoot)
		if err != nil {
			return nil, err
		}
	}

	commonDir := gitDir
	if data, err := os.ReadFile(filepath.Join(gitDir, "commondir")); err == nil {
		rel := strings.TrimSpace(string(data))
		if rel != "" {
			if filepath.IsAbs(rel) {
				commonDir = filepath.Clean(rel)
			} else {
				commonDir = filepath.Clean(filepath.Join(gitDir, rel))
			}
		}
	}

	return &Layout{
		WorkTree:  absRoot,
		GitDir:    gitDir,
		CommonDir: commonDir,
	}, nil
}

// readGitDirFile parses a .git file ("gitdir: <path>") and resolves the
// target against the working tree root.
func readGitDirFile(path, root string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	line := strings.TrimSpace(string(data))
	if !strings.HasPrefix(line, gitdirPrefix) {
		return "", fmt.Errorf("malformed .git file %s: %q", path, line)
	}

	target := strings.TrimSpace(strings.TrimPrefix(line, gitdirPrefix))
	if target == "" {
		return "", fmt.Errorf("malformed .git file %s: empty gitdir", path)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	return filepath.Clean(target), nil
}

// Per-worktree files.

func (l *Layout) Head() string           { return filepath.Join(l.GitDir, "HEAD") }
func (l *Layout) OrigHead() string       { return filepath.Join(l.GitDir, "ORIG_HEAD") }
func (l *Layout) FetchHead() string      { return filepath.Join(l.GitDir, "FETCH_HEAD") }
func (l *Layout) MergeHead() string      { return filepath.Join(l.GitDir, "MERGE_HEAD") }
func (l *Layout) CherryPickHead() string { return filepath.Join(l.GitDir, "CHERRY_PICK_HEAD") }
func (l *Layout) RevertHead() string     { return filepath.Join(l.GitDir, "REVERT_HEAD") }
func (l *Layout) Index() string          { return filepath.Join(l.GitDir, "index") }
func (l *Layout) RebaseApplyDir() string { return filepath.Join(l.GitDir, "rebase-apply") }
func (l *Layout) RebaseMergeDir() string { return filepath.Join(l.GitDir, "rebase-merge") }
func (l *Layout) BisectLog() string      { return filepath.Join(l.GitDir, "BISECT_LOG") }

// Shared files.

func (l *Layout) Config() string     { return filepath.Join(l.CommonDir, "config") }
func (l *Layout) PackedRefs() string { return filepath.Join(l.CommonDir, "packed-refs") }
func (l *Layout) RefsDir() string    { return filepath.Join(l.CommonDir, "refs") }
func (l *Layout) HeadsDir() string   { return filepath.Join(l.CommonDir, "refs", "heads") }
func (l *Layout) RemotesDir() string { return filepath.Join(l.CommonDir, "refs", "remotes") }
func (l *Layout) TagsDir() string    { return filepath.Join(l.CommonDir, "refs", "tags") }
func (l *Layout) InfoExclude() string {
	return filepath.Join(l.CommonDir, "info", "exclude")
}

// ModulesFile returns the path of the .gitmodules file in the working tree.
func (l *Layout) ModulesFile() string { return filepath.Join(l.WorkTree, ".gitmodules") }

// Kind is the semantic classification of a changed path.
type Kind int

const (
	// KindIgnored covers paths that never require a re-read: lock files,
	// objects, reflogs, hooks.
	KindIgnored Kind = iota

	// KindWorkTree is a path outside the git directory.
	KindWorkTree

	KindHead
	KindConfig
	KindIndex
	KindRef
	KindPackedRefs
	KindMergeState
	KindRebaseState
	KindFetchHead
	KindOrigHead
	KindExclude
	KindModules
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindWorkTree:
		return "worktree"
	case KindHead:
		return "head"
	case KindConfig:
		return "config"
	case KindIndex:
		return "index"
	case KindRef:
		return "ref"
	case KindPackedRefs:
		return "packed-refs"
	case KindMergeState:
		return "merge-state"
	case KindRebaseState:
		return "rebase-state"
	case KindFetchHead:
		return "fetch-head"
	case KindOrigHead:
		return "orig-head"
	case KindExclude:
		return "exclude"
	case KindModules:
		return "modules"
	default:
		return "ignored"
	}
}

// Classify maps an absolute filesystem path to its semantic kind. The updater
// uses the result to decide whether a change triggers a snapshot re-read, a
// config re-read, an untracked-cache invalidation, or nothing at all.
func (l *Layout) Classify(path string) Kind {
	path = filepath.Clean(path)

	if strings.HasSuffix(path, ".lock") {
		return KindIgnored
	}

	if path == l.ModulesFile() {
		return KindModules
	}

	inGitDir := pathUnder(path, l.GitDir)
	inCommonDir := pathUnder(path, l.CommonDir)
	if !inGitDir && !inCommonDir {
		if pathUnder(path, l.WorkTree) {
			return KindWorkTree
		}
		return KindIgnored
	}

	switch path {
	case l.Head():
		return KindHead
	case l.Config():
		return KindConfig
	case l.Index():
		return KindIndex
	case l.PackedRefs():
		return KindPackedRefs
	case l.MergeHead(), l.CherryPickHead(), l.RevertHead(), l.BisectLog():
		return KindMergeState
	case l.FetchHead():
		return KindFetchHead
	case l.OrigHead():
		return KindOrigHead
	case l.InfoExclude():
		return KindExclude
	}

	switch {
	case pathUnder(path, l.RebaseApplyDir()), pathUnder(path, l.RebaseMergeDir()),
		path == l.RebaseApplyDir(), path == l.RebaseMergeDir():
		return KindRebaseState
	case pathUnder(path, l.RefsDir()):
		return KindRef
	}

	// Everything else inside .git (objects, logs, hooks, info) is noise.
	return KindIgnored
}

// pathUnder reports whether path is strictly inside dir.
func pathUnder(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
