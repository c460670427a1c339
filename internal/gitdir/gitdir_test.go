package gitdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/repod-io/repod/internal/domain"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover_PlainRepo(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	l, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if l.GitDir != filepath.Join(root, ".git") {
		t.Errorf("GitDir = %s", l.GitDir)
	}
	if l.CommonDir != l.GitDir {
		t.Errorf("CommonDir = %s, want same as GitDir", l.CommonDir)
	}
}

func TestDiscover_NotARepo(t *testing.T) {
	root := t.TempDir()

	_, err := Discover(root)
	if err != domain.ErrNoGitDir {
		t.Fatalf("Discover() error = %v, want ErrNoGitDir", err)
	}
}

func TestDiscover_GitFile(t *testing.T) {
	base := t.TempDir()
	mainGit := filepath.Join(base, "main", ".git")
	wtGitDir := filepath.Join(mainGit, "worktrees", "wt1")
	wtRoot := filepath.Join(base, "wt1")

	if err := os.MkdirAll(wtGitDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(wtRoot, 0755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(wtRoot, ".git"), "gitdir: "+wtGitDir+"\n")
	mustWrite(t, filepath.Join(wtGitDir, "commondir"), "../..\n")

	l, err := Discover(wtRoot)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if l.GitDir != wtGitDir {
		t.Errorf("GitDir = %s, want %s", l.GitDir, wtGitDir)
	}
	if l.CommonDir != mainGit {
		t.Errorf("CommonDir = %s, want %s", l.CommonDir, mainGit)
	}
	// Per-worktree files live in the worktree git dir, shared ones in common.
	if l.Head() != filepath.Join(wtGitDir, "HEAD") {
		t.Errorf("Head() = %s", l.Head())
	}
	if l.Config() != filepath.Join(mainGit, "config") {
		t.Errorf("Config() = %s", l.Config())
	}
}

func TestDiscover_MalformedGitFile(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, ".git"), "not a gitdir line\n")

	if _, err := Discover(root); err == nil {
		t.Fatal("Discover() expected error for malformed .git file")
	}
}

func TestClassify(t *testing.T) {
	root := t.TempDir()
	git := filepath.Join(root, ".git")
	if err := os.MkdirAll(git, 0755); err != nil {
		t.Fatal(err)
	}

	l, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want Kind
	}{
		{"head", filepath.Join(git, "HEAD"), KindHead},
		{"head lock", filepath.Join(git, "HEAD.lock"), KindIgnored},
		{"config", filepath.Join(git, "config"), KindConfig},
		{"index", filepath.Join(git, "index"), KindIndex},
		{"index lock", filepath.Join(git, "index.lock"), KindIgnored},
		{"packed refs", filepath.Join(git, "packed-refs"), KindPackedRefs},
		{"loose branch", filepath.Join(git, "refs", "heads", "main"), KindRef},
		{"nested branch", filepath.Join(git, "refs", "heads", "feature", "x"), KindRef},
		{"remote branch", filepath.Join(git, "refs", "remotes", "origin", "main"), KindRef},
		{"merge head", filepath.Join(git, "MERGE_HEAD"), KindMergeState},
		{"cherry pick head", filepath.Join(git, "CHERRY_PICK_HEAD"), KindMergeState},
		{"revert head", filepath.Join(git, "REVERT_HEAD"), KindMergeState},
		{"bisect log", filepath.Join(git, "BISECT_LOG"), KindMergeState},
		{"rebase apply dir", filepath.Join(git, "rebase-apply"), KindRebaseState},
		{"rebase merge file", filepath.Join(git, "rebase-merge", "head-name"), KindRebaseState},
		{"fetch head", filepath.Join(git, "FETCH_HEAD"), KindFetchHead},
		{"orig head", filepath.Join(git, "ORIG_HEAD"), KindOrigHead},
		{"exclude", filepath.Join(git, "info", "exclude"), KindExclude},
		{"gitmodules", filepath.Join(root, ".gitmodules"), KindModules},
		{"objects", filepath.Join(git, "objects", "ab", "cdef"), KindIgnored},
		{"reflog", filepath.Join(git, "logs", "HEAD"), KindIgnored},
		{"hooks", filepath.Join(git, "hooks", "pre-commit"), KindIgnored},
		{"worktree file", filepath.Join(root, "src", "main.go"), KindWorkTree},
		{"outside", filepath.Join(os.TempDir(), "elsewhere"), KindIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.Classify(tt.path); got != tt.want {
				t.Errorf("Classify(%s) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}
