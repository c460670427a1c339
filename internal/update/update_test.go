package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/repo"
	"github.com/repod-io/repod/internal/testutil"
)

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// openFixture writes a fake .git directory and opens it as a Repository.
func openFixture(t *testing.T, files map[string]string) *repo.Repository {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, ".git", filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	r, err := repo.Open("repo-1", root, "repo", testutil.NewMockEventHub(), "git", time.Minute)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return r
}

const trackedConfig = `[remote "origin"]
	url = https://example.com/repo.git
	fetch = +refs/heads/*:refs/remotes/origin/*
[branch "main"]
	remote = origin
	merge = refs/heads/main
`

func TestUpdate_RejectsOngoingMerge(t *testing.T) {
	r := openFixture(t, map[string]string{
		"HEAD":            "ref: refs/heads/main\n",
		"refs/heads/main": hashA + "\n",
		"MERGE_HEAD":      hashB + "\n",
		"config":          trackedConfig,
	})
	u := NewUpdater(r, nil)

	_, err := u.Update(context.Background(), UpdateOptions{})
	if !errors.Is(err, domain.ErrUpdateInProgress) {
		t.Fatalf("Update() error = %v, want ErrUpdateInProgress", err)
	}
}

func TestUpdate_RejectsDetachedHead(t *testing.T) {
	r := openFixture(t, map[string]string{
		"HEAD":   hashA + "\n",
		"config": trackedConfig,
	})
	u := NewUpdater(r, nil)

	_, err := u.Update(context.Background(), UpdateOptions{})
	if !errors.Is(err, domain.ErrDetachedHead) {
		t.Fatalf("Update() error = %v, want ErrDetachedHead", err)
	}
}

func TestUpdate_NoTrackedBranch(t *testing.T) {
	hub := testutil.NewMockEventHub()
	r := openFixture(t, map[string]string{
		"HEAD":            "ref: refs/heads/main\n",
		"refs/heads/main": hashA + "\n",
	})
	u := NewUpdater(r, hub)

	result, err := u.Update(context.Background(), UpdateOptions{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Outcome != OutcomeNoTrackedBranch {
		t.Errorf("Outcome = %q, want %q", result.Outcome, OutcomeNoTrackedBranch)
	}
	if len(hub.PublishedEvents()) != 1 {
		t.Errorf("published %d events, want 1 update_completed", len(hub.PublishedEvents()))
	}
}

func TestUpdate_NothingToUpdate(t *testing.T) {
	r := openFixture(t, map[string]string{
		"HEAD":                     "ref: refs/heads/main\n",
		"refs/heads/main":          hashA + "\n",
		"refs/remotes/origin/main": hashA + "\n",
		"config":                   trackedConfig,
	})
	u := NewUpdater(r, nil)

	result, err := u.Update(context.Background(), UpdateOptions{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Outcome != OutcomeNothingToUpdate {
		t.Errorf("Outcome = %q, want %q", result.Outcome, OutcomeNothingToUpdate)
	}
	if result.Target != "origin/main" {
		t.Errorf("Target = %q, want origin/main", result.Target)
	}
}

func TestUpdate_MethodFromConfig(t *testing.T) {
	rebaseConfig := trackedConfig + "[pull]\n\trebase = true\n"
	r := openFixture(t, map[string]string{
		"HEAD":                     "ref: refs/heads/main\n",
		"refs/heads/main":          hashA + "\n",
		"refs/remotes/origin/main": hashA + "\n",
		"config":                   rebaseConfig,
	})
	u := NewUpdater(r, nil)

	// Even a no-op update reports the method that would have been used.
	result, err := u.Update(context.Background(), UpdateOptions{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Method != MethodRebase {
		t.Errorf("Method = %q, want rebase", result.Method)
	}

	// An explicit override wins over config.
	result, err = u.Update(context.Background(), UpdateOptions{Method: MethodMerge})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Method != MethodMerge {
		t.Errorf("Method = %q, want merge", result.Method)
	}
}

func TestFetcher_DefaultRemotes(t *testing.T) {
	r := openFixture(t, map[string]string{
		"HEAD":            "ref: refs/heads/main\n",
		"refs/heads/main": hashA + "\n",
		"config": trackedConfig + `[remote "upstream"]
	url = https://example.com/upstream.git
	fetch = +refs/heads/*:refs/remotes/upstream/*
`,
	})
	f := NewFetcher(r, nil)

	// Tracked branch narrows the default to its remote.
	remotes := f.defaultRemotes()
	if len(remotes) != 1 || remotes[0] != "origin" {
		t.Errorf("defaultRemotes() = %v, want [origin]", remotes)
	}
}

func TestFetcher_DefaultRemotesWithoutTracking(t *testing.T) {
	r := openFixture(t, map[string]string{
		"HEAD":            "ref: refs/heads/main\n",
		"refs/heads/main": hashA + "\n",
		"config": `[remote "origin"]
	url = https://example.com/repo.git
	fetch = +refs/heads/*:refs/remotes/origin/*
[remote "upstream"]
	url = https://example.com/upstream.git
	fetch = +refs/heads/*:refs/remotes/upstream/*
`,
	})
	f := NewFetcher(r, nil)

	remotes := f.defaultRemotes()
	if len(remotes) != 2 {
		t.Errorf("defaultRemotes() = %v, want both remotes", remotes)
	}
}

func TestFetcher_NoRemotes(t *testing.T) {
	r := openFixture(t, map[string]string{
		"HEAD":            "ref: refs/heads/main\n",
		"refs/heads/main": hashA + "\n",
	})
	f := NewFetcher(r, nil)

	_, err := f.Fetch(context.Background(), FetchOptions{})
	if !errors.Is(err, domain.ErrNoTrackedBranch) {
		t.Fatalf("Fetch() error = %v, want ErrNoTrackedBranch", err)
	}
}

func TestParseFetchRefs(t *testing.T) {
	lines := []string{
		"From https://example.com/repo",
		"   abc1234..def5678  main       -> origin/main",
		" * [new branch]      feature    -> origin/feature",
		" - [deleted]         (none)     -> origin/stale",
		"remote: Counting objects: 5, done.",
	}

	updated, pruned := parseFetchRefs(lines)

	if len(updated) != 2 || updated[0] != "origin/main" || updated[1] != "origin/feature" {
		t.Errorf("updated = %v", updated)
	}
	if len(pruned) != 1 || pruned[0] != "origin/stale" {
		t.Errorf("pruned = %v", pruned)
	}
}

func TestFirstNonEmptyLine(t *testing.T) {
	if got := firstNonEmptyLine("\n\nerror: failed\ndetail"); got != "error: failed" {
		t.Errorf("firstNonEmptyLine() = %q", got)
	}
	if got := firstNonEmptyLine(""); got != "" {
		t.Errorf("firstNonEmptyLine(empty) = %q", got)
	}
}

// cloneWithUpstream builds a real upstream repository with one commit and a
// clone tracking it, returning both roots.
func cloneWithUpstream(t *testing.T) (upstream, work string) {
	t.Helper()
	upstream = testutil.InitGitRepo(t)
	testutil.WriteFile(t, upstream, "file.txt", "base\n")
	testutil.GitRun(t, upstream, "add", "file.txt")
	testutil.GitRun(t, upstream, "commit", "-m", "base")

	parent := t.TempDir()
	work = filepath.Join(parent, "work")
	testutil.GitRun(t, parent, "clone", upstream, work)
	testutil.GitRun(t, work, "config", "user.email", "test@example.com")
	testutil.GitRun(t, work, "config", "user.name", "test")
	return upstream, work
}

func openReal(t *testing.T, root string) *repo.Repository {
	t.Helper()
	r, err := repo.Open("repo-1", root, "work", testutil.NewMockEventHub(), "git", time.Minute)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return r
}

func TestUpdate_LocalChangesOverwritten(t *testing.T) {
	upstream, work := cloneWithUpstream(t)

	testutil.WriteFile(t, upstream, "file.txt", "upstream\n")
	testutil.GitRun(t, upstream, "commit", "-am", "upstream change")

	testutil.GitRun(t, work, "fetch")
	testutil.WriteFile(t, work, "file.txt", "local edit\n")

	u := NewUpdater(openReal(t, work), nil)
	result, err := u.Update(context.Background(), UpdateOptions{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Outcome != OutcomeLocalChanges {
		t.Fatalf("Outcome = %q, want %q (error: %s)", result.Outcome, OutcomeLocalChanges, result.Error)
	}
	if len(result.OverwrittenFiles) != 1 || result.OverwrittenFiles[0] != "file.txt" {
		t.Errorf("OverwrittenFiles = %q, want [file.txt]", result.OverwrittenFiles)
	}
}

func TestUpdate_MergeConflict(t *testing.T) {
	upstream, work := cloneWithUpstream(t)

	testutil.WriteFile(t, upstream, "file.txt", "upstream\n")
	testutil.GitRun(t, upstream, "commit", "-am", "upstream change")

	testutil.WriteFile(t, work, "file.txt", "local\n")
	testutil.GitRun(t, work, "commit", "-am", "local change")
	testutil.GitRun(t, work, "fetch")

	u := NewUpdater(openReal(t, work), nil)
	result, err := u.Update(context.Background(), UpdateOptions{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Outcome != OutcomeConflict {
		t.Fatalf("Outcome = %q, want %q (error: %s)", result.Outcome, OutcomeConflict, result.Error)
	}
	if len(result.ConflictingFiles) != 1 || result.ConflictingFiles[0] != "file.txt" {
		t.Errorf("ConflictingFiles = %q, want [file.txt]", result.ConflictingFiles)
	}
}

func TestUpdate_FastForward(t *testing.T) {
	upstream, work := cloneWithUpstream(t)

	testutil.WriteFile(t, upstream, "file.txt", "upstream\n")
	testutil.GitRun(t, upstream, "commit", "-am", "upstream change")
	testutil.GitRun(t, work, "fetch")

	u := NewUpdater(openReal(t, work), nil)
	result, err := u.Update(context.Background(), UpdateOptions{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("Outcome = %q, want %q (error: %s)", result.Outcome, OutcomeSuccess, result.Error)
	}
}
