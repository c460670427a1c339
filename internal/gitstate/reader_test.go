package gitstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/repod-io/repod/internal/gitconfig"
	"github.com/repod-io/repod/internal/gitdir"
)

const (
	hashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	hashC = "cccccccccccccccccccccccccccccccccccccccc"
)

// fixture builds a fake .git directory and returns its layout.
func fixture(t *testing.T, files map[string]string) *gitdir.Layout {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		path := filepath.Join(root, ".git", filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	l, err := gitdir.Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestReadHead(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantBranch string
		wantHash   string
		wantErr    bool
	}{
		{"symbolic", "ref: refs/heads/main\n", "main", "", false},
		{"nested branch", "ref: refs/heads/feature/login\n", "feature/login", "", false},
		{"detached", hashA + "\n", "", hashA, false},
		{"garbage", "what is this\n", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := fixture(t, map[string]string{"HEAD": tt.content})
			head, err := ReadHead(l)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadHead() error = %v, wantErr %v", err, tt.wantErr)
			}
			if head.Branch != tt.wantBranch || head.Hash != tt.wantHash {
				t.Errorf("ReadHead() = %+v", head)
			}
		})
	}
}

func TestReadRefs_LooseWinsOverPacked(t *testing.T) {
	l := fixture(t, map[string]string{
		"packed-refs": "# pack-refs with: peeled fully-peeled sorted\n" +
			hashA + " refs/heads/main\n" +
			hashB + " refs/heads/stale\n" +
			hashC + " refs/tags/v1.0\n" +
			"^" + hashA + "\n" +
			hashC + " refs/remotes/origin/main\n",
		"refs/heads/main":           hashB + "\n",
		"refs/remotes/origin/HEAD":  "ref: refs/remotes/origin/main\n",
		"refs/remotes/origin/topic": hashA + "\n",
	})

	refs, warnings := ReadRefs(l)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}

	if refs.Local["main"] != hashB {
		t.Errorf("main = %s, want loose value %s", refs.Local["main"], hashB)
	}
	if refs.Local["stale"] != hashB {
		t.Errorf("stale = %s, want packed value %s", refs.Local["stale"], hashB)
	}
	if refs.Remote["origin/main"] != hashC {
		t.Errorf("origin/main = %s", refs.Remote["origin/main"])
	}
	// Symbolic origin/HEAD resolves through origin/main.
	if refs.Remote["origin/HEAD"] != hashC {
		t.Errorf("origin/HEAD = %s, want resolved %s", refs.Remote["origin/HEAD"], hashC)
	}
	// Tags never enter the snapshot.
	if _, ok := refs.Local["v1.0"]; ok {
		t.Error("tag leaked into local branches")
	}
}

func TestReadRefs_SymbolicLocalResolved(t *testing.T) {
	l := fixture(t, map[string]string{
		"refs/heads/main":   hashA + "\n",
		"refs/heads/alias":  "ref: refs/heads/main\n",
		"refs/heads/broken": "ref: refs/heads/missing\n",
	})

	refs, warnings := ReadRefs(l)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}

	// Every surviving local value must be a hash, never a "ref: ..." string.
	for name, val := range refs.Local {
		if !isHash(val) {
			t.Errorf("local %q = %q, want a hash", name, val)
		}
	}
	if refs.Local["alias"] != hashA {
		t.Errorf("alias = %s, want resolved %s", refs.Local["alias"], hashA)
	}
	if _, ok := refs.Local["broken"]; ok {
		t.Error("unresolvable symbolic ref should be dropped")
	}
}

func TestReadState(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		detached bool
		want     State
	}{
		{"normal", nil, false, StateNormal},
		{"detached", nil, true, StateDetached},
		{"merging", map[string]string{"MERGE_HEAD": hashA}, false, StateMerging},
		{"rebase apply", map[string]string{"rebase-apply/next": "1"}, true, StateRebasing},
		{"rebase merge", map[string]string{"rebase-merge/head-name": "refs/heads/main"}, true, StateRebasing},
		{"cherry pick", map[string]string{"CHERRY_PICK_HEAD": hashA}, false, StateGrafting},
		{"reverting", map[string]string{"REVERT_HEAD": hashA}, false, StateReverting},
		{"bisecting", map[string]string{"BISECT_LOG": "git bisect start\n"}, true, StateBisecting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{"HEAD": "ref: refs/heads/main\n"}
			for k, v := range tt.files {
				files[k] = v
			}
			l := fixture(t, files)
			if got := ReadState(l, tt.detached); got != tt.want {
				t.Errorf("ReadState() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuild_FullSnapshot(t *testing.T) {
	l := fixture(t, map[string]string{
		"HEAD":                     "ref: refs/heads/main\n",
		"refs/heads/main":          hashA + "\n",
		"refs/heads/feature":       hashB + "\n",
		"refs/remotes/origin/main": hashC + "\n",
	})
	cfg := gitconfig.Parse([]byte(`[remote "origin"]
	url = https://example.com/p.git
	fetch = +refs/heads/*:refs/remotes/origin/*
[branch "main"]
	remote = origin
	merge = refs/heads/main
`), "config")

	info, warnings := Build(l, cfg, nil)
	if len(warnings) != 0 {
		t.Fatalf("warnings = %v", warnings)
	}

	if info.Branch != "main" || info.Revision != hashA {
		t.Errorf("branch/revision = %s/%s", info.Branch, info.Revision)
	}
	if info.State != StateNormal {
		t.Errorf("state = %s", info.State)
	}
	if len(info.LocalBranches) != 2 {
		t.Errorf("local branches = %v", info.LocalBranches)
	}

	tr, ok := info.TrackingFor("main")
	if !ok {
		t.Fatal("no tracking for main")
	}
	if tr.Remote != "origin" || tr.RemoteBranch != "origin/main" {
		t.Errorf("tracking = %+v", tr)
	}
}

func TestBuild_FreshRepo(t *testing.T) {
	l := fixture(t, map[string]string{"HEAD": "ref: refs/heads/main\n"})
	info, _ := Build(l, gitconfig.Parse(nil, "config"), nil)

	if !info.IsFresh() {
		t.Errorf("IsFresh() = false, info = %+v", info)
	}
	if info.State != StateNormal {
		t.Errorf("state = %s", info.State)
	}
}

func TestBuild_DetachedHead(t *testing.T) {
	l := fixture(t, map[string]string{"HEAD": hashA + "\n"})
	info, _ := Build(l, gitconfig.Parse(nil, "config"), nil)

	if !info.IsDetached() || info.Revision != hashA {
		t.Errorf("info = %+v", info)
	}
	if info.State != StateDetached {
		t.Errorf("state = %s", info.State)
	}
}

func TestMapRefspec(t *testing.T) {
	tests := []struct {
		spec string
		ref  string
		want string
		ok   bool
	}{
		{"+refs/heads/*:refs/remotes/origin/*", "refs/heads/main", "refs/remotes/origin/main", true},
		{"+refs/heads/*:refs/remotes/origin/*", "refs/heads/feature/x", "refs/remotes/origin/feature/x", true},
		{"refs/heads/main:refs/remotes/backup/main", "refs/heads/main", "refs/remotes/backup/main", true},
		{"refs/heads/main:refs/remotes/backup/main", "refs/heads/other", "", false},
		{"+refs/heads/release/*:refs/remotes/b/release/*", "refs/heads/main", "", false},
		{"no-colon", "refs/heads/main", "", false},
	}

	for _, tt := range tests {
		got, ok := mapRefspec(tt.spec, tt.ref)
		if got != tt.want || ok != tt.ok {
			t.Errorf("mapRefspec(%q, %q) = %q, %v", tt.spec, tt.ref, got, ok)
		}
	}
}
