package gitstatus

import (
	"testing"
)

func TestParsePorcelain(t *testing.T) {
	output := " M modified.go\n" +
		"M  staged.go\n" +
		"MM both.go\n" +
		"?? new_file.go\n" +
		"A  added.go\n" +
		"R  old.go -> renamed.go\n" +
		"D  deleted.go\n" +
		"UU conflicted.go\n"

	files := parsePorcelain(output)
	if len(files) != 8 {
		t.Fatalf("parsed %d files, want 8", len(files))
	}

	tests := []struct {
		idx         int
		path        string
		status      string
		isStaged    bool
		isUntracked bool
	}{
		{0, "modified.go", " M", false, false},
		{1, "staged.go", "M ", true, false},
		{2, "both.go", "MM", true, false},
		{3, "new_file.go", "??", false, true},
		{4, "added.go", "A ", true, false},
		{5, "renamed.go", "R ", true, false},
		{6, "deleted.go", "D ", true, false},
		{7, "conflicted.go", "UU", true, false},
	}

	for _, tt := range tests {
		f := files[tt.idx]
		if f.Path != tt.path {
			t.Errorf("[%d] path = %q, want %q", tt.idx, f.Path, tt.path)
		}
		if f.Status != tt.status {
			t.Errorf("[%d] status = %q, want %q", tt.idx, f.Status, tt.status)
		}
		if f.IsStaged != tt.isStaged {
			t.Errorf("[%d] IsStaged = %v", tt.idx, f.IsStaged)
		}
		if f.IsUntracked != tt.isUntracked {
			t.Errorf("[%d] IsUntracked = %v", tt.idx, f.IsUntracked)
		}
	}
}

func TestParsePorcelain_Empty(t *testing.T) {
	files := parsePorcelain("")
	if files == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(files) != 0 {
		t.Errorf("parsed %d files, want 0", len(files))
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		staged, unstaged byte
		want             bool
	}{
		{'U', 'U', true},
		{'A', 'U', true},
		{'U', 'D', true},
		{'A', 'A', true},
		{'D', 'D', true},
		{'M', ' ', false},
		{' ', 'M', false},
		{'?', '?', false},
	}
	for _, tt := range tests {
		if got := isConflict(tt.staged, tt.unstaged); got != tt.want {
			t.Errorf("isConflict(%c, %c) = %v", tt.staged, tt.unstaged, got)
		}
	}
}

func TestParseLog(t *testing.T) {
	output := "abc123full|abc123|Ana Dev|ana@example.com|2026-08-01T10:00:00+00:00|2 weeks ago|Fix watcher races|parent1\n" +
		"def456full|def456|Bo Dev|bo@example.com|2026-07-30T09:00:00+00:00|3 weeks ago|Merge branch feature|parent1 parent2\n"

	commits := parseLog(output)
	if len(commits) != 2 {
		t.Fatalf("parsed %d commits, want 2", len(commits))
	}

	if commits[0].Subject != "Fix watcher races" || commits[0].IsMerge {
		t.Errorf("first commit = %+v", commits[0])
	}
	if !commits[1].IsMerge || len(commits[1].ParentSHAs) != 2 {
		t.Errorf("second commit should be a merge: %+v", commits[1])
	}
}

func TestFirstLine(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 50, "short"},
		{"first line\nsecond line", 50, "first line"},
		{"this message is definitely much too long to keep", 20, "this message is d..."},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in, tt.max); got != tt.want {
			t.Errorf("firstLine(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
