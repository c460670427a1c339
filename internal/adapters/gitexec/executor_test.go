package gitexec

import (
	"context"
	"strings"
	"testing"

	"github.com/repod-io/repod/internal/testutil"
)

func TestScanLinesReproducesStream(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantLines []string
	}{
		{
			name:      "terminated lines",
			input:     "a\nb\n",
			wantLines: []string{"a", "b"},
		},
		{
			name:      "unterminated final line",
			input:     "a\nb",
			wantLines: []string{"a", "b"},
		},
		{
			name:      "nul separated no newline",
			input:     "x.txt\x00y.txt\x00",
			wantLines: []string{"x.txt\x00y.txt\x00"},
		},
		{
			name:      "crlf stripped for listener only",
			input:     "a\r\nb\r\n",
			wantLines: []string{"a", "b"},
		},
		{
			name:      "empty",
			input:     "",
			wantLines: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf strings.Builder
			var lines []string
			scanLines(strings.NewReader(tt.input), &buf, func(line string) {
				lines = append(lines, line)
			})

			if buf.String() != tt.input {
				t.Errorf("captured %q, want the input %q reproduced exactly", buf.String(), tt.input)
			}
			if len(lines) != len(tt.wantLines) {
				t.Fatalf("listener lines = %q, want %q", lines, tt.wantLines)
			}
			for i := range lines {
				if lines[i] != tt.wantLines[i] {
					t.Errorf("line[%d] = %q, want %q", i, lines[i], tt.wantLines[i])
				}
			}
		})
	}
}

func TestRunCapturesNulOutput(t *testing.T) {
	root := testutil.InitGitRepo(t)
	testutil.WriteFile(t, root, "newfile.txt", "hello\n")

	e := New("git", root, 0)
	res, err := e.Run(context.Background(), "ls-files", "--others", "--exclude-standard", "-z")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Success() {
		t.Fatalf("ls-files exit code = %d, stderr: %s", res.ExitCode, res.Stderr)
	}

	want := "newfile.txt\x00"
	if res.Stdout != want {
		t.Errorf("Stdout = %q, want %q (no trailing newline added)", res.Stdout, want)
	}
}

func TestRunCapturesExitCode(t *testing.T) {
	root := testutil.InitGitRepo(t)

	e := New("git", root, 0)
	res, err := e.Run(context.Background(), "rev-parse", "--verify", "refs/heads/nonexistent")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Success() {
		t.Fatal("rev-parse of a missing ref should fail")
	}
	if res.ExitCode == 0 {
		t.Errorf("ExitCode = 0, want non-zero")
	}
}

func TestRunStreamsListenerLines(t *testing.T) {
	root := testutil.InitGitRepo(t)
	testutil.WriteFile(t, root, "a.txt", "a\n")
	testutil.WriteFile(t, root, "b.txt", "b\n")

	e := New("git", root, 0)
	var lines []string
	res, err := e.RunWith(context.Background(), Options{
		OnStdout: func(line string) { lines = append(lines, line) },
	}, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		t.Fatalf("RunWith() error = %v", err)
	}
	if !res.Success() {
		t.Fatalf("ls-files exit code = %d", res.ExitCode)
	}
	if len(lines) != 2 || lines[0] != "a.txt" || lines[1] != "b.txt" {
		t.Errorf("listener lines = %q, want [a.txt b.txt]", lines)
	}
}
