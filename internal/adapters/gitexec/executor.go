// Package gitexec wraps invocation of the external git binary: working
// directory and environment setup, per-call timeouts, streaming line
// listeners and exit-code capture.
package gitexec

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 60 * time.Second

// LineListener receives one line of subprocess output, without the newline.
type LineListener func(line string)

// Executor runs git commands inside a fixed working directory.
type Executor struct {
	gitPath string
	workDir string
	timeout time.Duration
}

// New creates an executor. An empty gitPath means "git" from PATH; a zero
// timeout falls back to the default.
func New(gitPath, workDir string, timeout time.Duration) *Executor {
	if gitPath == "" {
		gitPath = "git"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Executor{gitPath: gitPath, workDir: workDir, timeout: timeout}
}

// WorkDir returns the executor's working directory.
func (e *Executor) WorkDir() string { return e.workDir }

// Options customizes a single invocation.
type Options struct {
	// OnStdout and OnStderr are invoked per line while the process runs.
	OnStdout LineListener
	OnStderr LineListener

	// Env entries appended to the inherited environment.
	Env []string

	// Timeout overrides the executor default for this call.
	Timeout time.Duration
}

// Result is the outcome of one git invocation.
type Result struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the process exited zero.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Output returns stdout with surrounding whitespace trimmed.
func (r *Result) Output() string { return strings.TrimSpace(r.Stdout) }

// Lines returns non-empty stdout lines.
func (r *Result) Lines() []string {
	var out []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Run invokes git with the default options. A non-zero exit is not an error;
// callers inspect the Result. The returned error covers only failures to run
// the process at all (binary missing, context cancelled).
func (e *Executor) Run(ctx context.Context, args ...string) (*Result, error) {
	return e.RunWith(ctx, Options{}, args...)
}

// RunWith invokes git with explicit options.
func (e *Executor) RunWith(ctx context.Context, opts Options, args ...string) (*Result, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.gitPath, args...)
	cmd.Dir = e.workDir
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"LC_ALL=C",
	)
	cmd.Env = append(cmd.Env, opts.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var outBuf, errBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, &outBuf, opts.OnStdout)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, &errBuf, opts.OnStderr)
	}()
	wg.Wait()

	res := &Result{Args: args, Stdout: outBuf.String(), Stderr: errBuf.String()}

	waitErr := cmd.Wait()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			return nil, waitErr
		}
		if runCtx.Err() != nil {
			// Killed by timeout or cancellation, not a git failure.
			return nil, runCtx.Err()
		}
	}

	log.Trace().
		Strs("args", args).
		Int("exit_code", res.ExitCode).
		Str("dir", e.workDir).
		Msg("git invoked")

	return res, nil
}

// scanLines drains a pipe into buf, reproducing the stream byte for byte.
// The captured output must stay faithful: NUL-separated output (-z modes)
// carries no trailing newline and must not gain one. The listener receives
// each line with its line ending stripped.
func scanLines(r io.Reader, buf *strings.Builder, listener LineListener) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			buf.WriteString(line)
			if listener != nil {
				listener(strings.TrimRight(line, "\r\n"))
			}
		}
		if err != nil {
			return
		}
	}
}
