// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrNotGitRepo        = errors.New("not a git repository")
	ErrRepoNotFound      = errors.New("repository not found")
	ErrRepoNotRegistered = errors.New("repository not registered")
	ErrPathOutsideRepo   = errors.New("path is outside repository")
	ErrNoGitDir          = errors.New("git directory not found")
	ErrNoTrackedBranch   = errors.New("current branch has no tracked upstream")
	ErrUpdateInProgress  = errors.New("rebase or merge already in progress")
	ErrDetachedHead      = errors.New("HEAD is detached")
	ErrHubNotRunning     = errors.New("event hub is not running")
	ErrSubscriberClosed  = errors.New("subscriber is closed")
	ErrHolderNotReady    = errors.New("untracked files holder not initialized")
)

// Error codes for client responses.
const (
	ErrCodeNotGitRepo     = "NOT_GIT_REPO"
	ErrCodeRepoNotFound   = "REPO_NOT_FOUND"
	ErrCodePathOutside    = "PATH_OUTSIDE_REPO"
	ErrCodeGitError       = "GIT_ERROR"
	ErrCodeConflict       = "MERGE_CONFLICT"
	ErrCodeLocalChanges   = "LOCAL_CHANGES_WOULD_BE_OVERWRITTEN"
	ErrCodeInvalidPayload = "INVALID_PAYLOAD"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// GitError represents an error from a git subprocess invocation.
type GitError struct {
	Op       string // Operation that failed, e.g. "fetch"
	Err      error  // Underlying error
	ExitCode int    // Exit code if the process exited
	Stderr   string // Trailing stderr output, if captured
}

func (e *GitError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("git %s: exit code %d: %v", e.Op, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// NewGitError creates a new GitError.
func NewGitError(op string, err error) *GitError {
	return &GitError{Op: op, Err: err}
}

// NewGitExitError creates a GitError carrying exit code and stderr.
func NewGitExitError(op string, err error, exitCode int, stderr string) *GitError {
	return &GitError{Op: op, Err: err, ExitCode: exitCode, Stderr: stderr}
}

// ParseError reports a malformed line in a git plumbing file. Parsers collect
// these as warnings; a bad line never aborts a snapshot read.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// NewParseError creates a new ParseError.
func NewParseError(file string, line int, msg string) *ParseError {
	return &ParseError{File: file, Line: line, Msg: msg}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
