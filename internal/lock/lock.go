// Package lock guards against running more than one daemon instance per
// config directory, with PID-based stale lock detection.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another live process holds the lock.
var ErrAlreadyRunning = fmt.Errorf("another instance is already running")

// Lock is an acquired instance lock.
type Lock struct {
	flock    *flock.Flock
	pidFile  string
	lockPath string
}

// Acquire takes the instance lock under dir. A lock left behind by a dead
// process is cleaned up first.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, "repod.lock")
	pidFile := filepath.Join(dir, "repod.pid")

	cleanStaleLock(pidFile, lockPath)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		if pid, err := readPIDFile(pidFile); err == nil {
			return nil, fmt.Errorf("%w: held by PID %d", ErrAlreadyRunning, pid)
		}
		return nil, ErrAlreadyRunning
	}

	if err := writePIDFile(pidFile); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &Lock{flock: fl, pidFile: pidFile, lockPath: lockPath}, nil
}

// Release releases the lock and removes its files.
func (l *Lock) Release() error {
	os.Remove(l.pidFile)
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	os.Remove(l.lockPath)
	return nil
}

// cleanStaleLock removes lock files left by a process that no longer runs.
func cleanStaleLock(pidFile, lockPath string) {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return
	}
	if isProcessRunning(pid) {
		return
	}
	os.Remove(pidFile)
	os.Remove(lockPath)
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, FindProcess always succeeds; signal 0 probes liveness.
	err = proc.Signal(os.Signal(nil))
	if err == nil {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "process already finished") ||
		strings.Contains(errStr, "no such process") ||
		strings.Contains(errStr, "Access is denied") {
		return false
	}

	// If we can't determine, assume it's running.
	return true
}
