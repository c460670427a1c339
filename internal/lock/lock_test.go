package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "repod.pid")); err != nil {
		t.Errorf("expected pid file: %v", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "repod.pid")); !os.IsNotExist(err) {
		t.Error("expected pid file removed after release")
	}
}

func TestAcquireTwiceSameProcess(t *testing.T) {
	dir := t.TempDir()

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer l.Release()

	// flock is per-process on most platforms, so a second acquire in the
	// same process succeeds. The PID check is what guards across processes.
	pid, err := readPIDFile(filepath.Join(dir, "repod.pid"))
	if err != nil {
		t.Fatalf("readPIDFile failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestStaleLockCleanedUp(t *testing.T) {
	dir := t.TempDir()

	// Simulate a dead process: write an unlikely-to-exist PID.
	pidFile := filepath.Join(dir, "repod.pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(1<<22-1)), 0644); err != nil {
		t.Fatalf("failed to write stale pid: %v", err)
	}

	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire with stale lock failed: %v", err)
	}
	defer l.Release()

	pid, err := readPIDFile(pidFile)
	if err != nil {
		t.Fatalf("readPIDFile failed: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want current process %d", pid, os.Getpid())
	}
}

func TestReadPIDFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error for invalid pid file")
	}
}
