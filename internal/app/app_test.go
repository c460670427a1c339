package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/repod-io/repod/internal/config"
	"github.com/repod-io/repod/internal/lock"
)

func writeGitFixture(t *testing.T, dir string) {
	t.Helper()
	gitDir := filepath.Join(dir, ".git")
	if err := os.MkdirAll(filepath.Join(gitDir, "refs", "heads"), 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"HEAD":            "ref: refs/heads/main\n",
		"refs/heads/main": "1111111111111111111111111111111111111111\n",
		"config":          "[core]\n\trepositoryformatversion = 0\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(gitDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Server.Port = 0
	cfg.Fetcher.Enabled = false
	cfg.Limits.HealthCheckMins = 0

	a := New(cfg, filepath.Join(home, "repos.yaml"), "test")
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(a.Stop)
	return a
}

func TestStartAndStop(t *testing.T) {
	a := newTestApp(t)

	if a.Uptime() <= 0 {
		t.Error("Uptime() should be positive after start")
	}
	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start() should fail while running")
	}
}

func TestSecondInstanceBlocked(t *testing.T) {
	newTestApp(t)

	configDir, err := config.GetConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lock.Acquire(configDir); !errors.Is(err, lock.ErrAlreadyRunning) {
		t.Errorf("Acquire() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestAddRepo(t *testing.T) {
	a := newTestApp(t)

	dir := t.TempDir()
	writeGitFixture(t, dir)

	status, err := a.AddRepo("demo", dir)
	if err != nil {
		t.Fatalf("AddRepo() error = %v", err)
	}
	if status.Name != "demo" {
		t.Errorf("status.Name = %q, want demo", status.Name)
	}

	// Registry must be persisted.
	reloaded, err := config.LoadRepos(a.reposPath)
	if err != nil {
		t.Fatalf("LoadRepos() error = %v", err)
	}
	if len(reloaded.Repos) != 1 {
		t.Fatalf("persisted repos = %d, want 1", len(reloaded.Repos))
	}
	if reloaded.Repos[0].Path != dir {
		t.Errorf("persisted path = %q, want %q", reloaded.Repos[0].Path, dir)
	}

	if _, err := a.AddRepo("dup", dir); err == nil {
		t.Error("AddRepo() with duplicate path should fail")
	}
}

func TestRemoveRepo(t *testing.T) {
	a := newTestApp(t)

	dir := t.TempDir()
	writeGitFixture(t, dir)

	status, err := a.AddRepo("demo", dir)
	if err != nil {
		t.Fatalf("AddRepo() error = %v", err)
	}

	if err := a.RemoveRepo(status.ID); err != nil {
		t.Fatalf("RemoveRepo() error = %v", err)
	}

	reloaded, err := config.LoadRepos(a.reposPath)
	if err != nil {
		t.Fatalf("LoadRepos() error = %v", err)
	}
	if len(reloaded.Repos) != 0 {
		t.Errorf("persisted repos = %d, want 0", len(reloaded.Repos))
	}

	if err := a.RemoveRepo("repo-missing"); err == nil {
		t.Error("RemoveRepo() for unknown id should fail")
	}
}

func TestRepoLimit(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Limits.MaxRepos = 1

	dir := t.TempDir()
	writeGitFixture(t, dir)
	if _, err := a.AddRepo("first", dir); err != nil {
		t.Fatalf("AddRepo() error = %v", err)
	}

	other := t.TempDir()
	writeGitFixture(t, other)
	if _, err := a.AddRepo("second", other); err == nil {
		t.Error("AddRepo() past the repo limit should fail")
	}
}
