package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRepos_CreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repos.yaml")

	cfg, err := LoadRepos(path)
	if err != nil {
		t.Fatalf("LoadRepos() error = %v", err)
	}
	if len(cfg.Repos) != 0 {
		t.Errorf("expected empty registry, got %d entries", len(cfg.Repos))
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected repos.yaml to be created: %v", err)
	}
}

func TestLoadRepos_FillsMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.yaml")

	content := `
repos:
  - path: "` + dir + `"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write repos.yaml: %v", err)
	}

	cfg, err := LoadRepos(path)
	if err != nil {
		t.Fatalf("LoadRepos() error = %v", err)
	}
	if len(cfg.Repos) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(cfg.Repos))
	}

	r := cfg.Repos[0]
	if !strings.HasPrefix(r.ID, "repo-") {
		t.Errorf("expected generated id with repo- prefix, got %q", r.ID)
	}
	if r.Name != filepath.Base(dir) {
		t.Errorf("expected name from path base, got %q", r.Name)
	}
	if r.CreatedAt.IsZero() {
		t.Error("expected created_at to be filled")
	}
}

func TestLoadRepos_RejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.yaml")

	content := `
repos:
  - id: repo-aaaa
    path: "` + filepath.Join(dir, "a") + `"
  - id: repo-aaaa
    path: "` + filepath.Join(dir, "b") + `"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write repos.yaml: %v", err)
	}

	if _, err := LoadRepos(path); err == nil {
		t.Error("expected error for duplicate repo ids")
	}
}

func TestReposConfig_AddAndRemove(t *testing.T) {
	dir := t.TempDir()
	cfg := &ReposConfig{}

	def, err := cfg.Add("", dir)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if def.Name != filepath.Base(dir) {
		t.Errorf("expected default name, got %q", def.Name)
	}
	if cfg.Find(def.ID) == nil {
		t.Error("Find should locate added repo")
	}

	if _, err := cfg.Add("again", dir); err == nil {
		t.Error("expected error for duplicate path")
	}

	if !cfg.Remove(def.ID) {
		t.Error("Remove should report true for known id")
	}
	if cfg.Remove(def.ID) {
		t.Error("Remove should report false for unknown id")
	}
}

func TestSaveAndReloadRepos(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.yaml")

	cfg := &ReposConfig{}
	def, err := cfg.Add("myrepo", dir)
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := SaveRepos(path, cfg); err != nil {
		t.Fatalf("SaveRepos() error = %v", err)
	}

	reloaded, err := LoadRepos(path)
	if err != nil {
		t.Fatalf("LoadRepos() error = %v", err)
	}
	if len(reloaded.Repos) != 1 {
		t.Fatalf("expected 1 entry after reload, got %d", len(reloaded.Repos))
	}
	if reloaded.Repos[0].ID != def.ID {
		t.Errorf("ID = %q, want %q", reloaded.Repos[0].ID, def.ID)
	}
	if reloaded.Repos[0].Name != "myrepo" {
		t.Errorf("Name = %q, want myrepo", reloaded.Repos[0].Name)
	}
}
