// Package app orchestrates all components of repod.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/adapters/watcher"
	"github.com/repod-io/repod/internal/config"
	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/hub"
	"github.com/repod-io/repod/internal/journal"
	"github.com/repod-io/repod/internal/lock"
	"github.com/repod-io/repod/internal/repo"
	httpserver "github.com/repod-io/repod/internal/server/http"
	"github.com/repod-io/repod/internal/server/websocket"
	"github.com/repod-io/repod/internal/update"
)

// pipeline is the per-repository watch machinery: the file watcher feeding
// the hub and the updater consuming repo-scoped events from it.
type pipeline struct {
	watcher *watcher.Watcher
	updater *repo.Updater
	cancel  context.CancelFunc
}

// App wires the hub, repository manager, watchers, servers, and journal
// together for the daemon lifetime.
type App struct {
	cfg       *config.Config
	reposPath string
	version   string

	hub        *hub.Hub
	manager    *repo.Manager
	journal    *journal.Journal
	wsHandler  *websocket.Handler
	httpServer *httpserver.Server
	instance   *lock.Lock

	registry *config.ReposConfig

	mu        sync.Mutex
	pipelines map[string]*pipeline
	running   bool

	bgCancel  context.CancelFunc
	startTime time.Time
}

// New creates a new App instance. reposPath may be empty to use the default
// registry location.
func New(cfg *config.Config, reposPath, version string) *App {
	if reposPath == "" {
		reposPath = config.DefaultReposPath()
	}

	eventHub := hub.New()

	healthInterval := time.Duration(cfg.Limits.HealthCheckMins) * time.Minute
	manager := repo.NewManager(repo.ManagerConfig{
		GitPath:             cfg.Git.Command,
		HealthCheckInterval: healthInterval,
		OperationTimeout:    time.Duration(cfg.Git.TimeoutSecs) * time.Second,
		Hub:                 eventHub,
	})

	return &App{
		cfg:       cfg,
		reposPath: reposPath,
		version:   version,
		hub:       eventHub,
		manager:   manager,
		pipelines: make(map[string]*pipeline),
	}
}

// Start brings up all components. It returns once the daemon is serving.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("application is already running")
	}
	a.running = true
	a.startTime = time.Now()
	a.mu.Unlock()

	configDir, err := config.EnsureConfigDir()
	if err != nil {
		return fmt.Errorf("failed to prepare config directory: %w", err)
	}

	instance, err := lock.Acquire(configDir)
	if err != nil {
		return err
	}
	a.instance = instance

	if err := a.hub.Start(); err != nil {
		return fmt.Errorf("failed to start event hub: %w", err)
	}

	logSub := hub.NewLogSubscriber("internal-logger", func(event events.Event) {
		log.Trace().
			Str("event_type", string(event.Type())).
			Str("repo_id", event.GetRepoID()).
			Msg("event broadcast")
	})
	a.hub.Subscribe(logSub)

	if a.cfg.Journal.Enabled {
		jnl, err := journal.Open(a.cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		a.journal = jnl
	}

	registry, err := config.LoadRepos(a.reposPath)
	if err != nil {
		return fmt.Errorf("failed to load repo registry: %w", err)
	}
	a.registry = registry

	for _, def := range registry.Repos {
		if err := a.manager.Register(def.ID, def.Path, def.Name); err != nil {
			log.Warn().Err(err).Str("repo_id", def.ID).Str("path", def.Path).Msg("skipping registered repo")
			continue
		}
		a.startPipeline(def.ID)
	}

	a.wsHandler = websocket.NewHandler(a.hub, a.manager)
	a.httpServer = httpserver.New(a.cfg.Server.Host, a.cfg.Server.Port, a.manager, a, a.journal, a.hub, a.wsHandler)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel
	if a.cfg.Fetcher.Enabled {
		go a.autoFetchLoop(bgCtx)
	}
	if a.journal != nil {
		go a.journalPruneLoop(bgCtx)
	}

	log.Info().
		Str("version", a.version).
		Int("repos", len(registry.Repos)).
		Int("port", a.cfg.Server.Port).
		Msg("repod started")

	return nil
}

// Stop tears everything down in reverse order of Start.
func (a *App) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.mu.Unlock()

	if a.bgCancel != nil {
		a.bgCancel()
	}

	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.httpServer.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP server shutdown error")
		}
		cancel()
	}
	if a.wsHandler != nil {
		a.wsHandler.Stop()
	}

	a.mu.Lock()
	ids := make([]string, 0, len(a.pipelines))
	for id := range a.pipelines {
		ids = append(ids, id)
	}
	a.mu.Unlock()
	for _, id := range ids {
		a.stopPipeline(id)
	}

	a.manager.Stop()

	if err := a.hub.Stop(); err != nil {
		log.Warn().Err(err).Msg("event hub shutdown error")
	}

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("journal close error")
		}
	}

	if a.instance != nil {
		if err := a.instance.Release(); err != nil {
			log.Warn().Err(err).Msg("failed to release instance lock")
		}
	}

	log.Info().Msg("repod stopped")
}

// AddRepo registers a repository, persists it, and starts its pipeline.
// Implements the HTTP server's Registrar.
func (a *App) AddRepo(name, path string) (*repo.Status, error) {
	a.mu.Lock()
	if len(a.registry.Repos) >= a.cfg.Limits.MaxRepos {
		a.mu.Unlock()
		return nil, fmt.Errorf("repository limit reached (%d)", a.cfg.Limits.MaxRepos)
	}

	def, err := a.registry.Add(name, path)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	saveErr := config.SaveRepos(a.reposPath, a.registry)
	a.mu.Unlock()

	if saveErr != nil {
		return nil, saveErr
	}

	if err := a.manager.Register(def.ID, def.Path, def.Name); err != nil {
		return nil, err
	}
	a.startPipeline(def.ID)

	return a.manager.Status(def.ID)
}

// RemoveRepo stops a repository's pipeline and drops it from the registry.
// Implements the HTTP server's Registrar.
func (a *App) RemoveRepo(id string) error {
	a.mu.Lock()
	found := a.registry.Remove(id)
	var saveErr error
	if found {
		saveErr = config.SaveRepos(a.reposPath, a.registry)
	}
	a.mu.Unlock()

	if !found {
		return fmt.Errorf("repository not registered: %s", id)
	}
	if saveErr != nil {
		return saveErr
	}

	a.stopPipeline(id)
	a.manager.Unregister(id)
	return nil
}

// startPipeline wires the watcher and updater for one repository. A root
// that cannot be opened (missing, not a git repo) gets no pipeline; the
// health monitor keeps probing it.
func (a *App) startPipeline(id string) {
	if !a.cfg.Watcher.Enabled {
		return
	}

	r, err := a.manager.Get(id)
	if err != nil {
		log.Warn().Err(err).Str("repo_id", id).Msg("pipeline not started")
		return
	}

	w := watcher.NewWatcher(id, r.Root, a.hub, a.cfg.Watcher.DebounceMS, config.IgnorePatternsOrDefault(a.cfg.Watcher.IgnorePatterns))

	layout := r.Layout()
	if !strings.HasPrefix(layout.GitDir, r.Root+string(filepath.Separator)) {
		// Linked worktree: the git dir lives outside the watched root.
		w.AddRoot(layout.GitDir)
	}
	if layout.CommonDir != layout.GitDir {
		w.AddRoot(layout.CommonDir)
	}
	// High-churn git internals the state cache never reads from.
	w.AddSkipPath(filepath.Join(layout.CommonDir, "objects"))
	w.AddSkipPath(filepath.Join(layout.CommonDir, "logs"))
	w.AddSkipPath(filepath.Join(layout.CommonDir, "hooks"))
	w.AddSkipPath(filepath.Join(layout.CommonDir, "lfs"))

	u := repo.NewUpdater(r, a.hub)

	pctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(pctx); err != nil {
		cancel()
		log.Warn().Err(err).Str("repo_id", id).Msg("failed to start watcher")
		return
	}
	if err := u.Start(pctx); err != nil {
		_ = w.Stop()
		cancel()
		log.Warn().Err(err).Str("repo_id", id).Msg("failed to start updater")
		return
	}

	a.mu.Lock()
	a.pipelines[id] = &pipeline{watcher: w, updater: u, cancel: cancel}
	a.mu.Unlock()

	log.Debug().Str("repo_id", id).Str("root", r.Root).Msg("pipeline started")
}

// stopPipeline stops and removes one repository's pipeline, if any.
func (a *App) stopPipeline(id string) {
	a.mu.Lock()
	p := a.pipelines[id]
	delete(a.pipelines, id)
	a.mu.Unlock()

	if p == nil {
		return
	}

	p.updater.Stop()
	if err := p.watcher.Stop(); err != nil {
		log.Warn().Err(err).Str("repo_id", id).Msg("watcher stop error")
	}
	p.cancel()
}

// autoFetchLoop periodically fetches every registered repository.
func (a *App) autoFetchLoop(ctx context.Context) {
	interval := time.Duration(a.cfg.Fetcher.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Dur("interval", interval).Msg("auto-fetch loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.fetchAll(ctx)
		}
	}
}

func (a *App) fetchAll(ctx context.Context) {
	for _, id := range a.manager.IDs() {
		r, err := a.manager.Get(id)
		if err != nil {
			continue
		}

		fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(a.cfg.Git.TimeoutSecs)*time.Second)
		results, err := update.NewFetcher(r, a.hub).Fetch(fetchCtx, update.FetchOptions{Prune: a.cfg.Fetcher.Prune})
		cancel()

		if err != nil {
			log.Debug().Err(err).Str("repo_id", id).Msg("auto-fetch skipped")
			continue
		}

		success := true
		for _, res := range results {
			if !res.Success {
				success = false
			}
		}
		if a.journal != nil {
			outcome := "success"
			if !success {
				outcome = "error"
			}
			_, _ = a.journal.Record(ctx, journal.Entry{
				RepoID:    id,
				Operation: "auto_fetch",
				Outcome:   outcome,
				Success:   success,
			})
		}
	}
}

// journalPruneLoop trims journal entries past the retention window.
func (a *App) journalPruneLoop(ctx context.Context) {
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	retention := time.Duration(a.cfg.Journal.RetentionDays) * 24 * time.Hour

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.journal.Prune(ctx, retention); err != nil {
				log.Warn().Err(err).Msg("journal prune failed")
			}
		}
	}
}

// Uptime reports how long the daemon has been running.
func (a *App) Uptime() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startTime.IsZero() {
		return 0
	}
	return time.Since(a.startTime)
}
