package repo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
)

// HealthState is the health of a registered root.
type HealthState string

const (
	HealthStateHealthy     HealthState = "healthy"
	HealthStateUnhealthy   HealthState = "unhealthy"
	HealthStateUnavailable HealthState = "unavailable"
	HealthStateNotGit      HealthState = "not_git"
)

// Status describes a registered root for API consumers.
type Status struct {
	ID          string      `json:"id"`
	Root        string      `json:"root"`
	Name        string      `json:"name,omitempty"`
	State       HealthState `json:"state"`
	Branch      string      `json:"branch,omitempty"`
	RepoState   string      `json:"repo_state,omitempty"`
	LastChecked time.Time   `json:"last_checked"`
	LastError   string      `json:"last_error,omitempty"`
}

// cachedRepo holds a repository with health metadata. The repository itself
// is opened lazily on first use.
type cachedRepo struct {
	id   string
	root string
	name string

	mu          sync.Mutex
	repo        *Repository
	state       HealthState
	lastChecked time.Time
	lastError   string
	initError   error
	initialized bool
}

// Manager is the registry of repositories keyed by ID, with a secondary
// index by root path. Repositories are opened lazily, cached, and health
// checked in the background.
type Manager struct {
	repos  map[string]*cachedRepo
	byRoot map[string]string // root path -> repo ID

	hub     ports.EventHub
	gitPath string

	healthCheckInterval time.Duration
	operationTimeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// ManagerConfig holds configuration for Manager.
type ManagerConfig struct {
	GitPath             string
	HealthCheckInterval time.Duration
	OperationTimeout    time.Duration
	Hub                 ports.EventHub
}

// DefaultManagerConfig returns default configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		GitPath:             "git",
		HealthCheckInterval: 5 * time.Minute,
		OperationTimeout:    60 * time.Second,
	}
}

// NewManager creates a manager and starts its health monitor.
func NewManager(cfg ManagerConfig) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		repos:               make(map[string]*cachedRepo),
		byRoot:              make(map[string]string),
		hub:                 cfg.Hub,
		gitPath:             cfg.GitPath,
		healthCheckInterval: cfg.HealthCheckInterval,
		operationTimeout:    cfg.OperationTimeout,
		ctx:                 ctx,
		cancel:              cancel,
	}

	go m.healthMonitor()

	return m
}

// Register adds a root to the registry. The repository is not opened until
// first use; registration only validates the path.
func (m *Manager) Register(id, root, name string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", root)
		}
		return fmt.Errorf("failed to access path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root)
	}

	m.mu.Lock()
	if existingID, ok := m.byRoot[root]; ok && existingID != id {
		m.mu.Unlock()
		return fmt.Errorf("root already registered as %s: %s", existingID, root)
	}
	if existing, ok := m.repos[id]; ok {
		if existing.root == root {
			m.mu.Unlock()
			return nil
		}
		// Same ID, new path: drop the stale entry.
		delete(m.byRoot, existing.root)
	}

	m.repos[id] = &cachedRepo{
		id:          id,
		root:        root,
		name:        name,
		state:       HealthStateUnavailable,
		lastChecked: time.Now().UTC(),
	}
	m.byRoot[root] = id
	m.mu.Unlock()

	log.Info().Str("repo_id", id).Str("root", root).Msg("repository registered")

	if m.hub != nil {
		m.hub.Publish(events.NewRepoRegisteredEvent(id, root, name))
	}
	return nil
}

// Unregister removes a root from the registry.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	cr, ok := m.repos[id]
	if ok {
		delete(m.repos, id)
		delete(m.byRoot, cr.root)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	log.Info().Str("repo_id", id).Str("root", cr.root).Msg("repository unregistered")

	if m.hub != nil {
		m.hub.Publish(events.NewRepoUnregisteredEvent(id, cr.root, cr.name))
	}
}

// Get returns the repository for an ID, opening it lazily on first use.
// Returns domain.ErrNotGitRepo (wrapped) for registered roots that are not
// git repositories.
func (m *Manager) Get(id string) (*Repository, error) {
	m.mu.RLock()
	cr, ok := m.repos[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepoNotRegistered, id)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.initialized {
		m.initialize(cr)
	}

	if cr.initError != nil {
		return nil, cr.initError
	}
	return cr.repo, nil
}

// GetByRoot returns the repository registered at the given root path.
func (m *Manager) GetByRoot(root string) (*Repository, error) {
	m.mu.RLock()
	id, ok := m.byRoot[root]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepoNotRegistered, root)
	}
	return m.Get(id)
}

// Status returns the health status of one registered root.
func (m *Manager) Status(id string) (*Status, error) {
	m.mu.RLock()
	cr, ok := m.repos[id]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRepoNotRegistered, id)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.initialized {
		m.initialize(cr)
	}
	st := cr.status()
	return &st, nil
}

// All returns the status of every registered root, without forcing lazy
// initialization.
func (m *Manager) All() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Status, 0, len(m.repos))
	for _, cr := range m.repos {
		cr.mu.Lock()
		result = append(result, cr.status())
		cr.mu.Unlock()
	}
	return result
}

// IDs returns the IDs of all registered roots.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.repos))
	for id := range m.repos {
		out = append(out, id)
	}
	return out
}

// Refresh forces re-initialization of a repository, used after the root
// reappears or turns into a git repo.
func (m *Manager) Refresh(id string) error {
	m.mu.RLock()
	cr, ok := m.repos[id]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRepoNotRegistered, id)
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.initialized = false
	cr.initError = nil
	cr.repo = nil

	m.initialize(cr)

	return cr.initError
}

// status must be called with cr.mu held.
func (cr *cachedRepo) status() Status {
	st := Status{
		ID:          cr.id,
		Root:        cr.root,
		Name:        cr.name,
		State:       cr.state,
		LastChecked: cr.lastChecked,
		LastError:   cr.lastError,
	}
	if cr.repo != nil {
		info := cr.repo.Info()
		st.Branch = info.Branch
		st.RepoState = string(info.State)
	}
	return st
}

// initialize opens the repository (must hold cr.mu).
func (m *Manager) initialize(cr *cachedRepo) {
	cr.initialized = true
	cr.lastChecked = time.Now().UTC()

	info, err := os.Stat(cr.root)
	if err != nil {
		if os.IsNotExist(err) {
			cr.initError = fmt.Errorf("root no longer exists: %s", cr.root)
			cr.state = HealthStateUnavailable
		} else {
			cr.initError = fmt.Errorf("failed to access root: %w", err)
			cr.state = HealthStateUnhealthy
		}
		cr.lastError = cr.initError.Error()
		return
	}
	if !info.IsDir() {
		cr.initError = fmt.Errorf("root is not a directory: %s", cr.root)
		cr.state = HealthStateUnhealthy
		cr.lastError = cr.initError.Error()
		return
	}

	repo, err := Open(cr.id, cr.root, cr.name, m.hub, m.gitPath, m.operationTimeout)
	if err != nil {
		if errors.Is(err, domain.ErrNotGitRepo) || errors.Is(err, domain.ErrNoGitDir) {
			cr.state = HealthStateNotGit
			cr.lastError = ""
			cr.initError = err
			log.Info().Str("repo_id", cr.id).Str("root", cr.root).Msg("root is not a git repository")
			return
		}
		cr.initError = err
		cr.state = HealthStateUnhealthy
		cr.lastError = err.Error()
		return
	}

	cr.repo = repo
	cr.state = HealthStateHealthy
	cr.lastError = ""
	cr.initError = nil

	log.Info().
		Str("repo_id", cr.id).
		Str("root", cr.root).
		Str("branch", repo.Info().Branch).
		Msg("repository opened")
}

// healthMonitor periodically rechecks all initialized repositories.
func (m *Manager) healthMonitor() {
	if m.healthCheckInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAll()
		}
	}
}

func (m *Manager) checkAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.repos))
	for id := range m.repos {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.checkHealth(id)
	}
}

func (m *Manager) checkHealth(id string) {
	m.mu.RLock()
	cr, ok := m.repos[id]
	m.mu.RUnlock()

	if !ok {
		return
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	if !cr.initialized {
		return
	}

	oldState := cr.state
	cr.lastChecked = time.Now().UTC()

	if _, err := os.Stat(cr.root); err != nil {
		if os.IsNotExist(err) {
			cr.state = HealthStateUnavailable
			cr.lastError = "root no longer exists"
		} else {
			cr.state = HealthStateUnhealthy
			cr.lastError = err.Error()
		}
	} else if cr.repo != nil {
		if err := cr.repo.Reread(); err != nil {
			cr.state = HealthStateUnhealthy
			cr.lastError = err.Error()
		} else {
			cr.state = HealthStateHealthy
			cr.lastError = ""
		}
	}

	if oldState != cr.state {
		log.Warn().
			Str("repo_id", id).
			Str("old_state", string(oldState)).
			Str("new_state", string(cr.state)).
			Str("error", cr.lastError).
			Msg("repository health changed")
	}
}

// Stop terminates the health monitor and clears the registry.
func (m *Manager) Stop() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	log.Info().Int("repo_count", len(m.repos)).Msg("stopping repository manager")
	m.repos = make(map[string]*cachedRepo)
	m.byRoot = make(map[string]string)
}

// Stats returns aggregate counts per health state.
func (m *Manager) Stats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var healthy, unhealthy, unavailable, notGit, uninitialized int

	for _, cr := range m.repos {
		cr.mu.Lock()
		if !cr.initialized {
			uninitialized++
		} else {
			switch cr.state {
			case HealthStateHealthy:
				healthy++
			case HealthStateUnhealthy:
				unhealthy++
			case HealthStateUnavailable:
				unavailable++
			case HealthStateNotGit:
				notGit++
			}
		}
		cr.mu.Unlock()
	}

	return map[string]interface{}{
		"total":         len(m.repos),
		"healthy":       healthy,
		"unhealthy":     unhealthy,
		"unavailable":   unavailable,
		"not_git":       notGit,
		"uninitialized": uninitialized,
	}
}
