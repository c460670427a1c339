package repo

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
	"github.com/repod-io/repod/internal/gitdir"
	"github.com/repod-io/repod/internal/hub"
)

// rereadDelay coalesces bursts of plumbing-file changes into one snapshot
// rebuild. A checkout touches HEAD, the index and many refs in quick
// succession.
const rereadDelay = 200 * time.Millisecond

// Updater consumes file events for one repository and keeps its snapshot
// and untracked cache current. Changed paths are classified against the
// gitdir layout; each kind maps to a fixed action.
type Updater struct {
	repo     *Repository
	eventHub ports.EventHub

	sub    *hub.ChannelSubscriber
	cancel context.CancelFunc

	mu          sync.Mutex
	rereadTimer *time.Timer
	running     bool
}

// NewUpdater creates an updater for the repository.
func NewUpdater(r *Repository, eventHub ports.EventHub) *Updater {
	return &Updater{
		repo:     r,
		eventHub: eventHub,
	}
}

// Start subscribes to the hub and launches the event loop.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		return nil
	}
	u.running = true

	loopCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel

	u.sub = hub.NewChannelSubscriber("updater-"+u.repo.ID, 256)
	filtered := hub.NewFilteredSubscriber(u.sub)
	filtered.SubscribeRepo(u.repo.ID)
	u.mu.Unlock()

	u.eventHub.Subscribe(filtered)

	go u.loop(loopCtx)

	log.Debug().Str("repo_id", u.repo.ID).Msg("repository updater started")
	return nil
}

// Stop unsubscribes and terminates the event loop.
func (u *Updater) Stop() {
	u.mu.Lock()
	if !u.running {
		u.mu.Unlock()
		return
	}
	u.running = false
	if u.rereadTimer != nil {
		u.rereadTimer.Stop()
		u.rereadTimer = nil
	}
	cancel := u.cancel
	subID := u.sub.ID()
	u.mu.Unlock()

	u.eventHub.Unsubscribe(subID)
	if cancel != nil {
		cancel()
	}

	log.Debug().Str("repo_id", u.repo.ID).Msg("repository updater stopped")
}

func (u *Updater) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.sub.Done():
			return
		case ev, ok := <-u.sub.Events():
			if !ok {
				return
			}
			u.handle(ev)
		}
	}
}

func (u *Updater) handle(ev events.Event) {
	if ev.Type() != events.EventTypeFileChanged && ev.Type() != events.EventTypeFileRenamed {
		return
	}
	base, ok := ev.(*events.BaseEvent)
	if !ok {
		return
	}
	payload, ok := base.Payload.(events.FileChangedPayload)
	if !ok {
		return
	}

	u.handlePath(payload.Path, payload.Change)
	if payload.OldPath != "" {
		u.handlePath(payload.OldPath, events.FileChangeDeleted)
	}
}

// handlePath maps one changed path to its action.
func (u *Updater) handlePath(path string, change events.FileChangeType) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(u.repo.Root, path)
	}

	kind := u.repo.Layout().Classify(abs)

	log.Trace().
		Str("repo_id", u.repo.ID).
		Str("path", path).
		Str("kind", kind.String()).
		Msg("classified file change")

	switch kind {
	case gitdir.KindIgnored:
		return

	case gitdir.KindHead, gitdir.KindRef, gitdir.KindPackedRefs,
		gitdir.KindMergeState, gitdir.KindRebaseState, gitdir.KindOrigHead:
		// A HEAD move changes what "tracked" means.
		if kind == gitdir.KindHead {
			u.repo.Untracked().Invalidate()
		}
		u.scheduleReread()

	case gitdir.KindConfig, gitdir.KindModules:
		u.scheduleReread()

	case gitdir.KindIndex, gitdir.KindExclude:
		u.repo.Untracked().Invalidate()
		u.eventHub.Publish(events.NewRepoEvent(events.EventTypeStatusChanged, u.repo.ID, events.StatusChangedPayload{}))

	case gitdir.KindFetchHead:
		// An external `git fetch` finished; remote-tracking refs follow as
		// separate ref events.
		u.eventHub.Publish(events.NewFetchCompletedEvent(u.repo.ID, "", true, nil, ""))

	case gitdir.KindWorkTree:
		switch change {
		case events.FileChangeCreated:
			u.repo.Untracked().OnFileCreated(path)
		case events.FileChangeDeleted:
			u.repo.Untracked().OnFileDeleted(path)
		case events.FileChangeRenamed:
			u.repo.Untracked().OnFileCreated(path)
		}
	}
}

// scheduleReread arms (or re-arms) the coalescing timer for a snapshot
// rebuild.
func (u *Updater) scheduleReread() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.running {
		return
	}
	if u.rereadTimer != nil {
		u.rereadTimer.Stop()
	}
	u.rereadTimer = time.AfterFunc(rereadDelay, func() {
		if err := u.repo.Reread(); err != nil {
			log.Warn().Err(err).Str("repo_id", u.repo.ID).Msg("snapshot reread failed")
		}
	})
}
