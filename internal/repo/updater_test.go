package repo

import (
	"testing"
	"time"

	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/testutil"
)

func newTestUpdater(t *testing.T, hub *testutil.MockEventHub) (*Updater, *Repository, string) {
	t.Helper()
	root := standardFixture(t)
	r, err := Open("repo-1", root, "repo", hub, "git", time.Minute)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return NewUpdater(r, hub), r, root
}

func TestUpdater_IndexChangeInvalidatesUntracked(t *testing.T) {
	hub := testutil.NewMockEventHub()
	u, r, _ := newTestUpdater(t, hub)

	u.handlePath(".git/index", events.FileChangeModified)

	if !r.Untracked().IsDirty() {
		t.Error("untracked holder should be dirty after index change")
	}
	if len(hub.EventsOfType(events.EventTypeStatusChanged)) != 1 {
		t.Error("status_changed event not published")
	}
}

func TestUpdater_FetchHeadPublishesFetchCompleted(t *testing.T) {
	hub := testutil.NewMockEventHub()
	u, _, _ := newTestUpdater(t, hub)

	u.handlePath(".git/FETCH_HEAD", events.FileChangeModified)

	if len(hub.EventsOfType(events.EventTypeFetchCompleted)) != 1 {
		t.Error("fetch_completed event not published")
	}
}

func TestUpdater_LockFilesIgnored(t *testing.T) {
	hub := testutil.NewMockEventHub()
	u, _, _ := newTestUpdater(t, hub)
	u.running = true

	u.handlePath(".git/index.lock", events.FileChangeCreated)
	u.handlePath(".git/HEAD.lock", events.FileChangeCreated)
	u.handlePath(".git/objects/ab/cdef", events.FileChangeCreated)

	if len(hub.PublishedEvents()) != 0 {
		t.Errorf("published %d events for noise paths, want 0", len(hub.PublishedEvents()))
	}
	u.mu.Lock()
	armed := u.rereadTimer != nil
	u.mu.Unlock()
	if armed {
		t.Error("reread timer should not be armed for noise paths")
	}
}

func TestUpdater_HeadChangeTriggersReread(t *testing.T) {
	hub := testutil.NewMockEventHub()
	u, r, root := newTestUpdater(t, hub)
	u.running = true
	defer u.Stop()

	writeGitFiles(t, root, map[string]string{
		"HEAD":           "ref: refs/heads/dev\n",
		"refs/heads/dev": hashB + "\n",
	})

	u.handlePath(".git/HEAD", events.FileChangeModified)

	deadline := time.After(2 * time.Second)
	for r.Info().Branch != "dev" {
		select {
		case <-deadline:
			t.Fatalf("Branch = %q after reread window, want dev", r.Info().Branch)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if len(hub.EventsOfType(events.EventTypeBranchChanged)) != 1 {
		t.Error("branch_changed event not published")
	}
}

func TestUpdater_RenameEventHandlesBothPaths(t *testing.T) {
	hub := testutil.NewMockEventHub()
	u, r, _ := newTestUpdater(t, hub)

	// Seed the holder so worktree events are tracked.
	r.Untracked().OnFileCreated("ignored-before-ready.txt")

	ev := events.NewFileRenamedEvent("repo-1", "old.txt", "new.txt")
	u.handle(ev)

	// Both paths are worktree paths; with an unseeded holder this is a
	// no-op, the point is that classification does not reread.
	u.mu.Lock()
	armed := u.rereadTimer != nil
	u.mu.Unlock()
	if armed {
		t.Error("worktree rename should not arm the reread timer")
	}
}

func TestUpdater_StartStop(t *testing.T) {
	hub := testutil.NewMockEventHub()
	u, _, _ := newTestUpdater(t, hub)

	ctx := t.Context()
	if err := u.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if hub.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", hub.SubscriberCount())
	}

	// Starting again is a no-op.
	if err := u.Start(ctx); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	u.Stop()
	if hub.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after Stop = %d, want 0", hub.SubscriberCount())
	}

	// Stopping again is a no-op.
	u.Stop()
}
