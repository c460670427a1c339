package hub

import (
	"sync"

	"github.com/repod-io/repod/internal/domain/events"
	"github.com/repod-io/repod/internal/domain/ports"
)

// FilteredSubscriber wraps a subscriber and filters events by repository ID.
// Events without a repository ID (daemon-level events) always pass. With an
// empty filter every event passes, so clients that never narrow their
// subscription see the full stream.
type FilteredSubscriber struct {
	inner ports.Subscriber
	repos map[string]bool
	mu    sync.RWMutex
}

// NewFilteredSubscriber wraps the given subscriber with an empty filter.
func NewFilteredSubscriber(inner ports.Subscriber) *FilteredSubscriber {
	return &FilteredSubscriber{
		inner: inner,
		repos: make(map[string]bool),
	}
}

// ID returns the wrapped subscriber's identifier.
func (f *FilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send forwards the event when it passes the filter.
func (f *FilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil
	}
	return f.inner.Send(event)
}

// Close closes the wrapped subscriber.
func (f *FilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns the wrapped subscriber's done channel.
func (f *FilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// SubscribeRepo narrows the subscription to include the given repository.
func (f *FilteredSubscriber) SubscribeRepo(repoID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[repoID] = true
}

// UnsubscribeRepo removes a repository from the filter.
func (f *FilteredSubscriber) UnsubscribeRepo(repoID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.repos, repoID)
}

// SubscribeAll clears the filter so every event is forwarded again.
func (f *FilteredSubscriber) SubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos = make(map[string]bool)
}

// SubscribedRepos returns the repository IDs currently in the filter.
func (f *FilteredSubscriber) SubscribedRepos() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]string, 0, len(f.repos))
	for id := range f.repos {
		result = append(result, id)
	}
	return result
}

// IsFiltering reports whether the filter narrows the stream.
func (f *FilteredSubscriber) IsFiltering() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.repos) > 0
}

func (f *FilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.repos) == 0 {
		return true
	}

	repoID := event.GetRepoID()
	if repoID == "" {
		return true
	}

	return f.repos[repoID]
}
