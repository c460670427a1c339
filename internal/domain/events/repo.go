package events

// RepoStateChangedPayload is the payload for repo_state_changed events. It
// carries the delta between two consecutive RepoInfo snapshots, not the
// snapshots themselves; clients fetch the full snapshot over HTTP if needed.
type RepoStateChangedPayload struct {
	Branch       string `json:"branch,omitempty"`
	Revision     string `json:"revision,omitempty"`
	State        string `json:"state"`
	BranchesHash string `json:"branches_hash,omitempty"`
}

// NewRepoStateChangedEvent creates a new repo_state_changed event.
func NewRepoStateChangedEvent(repoID, branch, revision, state string) *BaseEvent {
	return NewRepoEvent(EventTypeRepoStateChanged, repoID, RepoStateChangedPayload{
		Branch:   branch,
		Revision: revision,
		State:    state,
	})
}

// BranchChangedPayload is the payload for branch_changed events.
type BranchChangedPayload struct {
	FromBranch string `json:"from_branch"`
	ToBranch   string `json:"to_branch"`
}

// NewBranchChangedEvent creates a new branch_changed event.
func NewBranchChangedEvent(repoID, fromBranch, toBranch string) *BaseEvent {
	return NewRepoEvent(EventTypeBranchChanged, repoID, BranchChangedPayload{
		FromBranch: fromBranch,
		ToBranch:   toBranch,
	})
}

// RemotesChangedPayload is the payload for remotes_changed events.
type RemotesChangedPayload struct {
	Remotes []string `json:"remotes"`
}

// NewRemotesChangedEvent creates a new remotes_changed event.
func NewRemotesChangedEvent(repoID string, remotes []string) *BaseEvent {
	return NewRepoEvent(EventTypeRemotesChanged, repoID, RemotesChangedPayload{
		Remotes: remotes,
	})
}

// UntrackedChangedPayload is the payload for untracked_changed events.
type UntrackedChangedPayload struct {
	Count int  `json:"count"`
	Full  bool `json:"full"` // true when the holder did a full rescan
}

// NewUntrackedChangedEvent creates a new untracked_changed event.
func NewUntrackedChangedEvent(repoID string, count int, full bool) *BaseEvent {
	return NewRepoEvent(EventTypeUntrackedChanged, repoID, UntrackedChangedPayload{
		Count: count,
		Full:  full,
	})
}

// StatusChangedPayload is the payload for status_changed events.
type StatusChangedPayload struct {
	Branch         string `json:"branch"`
	Ahead          int    `json:"ahead"`
	Behind         int    `json:"behind"`
	StagedCount    int    `json:"staged_count"`
	UnstagedCount  int    `json:"unstaged_count"`
	UntrackedCount int    `json:"untracked_count"`
	HasConflicts   bool   `json:"has_conflicts"`
}

// FetchCompletedPayload is the payload for fetch_completed events.
type FetchCompletedPayload struct {
	Remote      string   `json:"remote"`
	Success     bool     `json:"success"`
	UpdatedRefs []string `json:"updated_refs,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// NewFetchCompletedEvent creates a new fetch_completed event.
func NewFetchCompletedEvent(repoID, remote string, success bool, updatedRefs []string, errMsg string) *BaseEvent {
	return NewRepoEvent(EventTypeFetchCompleted, repoID, FetchCompletedPayload{
		Remote:      remote,
		Success:     success,
		UpdatedRefs: updatedRefs,
		Error:       errMsg,
	})
}

// UpdateCompletedPayload is the payload for update_completed events.
type UpdateCompletedPayload struct {
	Method           string   `json:"method"` // merge or rebase
	Outcome          string   `json:"outcome"`
	ConflictingFiles []string `json:"conflicting_files,omitempty"`
	OverwrittenFiles []string `json:"overwritten_files,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// NewUpdateCompletedEvent creates a new update_completed event.
func NewUpdateCompletedEvent(repoID, method, outcome string, conflicting, overwritten []string, errMsg string) *BaseEvent {
	return NewRepoEvent(EventTypeUpdateCompleted, repoID, UpdateCompletedPayload{
		Method:           method,
		Outcome:          outcome,
		ConflictingFiles: conflicting,
		OverwrittenFiles: overwritten,
		Error:            errMsg,
	})
}

// OperationCompletedPayload is the payload for operation_completed events
// (stage, unstage, commit, checkout and friends).
type OperationCompletedPayload struct {
	Operation     string `json:"operation"`
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	SHA           string `json:"sha,omitempty"`
	Branch        string `json:"branch,omitempty"`
	FilesAffected int    `json:"files_affected,omitempty"`
}

// NewOperationCompletedEvent creates a new operation_completed event.
func NewOperationCompletedEvent(repoID string, payload OperationCompletedPayload) *BaseEvent {
	return NewRepoEvent(EventTypeOperationCompleted, repoID, payload)
}

// RepoRegisteredPayload is the payload for repo_registered and
// repo_unregistered events.
type RepoRegisteredPayload struct {
	ID   string `json:"id"`
	Root string `json:"root"`
	Name string `json:"name"`
}

// NewRepoRegisteredEvent creates a new repo_registered event.
func NewRepoRegisteredEvent(id, root, name string) *BaseEvent {
	return NewRepoEvent(EventTypeRepoRegistered, id, RepoRegisteredPayload{
		ID: id, Root: root, Name: name,
	})
}

// NewRepoUnregisteredEvent creates a new repo_unregistered event.
func NewRepoUnregisteredEvent(id, root, name string) *BaseEvent {
	return NewRepoEvent(EventTypeRepoUnregistered, id, RepoRegisteredPayload{
		ID: id, Root: root, Name: name,
	})
}
