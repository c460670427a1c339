// Package gitstate reads git plumbing files (HEAD, loose refs, packed-refs,
// state markers) into an immutable RepoInfo snapshot. All reads are plain
// file IO; the git binary is never invoked.
package gitstate

import (
	"time"

	"github.com/repod-io/repod/internal/gitconfig"
)

// State is the coarse lifecycle state of a repository.
type State string

const (
	StateNormal    State = "normal"
	StateMerging   State = "merging"
	StateRebasing  State = "rebasing"
	StateGrafting  State = "grafting" // cherry-pick in progress
	StateReverting State = "reverting"
	StateBisecting State = "bisecting"
	StateDetached  State = "detached"
)

// TrackingInfo links a local branch to its remote-tracking branch, resolved
// through the remote's fetch refspecs.
type TrackingInfo struct {
	LocalBranch  string `json:"local_branch"`
	Remote       string `json:"remote"`
	RemoteBranch string `json:"remote_branch"` // e.g. origin/main
}

// RepoInfo is an immutable snapshot of repository state at a point in time.
// Maps are never mutated after Build returns; callers may share a RepoInfo
// freely across goroutines.
type RepoInfo struct {
	Branch   string `json:"branch,omitempty"`   // empty when detached
	Revision string `json:"revision,omitempty"` // empty on a fresh repository
	State    State  `json:"state"`

	LocalBranches  map[string]string `json:"local_branches"`  // name -> hash
	RemoteBranches map[string]string `json:"remote_branches"` // origin/main -> hash

	Remotes    []*gitconfig.Remote   `json:"remotes"`
	Tracking   []TrackingInfo        `json:"tracking"`
	Submodules []gitconfig.Submodule `json:"submodules,omitempty"`

	ReadAt time.Time `json:"read_at"`
}

// IsDetached reports whether HEAD does not point at a branch.
func (i *RepoInfo) IsDetached() bool { return i.Branch == "" }

// IsFresh reports whether the repository has no commits yet.
func (i *RepoInfo) IsFresh() bool { return i.Branch != "" && i.Revision == "" }

// TrackingFor returns the tracking info for a local branch.
func (i *RepoInfo) TrackingFor(branch string) (TrackingInfo, bool) {
	for _, t := range i.Tracking {
		if t.LocalBranch == branch {
			return t, true
		}
	}
	return TrackingInfo{}, false
}

// RemoteNames returns the names of all configured remotes.
func (i *RepoInfo) RemoteNames() []string {
	out := make([]string, 0, len(i.Remotes))
	for _, r := range i.Remotes {
		out = append(out, r.Name)
	}
	return out
}
