package gitexec

import "strings"

// FailureKind classifies why a git invocation failed, derived from its
// output. Git's exit codes alone do not distinguish these cases.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureConflict
	FailureLocalChanges
	FailureNoRemoteRef
	FailureAuth
	FailureUnknown
)

// String returns the name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureConflict:
		return "conflict"
	case FailureLocalChanges:
		return "local-changes"
	case FailureNoRemoteRef:
		return "no-remote-ref"
	case FailureAuth:
		return "auth"
	default:
		return "unknown"
	}
}

const localChangesMarker = "would be overwritten by"

// ClassifyFailure inspects a failed result's output. Called only when
// Success() is false; a successful result always classifies as FailureNone.
func ClassifyFailure(res *Result) FailureKind {
	if res.Success() {
		return FailureNone
	}

	combined := res.Stdout + "\n" + res.Stderr
	switch {
	case strings.Contains(combined, "CONFLICT") ||
		strings.Contains(combined, "Merge conflict") ||
		strings.Contains(combined, "could not apply"):
		return FailureConflict
	case strings.Contains(combined, localChangesMarker):
		return FailureLocalChanges
	case strings.Contains(combined, "couldn't find remote ref") ||
		strings.Contains(combined, "no such ref was fetched"):
		return FailureNoRemoteRef
	case strings.Contains(combined, "Authentication failed") ||
		strings.Contains(combined, "could not read Username") ||
		strings.Contains(combined, "Permission denied (publickey"):
		return FailureAuth
	default:
		return FailureUnknown
	}
}

// LocalChangesPaths extracts the file list from git's "Your local changes to
// the following files would be overwritten" error block. Paths are indented
// with a tab; the block ends at the "Please commit" / "Aborting" advice.
func LocalChangesPaths(output string) []string {
	var paths []string
	inBlock := false
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, localChangesMarker) {
			inBlock = true
			continue
		}
		if !inBlock {
			continue
		}
		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
			if p := strings.TrimSpace(line); p != "" {
				paths = append(paths, p)
			}
			continue
		}
		inBlock = false
	}
	return paths
}
