package gitstate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/repod-io/repod/internal/domain"
	"github.com/repod-io/repod/internal/gitconfig"
	"github.com/repod-io/repod/internal/gitdir"
)

const symrefPrefix = "ref: "

// Head is the parsed content of the HEAD file.
type Head struct {
	// Branch is the short branch name when HEAD is symbolic.
	Branch string
	// Hash is the raw object hash when HEAD is detached.
	Hash string
}

// ReadHead parses the HEAD file.
func ReadHead(layout *gitdir.Layout) (Head, error) {
	data, err := os.ReadFile(layout.Head())
	if err != nil {
		return Head{}, err
	}

	line := strings.TrimSpace(string(data))
	if strings.HasPrefix(line, symrefPrefix) {
		ref := strings.TrimSpace(strings.TrimPrefix(line, symrefPrefix))
		return Head{Branch: strings.TrimPrefix(ref, "refs/heads/")}, nil
	}

	if !isHash(line) {
		return Head{}, domain.NewParseError(layout.Head(), 1, "unrecognized HEAD content")
	}
	return Head{Hash: line}, nil
}

// Refs holds branch refs merged from loose files and packed-refs. Loose refs
// win over packed ones, matching git's own resolution order.
type Refs struct {
	Local  map[string]string // main -> hash
	Remote map[string]string // origin/main -> hash
}

// ReadRefs reads loose refs under refs/heads and refs/remotes plus the
// packed-refs file.
func ReadRefs(layout *gitdir.Layout) (*Refs, []error) {
	refs := &Refs{
		Local:  make(map[string]string),
		Remote: make(map[string]string),
	}
	var warnings []error

	warnings = append(warnings, readPackedRefs(layout.PackedRefs(), refs)...)
	warnings = append(warnings, readLooseRefs(layout.HeadsDir(), refs.Local)...)
	warnings = append(warnings, readLooseRefs(layout.RemotesDir(), refs.Remote)...)

	resolveSymbolic(refs.Local, "refs/heads/")
	resolveSymbolic(refs.Remote, "refs/remotes/")
	return refs, warnings
}

// readLooseRefs walks a refs directory, storing hash per slash-joined name.
func readLooseRefs(dir string, out map[string]string) []error {
	var warnings []error

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".lock") {
			return nil
		}
		name, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return nil
		}
		name = filepath.ToSlash(name)

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			warnings = append(warnings, readErr)
			return nil
		}
		line := strings.TrimSpace(string(data))
		switch {
		case isHash(line):
			out[name] = line
		case strings.HasPrefix(line, symrefPrefix):
			// Symbolic ref (e.g. refs/remotes/origin/HEAD); keep the target
			// ref name for a second resolution pass.
			out[name] = line
		default:
			warnings = append(warnings, domain.NewParseError(path, 1, "unrecognized ref content"))
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		warnings = append(warnings, err)
	}
	return warnings
}

// readPackedRefs parses the packed-refs file. Peeled lines (^hash) belong to
// the preceding annotated tag and are skipped; branch refs are never peeled.
func readPackedRefs(path string, refs *Refs) []error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []error{err}
	}

	var warnings []error
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}

		sp := strings.IndexByte(line, ' ')
		if sp < 0 || !isHash(line[:sp]) {
			warnings = append(warnings, domain.NewParseError(path, i+1, "malformed packed ref"))
			continue
		}
		hash, ref := line[:sp], strings.TrimSpace(line[sp+1:])

		switch {
		case strings.HasPrefix(ref, "refs/heads/"):
			refs.Local[strings.TrimPrefix(ref, "refs/heads/")] = hash
		case strings.HasPrefix(ref, "refs/remotes/"):
			refs.Remote[strings.TrimPrefix(ref, "refs/remotes/")] = hash
		}
		// Tags and other refs are not part of the snapshot.
	}
	return warnings
}

// resolveSymbolic resolves one level of symbolic refs (origin/HEAD ->
// origin/main) against the collected map, dropping the ones that cannot be
// resolved so every surviving value is a hash.
func resolveSymbolic(m map[string]string, prefix string) {
	for name, val := range m {
		if !strings.HasPrefix(val, symrefPrefix) {
			continue
		}
		target := strings.TrimPrefix(strings.TrimSpace(strings.TrimPrefix(val, symrefPrefix)), prefix)
		if hash, ok := m[target]; ok && isHash(hash) {
			m[name] = hash
		} else {
			delete(m, name)
		}
	}
}

// ReadState derives the lifecycle state from marker files. Operation states
// take priority over plain detachment: a mid-rebase repository has a detached
// HEAD too, but "rebasing" is the useful answer.
func ReadState(layout *gitdir.Layout, detached bool) State {
	if dirExists(layout.RebaseApplyDir()) || dirExists(layout.RebaseMergeDir()) {
		return StateRebasing
	}
	if fileExists(layout.MergeHead()) {
		return StateMerging
	}
	if fileExists(layout.CherryPickHead()) {
		return StateGrafting
	}
	if fileExists(layout.RevertHead()) {
		return StateReverting
	}
	if fileExists(layout.BisectLog()) {
		return StateBisecting
	}
	if detached {
		return StateDetached
	}
	return StateNormal
}

// Build assembles a full RepoInfo snapshot from the layout and parsed config.
func Build(layout *gitdir.Layout, cfg *gitconfig.Config, submodules []gitconfig.Submodule) (*RepoInfo, []error) {
	var warnings []error

	head, err := ReadHead(layout)
	if err != nil {
		warnings = append(warnings, err)
	}

	refs, refWarnings := ReadRefs(layout)
	warnings = append(warnings, refWarnings...)

	info := &RepoInfo{
		Branch:         head.Branch,
		Revision:       head.Hash,
		LocalBranches:  refs.Local,
		RemoteBranches: refs.Remote,
		Remotes:        cfg.Remotes(),
		Submodules:     submodules,
		ReadAt:         time.Now().UTC(),
	}

	if head.Branch != "" {
		// Symbolic HEAD: revision comes from the branch ref; absent ref means
		// a fresh repository with no commits yet.
		info.Revision = refs.Local[head.Branch]
	}
	info.State = ReadState(layout, info.Branch == "" && info.Revision != "")
	info.Tracking = resolveTracking(cfg, refs)

	return info, warnings
}

// resolveTracking maps branch.<n>.merge (a remote-side ref) through the
// remote's fetch refspecs to the local remote-tracking branch name.
func resolveTracking(cfg *gitconfig.Config, refs *Refs) []TrackingInfo {
	var out []TrackingInfo
	for _, t := range cfg.Trackings() {
		if t.Remote == "" || t.Merge == "" {
			continue
		}
		if t.IsLocal() {
			out = append(out, TrackingInfo{
				LocalBranch:  t.Branch,
				Remote:       ".",
				RemoteBranch: strings.TrimPrefix(t.Merge, "refs/heads/"),
			})
			continue
		}

		remote, ok := cfg.Remote(t.Remote)
		if !ok {
			continue
		}
		for _, spec := range remote.FetchRefspecs {
			if dst, ok := mapRefspec(spec, t.Merge); ok {
				out = append(out, TrackingInfo{
					LocalBranch:  t.Branch,
					Remote:       t.Remote,
					RemoteBranch: strings.TrimPrefix(dst, "refs/remotes/"),
				})
				break
			}
		}
	}
	return out
}

// mapRefspec maps a remote-side ref through a fetch refspec like
// "+refs/heads/*:refs/remotes/origin/*". A single * wildcard is supported,
// matching git's refspec rules.
func mapRefspec(spec, ref string) (string, bool) {
	spec = strings.TrimPrefix(spec, "+")
	colon := strings.IndexByte(spec, ':')
	if colon < 0 {
		return "", false
	}
	src, dst := spec[:colon], spec[colon+1:]

	srcStar := strings.IndexByte(src, '*')
	if srcStar < 0 {
		if src == ref {
			return dst, true
		}
		return "", false
	}

	prefix, suffix := src[:srcStar], src[srcStar+1:]
	if !strings.HasPrefix(ref, prefix) || !strings.HasSuffix(ref, suffix) || len(ref) < len(prefix)+len(suffix) {
		return "", false
	}
	matched := ref[len(prefix) : len(ref)-len(suffix)]

	dstStar := strings.IndexByte(dst, '*')
	if dstStar < 0 {
		return dst, true
	}
	return dst[:dstStar] + matched + dst[dstStar+1:], true
}

// isHash reports whether s looks like a full object hash (SHA-1 or SHA-256).
func isHash(s string) bool {
	if len(s) != 40 && len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
