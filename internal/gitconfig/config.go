package gitconfig

import (
	"os"
	"sort"
	"strings"
)

// Remote is a configured remote with its urls and fetch refspecs.
type Remote struct {
	Name          string   `json:"name"`
	URLs          []string `json:"urls"`
	PushURLs      []string `json:"push_urls,omitempty"`
	FetchRefspecs []string `json:"fetch_refspecs,omitempty"`
}

// FirstURL returns the primary url of the remote.
func (r *Remote) FirstURL() string {
	if len(r.URLs) == 0 {
		return ""
	}
	return r.URLs[0]
}

// BranchTracking is the tracking configuration for a local branch:
// branch.<name>.remote plus branch.<name>.merge. Remote "." means the branch
// tracks another local branch.
type BranchTracking struct {
	Branch string `json:"branch"`
	Remote string `json:"remote"`
	Merge  string `json:"merge"` // full ref on the remote side, e.g. refs/heads/main
}

// IsLocal reports whether the branch tracks a local branch.
func (t *BranchTracking) IsLocal() bool { return t.Remote == "." }

// urlRewrite is a url.<base>.insteadOf (or pushInsteadOf) rule.
type urlRewrite struct {
	base    string
	prefix  string
	forPush bool
}

// Config is the parsed model of a repository config file.
type Config struct {
	file     *File
	remotes  map[string]*Remote
	tracking map[string]*BranchTracking
	rewrites []urlRewrite

	// Warnings collected while parsing; informational only.
	Warnings []error
}

// Load reads and parses a config file. A missing file yields an empty config:
// a repository without a config file is valid, just has no remotes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil, path), nil
		}
		return nil, err
	}
	return Parse(data, path), nil
}

// Parse builds a Config from raw file contents.
func Parse(data []byte, filename string) *Config {
	file, warnings := ParseFile(data, filename)

	c := &Config{
		file:     file,
		remotes:  make(map[string]*Remote),
		tracking: make(map[string]*BranchTracking),
		Warnings: warnings,
	}

	for _, base := range file.Subsections("url") {
		for _, prefix := range file.Values("url", base, "insteadof") {
			c.rewrites = append(c.rewrites, urlRewrite{base: base, prefix: prefix})
		}
		for _, prefix := range file.Values("url", base, "pushinsteadof") {
			c.rewrites = append(c.rewrites, urlRewrite{base: base, prefix: prefix, forPush: true})
		}
	}

	for _, name := range file.Subsections("remote") {
		r := &Remote{Name: name}
		for _, u := range file.Values("remote", name, "url") {
			r.URLs = append(r.URLs, c.rewriteURL(u, false))
		}
		for _, u := range file.Values("remote", name, "pushurl") {
			r.PushURLs = append(r.PushURLs, c.rewriteURL(u, true))
		}
		r.FetchRefspecs = file.Values("remote", name, "fetch")
		c.remotes[name] = r
	}

	for _, branch := range file.Subsections("branch") {
		remote, hasRemote := file.Value("branch", branch, "remote")
		merge, hasMerge := file.Value("branch", branch, "merge")
		if !hasRemote && !hasMerge {
			continue
		}
		c.tracking[branch] = &BranchTracking{
			Branch: branch,
			Remote: remote,
			Merge:  merge,
		}
	}

	return c
}

// rewriteURL applies the longest matching insteadOf prefix.
func (c *Config) rewriteURL(url string, forPush bool) string {
	best := -1
	for i, rw := range c.rewrites {
		if rw.forPush != forPush {
			continue
		}
		if !strings.HasPrefix(url, rw.prefix) {
			continue
		}
		if best < 0 || len(rw.prefix) > len(c.rewrites[best].prefix) {
			best = i
		}
	}
	if best < 0 {
		return url
	}
	return c.rewrites[best].base + strings.TrimPrefix(url, c.rewrites[best].prefix)
}

// Remote returns a remote by name.
func (c *Config) Remote(name string) (*Remote, bool) {
	r, ok := c.remotes[name]
	return r, ok
}

// Remotes returns all remotes sorted by name.
func (c *Config) Remotes() []*Remote {
	out := make([]*Remote, 0, len(c.remotes))
	for _, r := range c.remotes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tracking returns the tracking configuration for a local branch.
func (c *Config) Tracking(branch string) (*BranchTracking, bool) {
	t, ok := c.tracking[branch]
	return t, ok
}

// Trackings returns all branch tracking records sorted by branch name.
func (c *Config) Trackings() []*BranchTracking {
	out := make([]*BranchTracking, 0, len(c.tracking))
	for _, t := range c.tracking {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Branch < out[j].Branch })
	return out
}

// RebaseOnUpdate reports whether updates of the given branch should rebase
// instead of merge: branch.<name>.rebase overrides pull.rebase, both default
// to false (merge).
func (c *Config) RebaseOnUpdate(branch string) bool {
	if v, ok := c.file.Value("branch", branch, "rebase"); ok {
		return boolish(v)
	}
	if v, ok := c.file.Value("pull", "", "rebase"); ok {
		return boolish(v)
	}
	return false
}

// boolish interprets pull.rebase-style values; non-false strategy words
// ("merges", "interactive") still mean rebase.
func boolish(v string) bool {
	switch strings.ToLower(v) {
	case "false", "no", "off", "0", "":
		return false
	default:
		return true
	}
}

// Core returns a core.* value.
func (c *Config) Core(key string) (string, bool) {
	return c.file.Value("core", "", key)
}

// Raw exposes the low-level file for callers with uncommon lookups.
func (c *Config) Raw() *File { return c.file }
