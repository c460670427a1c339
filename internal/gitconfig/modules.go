package gitconfig

import (
	"os"
	"sort"
)

// Submodule is a record from .gitmodules.
type Submodule struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	URL    string `json:"url"`
	Branch string `json:"branch,omitempty"`
}

// LoadModules reads and parses a .gitmodules file. A missing file yields an
// empty list.
func LoadModules(path string) ([]Submodule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ParseModules(data, path), nil
}

// ParseModules parses .gitmodules contents into submodule records. Records
// without a path are dropped; git itself cannot use them either.
func ParseModules(data []byte, filename string) []Submodule {
	file, _ := ParseFile(data, filename)

	var out []Submodule
	for _, name := range file.Subsections("submodule") {
		path, _ := file.Value("submodule", name, "path")
		if path == "" {
			continue
		}
		url, _ := file.Value("submodule", name, "url")
		branch, _ := file.Value("submodule", name, "branch")
		out = append(out, Submodule{
			Name:   name,
			Path:   path,
			URL:    url,
			Branch: branch,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
