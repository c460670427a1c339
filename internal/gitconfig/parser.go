// Package gitconfig parses git's INI dialect: repository config files and
// .gitmodules. Parsing is forgiving; malformed lines are reported as warnings
// and skipped, never fatal.
package gitconfig

import (
	"strings"

	"github.com/repod-io/repod/internal/domain"
)

// Entry is a single key/value pair inside a section.
type Entry struct {
	Key   string // lowercased
	Value string
}

// Section is a config section, e.g. [remote "origin"].
type Section struct {
	Name       string // lowercased
	Subsection string // case-sensitive, empty if none
	Entries    []Entry
}

// File is the low-level parsed form of a config file. Order is preserved;
// duplicate sections are kept separate and merged by lookup.
type File struct {
	Sections []*Section
}

// ParseFile parses config data. The filename is used only in warnings.
func ParseFile(data []byte, filename string) (*File, []error) {
	f := &File{}
	var warnings []error
	var current *Section

	lines := strings.Split(string(data), "\n")
	for i := 0; i < len(lines); i++ {
		lineNo := i + 1
		line := strings.TrimSpace(lines[i])

		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			sec, ok := parseSectionHeader(line)
			if !ok {
				warnings = append(warnings, domain.NewParseError(filename, lineNo, "malformed section header"))
				current = nil
				continue
			}
			current = sec
			f.Sections = append(f.Sections, sec)
			continue
		}

		if current == nil {
			warnings = append(warnings, domain.NewParseError(filename, lineNo, "entry outside any section"))
			continue
		}

		// Line continuation: a trailing backslash joins the next line.
		for strings.HasSuffix(line, "\\") && i+1 < len(lines) {
			i++
			line = strings.TrimSuffix(line, "\\") + strings.TrimSpace(lines[i])
		}

		key, value, ok := parseEntry(line)
		if !ok {
			warnings = append(warnings, domain.NewParseError(filename, lineNo, "malformed entry"))
			continue
		}
		current.Entries = append(current.Entries, Entry{Key: key, Value: value})
	}

	return f, warnings
}

// parseSectionHeader parses `[name]` or `[name "subsection"]`.
func parseSectionHeader(line string) (*Section, bool) {
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return nil, false
	}
	inner := strings.TrimSpace(line[1:end])
	if inner == "" {
		return nil, false
	}

	// Quoted subsection form.
	if idx := strings.IndexByte(inner, '"'); idx >= 0 {
		name := strings.TrimSpace(inner[:idx])
		rest := inner[idx:]
		sub, ok := parseQuoted(rest)
		if !ok || name == "" {
			return nil, false
		}
		return &Section{Name: strings.ToLower(name), Subsection: sub}, true
	}

	// Dotted legacy form: [section.subsection].
	if idx := strings.IndexByte(inner, '.'); idx >= 0 {
		return &Section{
			Name:       strings.ToLower(inner[:idx]),
			Subsection: inner[idx+1:],
		}, true
	}

	return &Section{Name: strings.ToLower(inner)}, true
}

// parseQuoted parses a leading double-quoted string with backslash escapes.
func parseQuoted(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' {
		return "", false
	}
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			if i+1 >= len(s) {
				return "", false
			}
			i++
			b.WriteByte(s[i])
		case '"':
			return b.String(), true
		default:
			b.WriteByte(c)
		}
	}
	return "", false
}

// parseEntry parses `key = value`, `key` (implicit true), trimming trailing
// comments and resolving quoted segments.
func parseEntry(line string) (key, value string, ok bool) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		key = strings.ToLower(strings.TrimSpace(stripComment(line)))
		if key == "" || strings.ContainsAny(key, " \t") {
			return "", "", false
		}
		return key, "true", true
	}

	key = strings.ToLower(strings.TrimSpace(line[:eq]))
	if key == "" {
		return "", "", false
	}

	value, ok = parseValue(strings.TrimSpace(line[eq+1:]))
	if !ok {
		return "", "", false
	}
	return key, value, true
}

// parseValue resolves quotes, escapes and trailing comments in a value.
func parseValue(raw string) (string, bool) {
	var b strings.Builder
	inQuotes := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '\\':
			if i+1 >= len(raw) {
				return "", false
			}
			i++
			switch raw[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			default:
				b.WriteByte(raw[i])
			}
		case c == '"':
			inQuotes = !inQuotes
		case (c == '#' || c == ';') && !inQuotes:
			return strings.TrimRight(b.String(), " \t"), true
		default:
			b.WriteByte(c)
		}
	}
	if inQuotes {
		return "", false
	}
	return strings.TrimRight(b.String(), " \t"), true
}

// stripComment removes an unquoted trailing comment.
func stripComment(line string) string {
	if idx := strings.IndexAny(line, "#;"); idx >= 0 {
		return line[:idx]
	}
	return line
}

// Value returns the last value for section/subsection/key, honoring git's
// last-wins rule for single-valued keys.
func (f *File) Value(section, subsection, key string) (string, bool) {
	values := f.Values(section, subsection, key)
	if len(values) == 0 {
		return "", false
	}
	return values[len(values)-1], true
}

// Values returns all values for a multi-valued key, in file order across
// duplicate sections.
func (f *File) Values(section, subsection, key string) []string {
	section = strings.ToLower(section)
	key = strings.ToLower(key)

	var out []string
	for _, sec := range f.Sections {
		if sec.Name != section || sec.Subsection != subsection {
			continue
		}
		for _, e := range sec.Entries {
			if e.Key == key {
				out = append(out, e.Value)
			}
		}
	}
	return out
}

// Subsections returns the distinct subsection names of a section, in first
// occurrence order.
func (f *File) Subsections(section string) []string {
	section = strings.ToLower(section)

	var out []string
	seen := make(map[string]bool)
	for _, sec := range f.Sections {
		if sec.Name != section || sec.Subsection == "" || seen[sec.Subsection] {
			continue
		}
		seen[sec.Subsection] = true
		out = append(out, sec.Subsection)
	}
	return out
}

// Bool interprets a config value as a git boolean.
func (f *File) Bool(section, subsection, key string, def bool) bool {
	v, ok := f.Value(section, subsection, key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0", "":
		return false
	default:
		return def
	}
}
