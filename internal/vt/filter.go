package vt

import (
	"fmt"
	"path"
	"strings"
)

// FilterMode selects how FilterRule.Extensions is interpreted.
type FilterMode int

const (
	FilterNone FilterMode = iota
	FilterInclude
	FilterIgnore
)

func (m FilterMode) String() string {
	switch m {
	case FilterInclude:
		return "include"
	case FilterIgnore:
		return "ignore"
	default:
		return "none"
	}
}

// ParseFilterMode accepts the names produced by FilterMode.String.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FilterNone, nil
	case "include", "include-only":
		return FilterInclude, nil
	case "ignore":
		return FilterIgnore, nil
	default:
		return FilterNone, fmt.Errorf("unknown filter mode: %q", s)
	}
}

const (
	// DatabaseExt is the plain JSON database extension.
	DatabaseExt = ".ver.json"
	// DatabaseShortExt is the zip-compressed database extension.
	DatabaseShortExt = ".ver"
	// BackupSuffix is appended to a database path for its pre-save backup.
	BackupSuffix = ".bak"
)

// FilterRule decides which paths take part in a database.
type FilterRule struct {
	Mode              FilterMode
	Extensions        []string // without leading dot, compared case-insensitively
	IgnoreDbFiles     bool
	IgnoreDigestFiles bool
	IgnoreUnreadable  bool
	IgnoreSymlinks    bool
}

// DefaultFilterRule excludes databases, digest files and symlinks and keeps
// everything else.
func DefaultFilterRule() FilterRule {
	return FilterRule{
		IgnoreDbFiles:     true,
		IgnoreDigestFiles: true,
		IgnoreSymlinks:    true,
	}
}

// IsDatabaseFile reports whether name looks like a checksum database or its backup.
func IsDatabaseFile(name string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), BackupSuffix)
	return strings.HasSuffix(name, DatabaseExt) || strings.HasSuffix(name, DatabaseShortExt)
}

// IsDigestFile reports whether name looks like a single-file digest summary.
func IsDigestFile(name string) bool {
	_, ok := AlgorithmFromExt(path.Ext(name))
	return ok
}

// IsAllowed reports whether a relative path takes part in the database.
// Unreadable files and symlinks need filesystem information and are handled
// by the scanner using the same rule.
func (f FilterRule) IsAllowed(p string) bool {
	if f.Mode != FilterInclude {
		if f.IgnoreDbFiles && IsDatabaseFile(p) {
			return false
		}
		if f.IgnoreDigestFiles && IsDigestFile(p) {
			return false
		}
	}
	if f.Mode == FilterNone {
		return true
	}
	matched := f.matchesExtension(p)
	if f.Mode == FilterInclude {
		return matched
	}
	return !matched
}

func (f FilterRule) matchesExtension(p string) bool {
	name := strings.ToLower(path.Base(p))
	for _, ext := range f.Extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if strings.HasSuffix(name, "."+ext) {
			return true
		}
	}
	return false
}

// Enabled reports whether the rule restricts by extension at all.
func (f FilterRule) Enabled() bool {
	return f.Mode != FilterNone && len(f.Extensions) > 0
}

// ExtensionList renders the extensions as a space-separated list.
func (f FilterRule) ExtensionList() string {
	return strings.Join(f.Extensions, " ")
}

// ParseExtensionList is the inverse of ExtensionList. Commas are accepted too.
func ParseExtensionList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == ';'
	})
	var exts []string
	for _, f := range fields {
		f = strings.TrimPrefix(strings.TrimSpace(f), "*")
		f = strings.TrimPrefix(f, ".")
		if f != "" {
			exts = append(exts, f)
		}
	}
	return exts
}
