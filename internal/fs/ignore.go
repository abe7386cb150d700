package fs

import (
	"bufio"
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// IgnoreFileName is the per-folder list of extra glob patterns to skip.
const IgnoreFileName = ".verignore"

// defaultIgnorePatterns are always applied when an ignore file is in use.
var defaultIgnorePatterns = []string{IgnoreFileName}

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // match the whole relative path instead of the basename
}

// IgnoreMatcher checks relative paths against glob patterns.
// Patterns without '/' match the basename only; patterns with '/' match the
// full '/'-separated path from the working folder.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   strings.TrimPrefix(raw, "/"),
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the relative path rel should be skipped.
func (m *IgnoreMatcher) Match(rel string) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}
	base := path.Base(rel)
	for _, p := range m.patterns {
		subject := base
		if p.matchPath {
			subject = rel
		}
		matched, err := path.Match(p.pattern, subject)
		if err != nil {
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// LoadIgnoreFile reads the ignore file at the top of root. It returns nil when
// there is none.
func LoadIgnoreFile(afs afero.Fs, root string) (*IgnoreMatcher, error) {
	patterns, err := ParseIgnoreFile(afs, path.Join(root, IgnoreFileName))
	if err != nil || patterns == nil {
		return nil, err
	}
	return NewIgnoreMatcher(append(defaultIgnorePatterns, patterns...)), nil
}

// ParseIgnoreFile reads an ignore file and returns its raw pattern lines.
// It returns nil and no error if the file does not exist.
func ParseIgnoreFile(afs afero.Fs, name string) ([]string, error) {
	f, err := afs.Open(name)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	patterns := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
