package testutil

import (
	"context"
	"encoding/hex"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content    []byte
	ModTime    time.Time
	Unreadable bool
	Symlink    bool
}

// MockFilesystem is an in-memory directory tree implementing vt.Scanner and
// vt.Hasher. Paths are absolute and '/'-separated; Scan returns files in the
// order they were first added.
type MockFilesystem struct {
	mu    sync.Mutex
	order []string
	files map[string]*MockFile
	calls []string

	// BeforeHash, if set, runs before every Hash call with the number of
	// calls made so far (0 for the first).
	BeforeHash func(path string, n int)
}

// NewMockFilesystem creates an empty mock filesystem.
func NewMockFilesystem() *MockFilesystem {
	return &MockFilesystem{files: make(map[string]*MockFile)}
}

// AddFile adds or replaces a file.
func (m *MockFilesystem) AddFile(p string, content []byte) {
	m.AddFileAt(p, content, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// AddFileAt adds or replaces a file with the given modification time.
func (m *MockFilesystem) AddFileAt(p string, content []byte, modTime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[p]; !ok {
		m.order = append(m.order, p)
	}
	m.files[p] = &MockFile{Content: content, ModTime: modTime}
}

// SetUnreadable marks an existing file as unreadable.
func (m *MockFilesystem) SetUnreadable(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[p]; ok {
		f.Unreadable = true
	}
}

// SetSymlink marks an existing file as a symlink.
func (m *MockFilesystem) SetSymlink(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[p]; ok {
		f.Symlink = true
	}
}

// Remove deletes a file.
func (m *MockFilesystem) Remove(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	for i, o := range m.order {
		if o == p {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// HashCalls returns the paths passed to Hash, in call order.
func (m *MockFilesystem) HashCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockFilesystem) Scan(ctx context.Context, root string, filter vt.FilterRule) ([]vt.ScannedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(root, "/") + "/"
	var out []vt.ScannedFile
	for _, p := range m.order {
		if err := ctx.Err(); err != nil {
			return nil, vt.ErrCanceled
		}
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		f := m.files[p]
		rel := strings.TrimPrefix(p, prefix)
		if !filter.IsAllowed(rel) {
			continue
		}
		if f.Symlink && filter.IgnoreSymlinks {
			continue
		}
		if f.Unreadable && filter.IgnoreUnreadable {
			continue
		}
		out = append(out, vt.ScannedFile{
			Path:     rel,
			Size:     int64(len(f.Content)),
			ModTime:  f.ModTime.Unix(),
			Readable: !f.Unreadable,
		})
	}
	return out, nil
}

func (m *MockFilesystem) Hash(ctx context.Context, p string, alg vt.Algorithm, progress func(int64)) (string, error) {
	m.mu.Lock()
	n := len(m.calls)
	m.calls = append(m.calls, p)
	hook := m.BeforeHash
	m.mu.Unlock()
	if hook != nil {
		hook(p, n)
	}
	if ctx.Err() != nil {
		return "", vt.NewPathError("hash", p, vt.ErrCanceled)
	}

	m.mu.Lock()
	f, ok := m.files[path.Clean(p)]
	var content []byte
	if ok {
		content = f.Content
	}
	m.mu.Unlock()
	switch {
	case !ok:
		return "", vt.NewPathError("open", p, vt.ErrNotFound)
	case f.Unreadable:
		return "", vt.NewPathError("open", p, vt.ErrPermissionDenied)
	}

	h, err := alg.New()
	if err != nil {
		return "", err
	}
	h.Write(content)
	if progress != nil {
		progress(int64(len(content)))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Digests is a vt.DigestReader backed by a map from absolute file path to
// checksum.
type Digests map[string]string

func (d Digests) ReadDigest(p string, _ vt.Algorithm) (string, bool, error) {
	sum, ok := d[p]
	return sum, ok, nil
}
