package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// Scanner walks a working folder on an afero filesystem.
type Scanner struct {
	fs     afero.Fs
	logger vt.Logger

	// IgnoreFile enables the per-folder .verignore pattern list.
	IgnoreFile bool
}

// NewScanner creates a Scanner over afs.
func NewScanner(afs afero.Fs, logger vt.Logger) *Scanner {
	if logger == nil {
		logger = vt.NewNopLogger()
	}
	return &Scanner{fs: afs, logger: logger, IgnoreFile: true}
}

// Scan implements vt.Scanner. Files come back in walk order, which lists
// each folder's entries by name.
func (s *Scanner) Scan(ctx context.Context, root string, filter vt.FilterRule) ([]vt.ScannedFile, error) {
	info, err := s.fs.Stat(root)
	if err != nil {
		return nil, mapError("stat", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", root)
	}

	var ignore *IgnoreMatcher
	if s.IgnoreFile {
		if ignore, err = LoadIgnoreFile(s.fs, root); err != nil {
			return nil, err
		}
	}

	var files []vt.ScannedFile
	walkFn := func(p string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return vt.ErrCanceled
		}
		if err != nil {
			if p == root {
				return mapError("walk", p, err)
			}
			s.logger.Warn("skipping unreadable folder", "path", p, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if ignore.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore.Match(rel) || !filter.IsAllowed(rel) {
			return nil
		}

		if info.Mode()&os.ModeSymlink != 0 {
			if filter.IgnoreSymlinks {
				return nil
			}
			target, err := s.fs.Stat(p)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
			info = target
		} else if !info.Mode().IsRegular() {
			return nil
		}

		readable := s.readable(p)
		if !readable && filter.IgnoreUnreadable {
			return nil
		}
		files = append(files, vt.ScannedFile{
			Path:     rel,
			Size:     info.Size(),
			ModTime:  info.ModTime().Unix(),
			Readable: readable,
		})
		return nil
	}

	if err := afero.Walk(s.fs, root, walkFn); err != nil {
		if errors.Is(err, vt.ErrCanceled) {
			return nil, vt.NewPathError("scan", root, vt.ErrCanceled)
		}
		return nil, err
	}
	s.logger.Debug("scan finished", "root", root, "files", len(files))
	return files, nil
}

func (s *Scanner) readable(p string) bool {
	f, err := s.fs.Open(p)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

var _ vt.Scanner = (*Scanner)(nil)
