package manifest

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// StoreOptions configure a Store.
type StoreOptions struct {
	// Origin is the app/version tag written to every saved header.
	Origin string
	// Backup keeps the previous file as <path>.bak before overwriting.
	Backup bool
	// FallbackDir receives the database when its own folder is not
	// writable. Empty disables the fallback.
	FallbackDir string
	Logger      vt.Logger
}

// Store keeps databases as files on an afero filesystem.
//
// A save never leaves a partially written primary file: the new content is
// written to a temporary file beside it and renamed over the primary only
// after the previous content has been copied to the backup.
type Store struct {
	fs     afero.Fs
	codec  Codec
	opts   StoreOptions
	logger vt.Logger
}

// NewStore creates a Store over afs.
func NewStore(afs afero.Fs, opts StoreOptions) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = vt.NewNopLogger()
	}
	return &Store{
		fs:     afs,
		codec:  Codec{Origin: opts.Origin},
		opts:   opts,
		logger: logger,
	}
}

// Load implements vt.Store.
func (s *Store) Load(path string) (*vt.Document, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, mapError("load", path, err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, vt.NewPathError("load", path, err)
	}
	doc.Meta.DbPath = path
	return doc, nil
}

// Save implements vt.Store.
func (s *Store) Save(path string, doc *vt.Document) (string, error) {
	data, err := s.codec.Marshal(doc, IsCompressedName(path))
	if err != nil {
		return "", fmt.Errorf("encoding database: %w", err)
	}
	primaryErr := s.write(path, data)
	if primaryErr == nil {
		return path, nil
	}
	s.logger.Warn("cannot write database", "path", path, "error", primaryErr)

	if s.opts.FallbackDir == "" {
		return "", vt.NewPathError("save", path, fmt.Errorf("%w: %v", vt.ErrSaveFailed, primaryErr))
	}

	// The fallback copy lives elsewhere, so its working folder must be explicit.
	moved := *doc
	moved.Meta.WorkDir = doc.Meta.WorkingDir()
	moved.Meta.DbPath = filepath.Join(s.opts.FallbackDir, filepath.Base(path))
	if data, err = s.codec.Marshal(&moved, IsCompressedName(path)); err != nil {
		return "", fmt.Errorf("encoding database: %w", err)
	}
	if err := s.fs.MkdirAll(s.opts.FallbackDir, 0o755); err != nil {
		return "", vt.NewPathError("save", path, fmt.Errorf("%w: %v; fallback: %v", vt.ErrSaveFailed, primaryErr, err))
	}
	if err := s.write(moved.Meta.DbPath, data); err != nil {
		return "", vt.NewPathError("save", path, fmt.Errorf("%w: %v; fallback: %v", vt.ErrSaveFailed, primaryErr, err))
	}
	return moved.Meta.DbPath, nil
}

// Restore implements vt.Store by renaming the backup over the primary file.
func (s *Store) Restore(path string) error {
	bak := path + vt.BackupSuffix
	if _, err := s.fs.Stat(bak); err != nil {
		return mapError("restore", bak, err)
	}
	if err := s.fs.Rename(bak, path); err != nil {
		return vt.NewPathError("restore", path, err)
	}
	return nil
}

// write stores data at path with temp file + rename. When Backup is set and
// path already exists, its content is copied to the backup first.
func (s *Store) write(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			s.fs.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if s.opts.Backup {
		if err := s.backup(path); err != nil {
			return err
		}
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	success = true
	return nil
}

func (s *Store) backup(path string) error {
	prev, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading previous database: %w", err)
	}
	if err := afero.WriteFile(s.fs, path+vt.BackupSuffix, prev, 0o644); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}
	return nil
}

func mapError(op, path string, err error) error {
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return vt.NewPathError(op, path, vt.ErrNotFound)
	case errors.Is(err, iofs.ErrPermission):
		return vt.NewPathError(op, path, vt.ErrPermissionDenied)
	default:
		return vt.NewPathError(op, path, fmt.Errorf("%w: %v", vt.ErrReadError, err))
	}
}

var _ vt.Store = (*Store)(nil)
