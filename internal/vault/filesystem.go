package vault

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// FileSystemVault stores snapshots as files:
//
//	<root>/
//	  snapshots/
//	    <host>/<db>           (snapshot content)
//	    <host>/<db>.version   (version marker)
type FileSystemVault struct {
	fs          afero.Fs
	name        string
	root        string
	snapshotDir string
}

// NewFileSystemVault creates a filesystem vault rooted at root.
func NewFileSystemVault(afs afero.Fs, name, root string) (*FileSystemVault, error) {
	snapshotDir := filepath.Join(root, "snapshots")
	if err := afs.MkdirAll(snapshotDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileSystemVault{
		fs:          afs,
		name:        name,
		root:        root,
		snapshotDir: snapshotDir,
	}, nil
}

func (v *FileSystemVault) PutSnapshot(name string, r io.Reader, size int64, version int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	destPath := v.snapshotPath(name)
	if err := v.fs.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := v.writeFile(destPath, r, size); err != nil {
		return err
	}
	versionData := strconv.FormatInt(version, 10)
	return v.writeFile(destPath+".version", strings.NewReader(versionData), int64(len(versionData)))
}

func (v *FileSystemVault) GetSnapshot(name string, w io.Writer) error {
	if err := checkName(name); err != nil {
		return err
	}
	f, err := v.fs.Open(v.snapshotPath(name))
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("snapshot %q: %w", name, vt.ErrNotFound)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// SnapshotVersion returns 0 if no version file exists.
func (v *FileSystemVault) SnapshotVersion(name string) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	data, err := afero.ReadFile(v.fs, v.snapshotPath(name)+".version")
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}
	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

// ValidateSetup verifies that the vault folders are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.snapshotDir} {
		info, err := v.fs.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

func (v *FileSystemVault) snapshotPath(name string) string {
	return filepath.Join(v.snapshotDir, filepath.FromSlash(name))
}

// writeFile copies r to destPath through a temp file in the same folder.
func (v *FileSystemVault) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := afero.TempFile(v.fs, filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			v.fs.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}
	if err := v.fs.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

var _ vt.Vault = (*FileSystemVault)(nil)
