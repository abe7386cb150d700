package vt

import (
	"path/filepath"
	"time"
)

// Metadata describes a checksum database as a whole.
type Metadata struct {
	Origin    string // app/version tag the database was written with
	Algorithm Algorithm
	WorkDir   string // absolute; empty means the database's own folder
	Created   time.Time
	Updated   time.Time
	Verified  time.Time
	Comment   string
	Filter    FilterRule
	Immutable bool

	// DbPath is where the database was loaded from or is meant to be saved.
	DbPath string
	// SavedTo is where the last save actually landed. It differs from DbPath
	// when the primary location was not writable.
	SavedTo string
}

// WorkingDir resolves the folder the database's relative paths refer to.
func (m *Metadata) WorkingDir() string {
	if m.WorkDir != "" {
		return m.WorkDir
	}
	return filepath.Dir(m.DbPath)
}

// IsRelative reports whether the working folder is the database's own folder.
func (m *Metadata) IsRelative() bool {
	if m.WorkDir == "" {
		return true
	}
	return filepath.Clean(m.WorkDir) == filepath.Clean(filepath.Dir(m.DbPath))
}

// FolderName is the base name of the working folder.
func (m *Metadata) FolderName() string {
	return filepath.Base(m.WorkingDir())
}

// Entry is one stored checksum.
type Entry struct {
	Path     string
	Checksum string
}

// Document is the persisted form of a database: metadata, checksums in
// stored order, and paths that could not be read when it was written.
type Document struct {
	Meta       Metadata
	Entries    []Entry
	Unreadable []string
	// TotalSize is informational; it is written to the header and not
	// trusted on load.
	TotalSize int64
}
