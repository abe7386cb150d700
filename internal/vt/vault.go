package vt

import "io"

// Vault stores off-host snapshots of checksum databases.
// All operations stream so that large databases are never held twice.
type Vault interface {
	// PutSnapshot stores the snapshot called name. size is the number of bytes
	// that will be read from r. version is stored alongside for consistency checks.
	PutSnapshot(name string, r io.Reader, size int64, version int64) error

	// GetSnapshot retrieves the snapshot called name and writes it to w.
	GetSnapshot(name string, w io.Writer) error

	// SnapshotVersion returns the stored version of name, or 0 if none exists.
	SnapshotVersion(name string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
