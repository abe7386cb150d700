package vault

import (
	"fmt"
	"path"
	"strings"
)

// SnapshotName is the vault key of a database: the host it came from plus
// the database file name.
func SnapshotName(hostID, dbPath string) string {
	base := path.Base(strings.ReplaceAll(dbPath, "\\", "/"))
	return hostID + "/" + base
}

// checkName rejects names that would escape the vault root.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("snapshot name is empty")
	}
	clean := path.Clean(name)
	if clean != name || strings.HasPrefix(clean, "/") || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}
