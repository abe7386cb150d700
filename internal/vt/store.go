package vt

// Store persists database documents.
type Store interface {
	// Load reads and decodes the database at path. Shape errors wrap
	// ErrCorruptDatabase; a document without checksums wraps ErrEmptyDatabase.
	Load(path string) (*Document, error)

	// Save writes doc to path, keeping a backup of the previous file. When
	// path cannot be written it retries a fallback location. It returns the
	// path actually written, or an error wrapping ErrSaveFailed.
	Save(path string, doc *Document) (string, error)

	// Restore replaces the database at path with the backup made by the
	// last Save, undoing it.
	Restore(path string) error
}
