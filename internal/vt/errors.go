package vt

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied is returned when a file exists but cannot be opened.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrReadError is returned when reading fails part-way through a file.
	ErrReadError = errors.New("read error")
	// ErrCanceled is returned when an operation observed its cancellation.
	ErrCanceled = errors.New("canceled")
	// ErrCorruptDatabase is returned when a database document has the wrong shape.
	ErrCorruptDatabase = errors.New("corrupt database")
	// ErrEmptyDatabase is returned when a database holds no checksums.
	ErrEmptyDatabase = errors.New("empty database")
	// ErrSaveFailed is returned when no write target accepted the database.
	ErrSaveFailed = errors.New("save failed")
	// ErrReadOnly is returned when an update is requested on an immutable database.
	ErrReadOnly = errors.New("database is read-only")
	// ErrNoDatabase is returned when an operation needs a loaded database.
	ErrNoDatabase = errors.New("no database loaded")
)

// PathError records a failed operation on a specific path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// NewPathError wraps err with the operation and the offending path.
func NewPathError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &PathError{Op: op, Path: path, Err: err}
}

// Classify returns a short classification of err for user-facing output.
func Classify(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCanceled):
		return "canceled"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, ErrReadError):
		return "read error"
	case errors.Is(err, ErrCorruptDatabase):
		return "corrupt database"
	case errors.Is(err, ErrEmptyDatabase):
		return "empty database"
	case errors.Is(err, ErrSaveFailed):
		return "save failed"
	case errors.Is(err, ErrReadOnly):
		return "read-only"
	case errors.Is(err, ErrNoDatabase):
		return "no database"
	default:
		return "error"
	}
}

// ErrorPath returns the path carried by err, if any.
func ErrorPath(err error) string {
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Path
	}
	return ""
}
