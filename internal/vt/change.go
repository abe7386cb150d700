package vt

import (
	"fmt"
	"path/filepath"
)

// ChangeKind names a filesystem event.
type ChangeKind int

const (
	ChangeCreate ChangeKind = iota + 1
	ChangeWrite
	ChangeRemove
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeCreate:
		return "create"
	case ChangeWrite:
		return "write"
	case ChangeRemove:
		return "remove"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is a filesystem event on a path relative to the working folder.
type Change struct {
	Kind    ChangeKind
	Path    string
	Size    int64
	ModTime int64
}

// ApplyChange folds a filesystem event into the loaded tree without hashing:
// created files become New (or NotCheckedModified when a missing file
// reappears), written files with a checksum become NotCheckedModified, and
// removed files become Missing or are dropped when they had no checksum.
//
// Records owned by a running queue are left alone. The returned status is the
// record's status afterwards; ok is false when the event changed nothing.
func (s *Session) ApplyChange(c Change) (status Status, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree == nil {
		return 0, false, ErrNoDatabase
	}
	rel := filepath.ToSlash(c.Path)
	if !s.meta.Filter.IsAllowed(rel) {
		return 0, false, nil
	}

	id, found := s.tree.Find(rel)
	if !found {
		if c.Kind == ChangeRemove {
			return 0, false, nil
		}
		if _, inserted := s.tree.Place(FileRecord{Path: rel, Size: c.Size, ModTime: c.ModTime, Status: StatusNew}); !inserted {
			return 0, false, fmt.Errorf("cannot track %s", rel)
		}
		return StatusNew, true, nil
	}

	rec, _ := s.tree.Record(id)
	if rec.Status.In(ClassInProgress) {
		return rec.Status, false, nil
	}

	switch c.Kind {
	case ChangeRemove:
		if rec.Checksum == "" {
			return 0, true, s.tree.Remove(id)
		}
		status = StatusMissing
		err = s.tree.Update(id, func(r *FileRecord) {
			r.Status = StatusMissing
			r.Size = SizeUnknown
			r.ModTime = 0
		})
	default:
		status = StatusNew
		if rec.Checksum != "" {
			status = StatusNotCheckedModified
		}
		err = s.tree.Update(id, func(r *FileRecord) {
			r.Status = status
			r.Size = c.Size
			r.ModTime = c.ModTime
		})
	}
	if err != nil {
		return 0, false, err
	}
	return status, true, nil
}
