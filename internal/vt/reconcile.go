package vt

import "time"

// Reconcile merges a stored database with a fresh scan of its working folder
// into a new Tree:
//
//   - scanned but not stored: New
//   - stored but not scanned: Missing, checksum kept, size unknown
//   - stored and scanned: NotChecked, or NotCheckedModified when the file was
//     modified after updated (a zero updated disables this)
//   - scanned but unreadable: Unreadable, keeping any stored checksum
//   - listed as unreadable in the database and not scanned: Unreadable
//
// Scanned files are inserted first in scan order, followed by the stored
// leftovers in stored order, so the same inputs always yield the same tree.
// A leftover whose path is blocked by a scanned entry (a stored "a/b" when
// "a" is now a file) is parked under the root rather than dropped.
func Reconcile(doc *Document, disk []ScannedFile, updated time.Time) *Tree {
	stored := make(map[string]string, len(doc.Entries))
	for _, e := range doc.Entries {
		if _, dup := stored[e.Path]; !dup {
			stored[e.Path] = e.Checksum
		}
	}

	tree := NewTree()
	seen := make(map[string]struct{}, len(disk))
	for _, f := range disk {
		seen[f.Path] = struct{}{}
		sum, known := stored[f.Path]
		rec := FileRecord{
			Path:     f.Path,
			Size:     f.Size,
			ModTime:  f.ModTime,
			Checksum: sum,
		}
		switch {
		case !f.Readable:
			rec.Status = StatusUnreadable
		case known && !updated.IsZero() && f.ModTime > updated.Unix():
			rec.Status = StatusNotCheckedModified
		case known:
			rec.Status = StatusNotChecked
		default:
			rec.Status = StatusNew
		}
		tree.Place(rec)
	}

	for _, e := range doc.Entries {
		if _, ok := seen[e.Path]; ok {
			continue
		}
		seen[e.Path] = struct{}{}
		tree.Place(FileRecord{
			Path:     e.Path,
			Size:     SizeUnknown,
			Status:   StatusMissing,
			Checksum: e.Checksum,
		})
	}

	for _, p := range doc.Unreadable {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		tree.Place(FileRecord{
			Path:   p,
			Size:   SizeUnknown,
			Status: StatusUnreadable,
		})
	}
	return tree
}
