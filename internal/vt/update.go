package vt

import (
	"context"
	"path/filepath"
	"sort"
)

// Verify hashes the verifiable records beneath scope ("" for the whole
// database) and compares them with their stored checksums. When nothing in
// scope is left to verify, every available record is verified again.
//
// A full-database pass that completes is saved, and stamps the verified time
// when every available record matched. Canceled passes are not saved.
func (s *Session) Verify(ctx context.Context, scope string) (Summary, error) {
	ctx, done := s.begin(ctx, "verify")
	defer done()

	sum := Summary{Operation: "verify"}
	root, err := s.scopeRoot(scope)
	if err != nil {
		return sum, err
	}
	ids := s.collect(root, ClassVerifiable)
	if len(ids) == 0 {
		ids = s.collect(root, ClassAvailable)
	}
	if s.runQueue(ctx, "verify", ids, &sum) {
		return sum, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.tree.Numbers()
	avail := n.Query(ClassAvailable).Count
	sum.Verified = avail > 0 && n.Get(StatusMatched).Count == avail
	if root != RootID || s.meta.Immutable {
		return sum, nil
	}
	if sum.Verified {
		s.meta.Verified = s.clock.Now()
	}
	savedTo, err := s.saveLocked(false)
	sum.SavedTo = savedTo
	return sum, err
}

// UpdateNewLost hashes the new files, optionally pairs them with missing
// files as moves, drops every missing record and saves.
func (s *Session) UpdateNewLost(ctx context.Context) (Summary, error) {
	return s.update(ctx, "update-new-lost", true, true)
}

// AddNew hashes the new files and saves, leaving missing records alone.
func (s *Session) AddNew(ctx context.Context) (Summary, error) {
	return s.update(ctx, "add-new", true, false)
}

// ClearLost drops every missing record and saves.
func (s *Session) ClearLost(ctx context.Context) (Summary, error) {
	return s.update(ctx, "clear-lost", false, true)
}

func (s *Session) update(ctx context.Context, op string, addNew, clearLost bool) (Summary, error) {
	ctx, done := s.begin(ctx, op)
	defer done()

	sum := Summary{Operation: op}
	if err := s.writable(); err != nil {
		return sum, err
	}

	if addNew {
		if s.runQueue(ctx, op, s.collect(RootID, Of(StatusNew)), &sum) {
			return sum, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if addNew && clearLost && s.opts.DetectMoved {
		sum.Moves = s.detectMovedLocked()
		sum.Moved = len(sum.Moves)
		sum.Added -= sum.Moved
	}
	if clearLost {
		for _, id := range s.tree.Collect(RootID, Of(StatusMissing, StatusMovedOut)) {
			rec, _ := s.tree.Record(id)
			if rec.Status == StatusMissing {
				sum.Removed++
			}
			s.tree.Remove(id)
		}
	}
	if sum.Added+sum.Moved+sum.Removed == 0 {
		s.logger.Debug("nothing to update", "operation", op)
		return sum, nil
	}
	savedTo, err := s.saveLocked(true)
	sum.SavedTo = savedTo
	return sum, err
}

// detectMovedLocked pairs every Added record with a Missing record holding
// the same checksum. Added records are taken in traversal order; each picks
// the Missing record with the lexically smallest path and consumes it.
func (s *Session) detectMovedLocked() []Move {
	missing := make(map[string][]NodeID)
	for id, rec := range s.tree.Leaves(RootID) {
		if rec.Status == StatusMissing {
			missing[rec.Checksum] = append(missing[rec.Checksum], id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	for sum, ids := range missing {
		sort.Slice(ids, func(i, j int) bool {
			a, _ := s.tree.Record(ids[i])
			b, _ := s.tree.Record(ids[j])
			return a.Path < b.Path
		})
		missing[sum] = ids
	}

	var moves []Move
	for _, id := range s.tree.Collect(RootID, Of(StatusAdded)) {
		rec, _ := s.tree.Record(id)
		candidates := missing[rec.Checksum]
		if len(candidates) == 0 {
			continue
		}
		from := candidates[0]
		missing[rec.Checksum] = candidates[1:]
		old, _ := s.tree.Record(from)
		s.tree.SetStatus(id, StatusMoved)
		s.tree.SetStatus(from, StatusMovedOut)
		s.logger.Info("file moved", "from", old.Path, "to", rec.Path)
		moves = append(moves, Move{From: old.Path, To: rec.Path})
	}
	return moves
}

// UpdateMismatched accepts the recomputed checksum of every mismatched
// record and saves.
func (s *Session) UpdateMismatched(ctx context.Context) (Summary, error) {
	_, done := s.begin(ctx, "update-mismatched")
	defer done()

	sum := Summary{Operation: "update-mismatched"}
	if err := s.writable(); err != nil {
		return sum, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.tree.Collect(RootID, Of(StatusMismatched)) {
		s.tree.Update(id, func(rec *FileRecord) {
			rec.Checksum = rec.Recomputed
			rec.Status = StatusUpdated
		})
		sum.Updated++
	}
	if sum.Updated == 0 {
		return sum, nil
	}
	savedTo, err := s.saveLocked(true)
	sum.SavedTo = savedTo
	return sum, err
}

// Undo restores the database file written before the last save and reloads
// it. An operation in flight is canceled first, so it cannot write over the
// restored file.
func (s *Session) Undo(ctx context.Context) error {
	ctx, done := s.begin(ctx, "undo")
	defer done()

	meta, ok := s.Metadata()
	if !ok {
		return ErrNoDatabase
	}
	path := meta.SavedTo
	if path == "" {
		path = meta.DbPath
	}
	if err := s.store.Restore(path); err != nil {
		return err
	}
	s.logger.Info("database restored from backup", "path", path)
	return s.open(ctx, filepath.Clean(path))
}

func (s *Session) writable() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tree == nil {
		return ErrNoDatabase
	}
	if s.meta.Immutable {
		return NewPathError("update", s.meta.DbPath, ErrReadOnly)
	}
	return nil
}
