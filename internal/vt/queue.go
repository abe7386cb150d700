package vt

import (
	"context"
	"errors"
	"strings"
)

type queued struct {
	id    NodeID
	prior FileRecord
}

// runQueue hashes the leaves ids one at a time, in order. Each is marked
// Queued up front and Calculating while it is hashed. Per-file failures are
// recorded on the item and the batch continues.
//
// On cancellation every item not yet finished goes back to its prior status,
// sum.Canceled is set and runQueue returns true.
func (s *Session) runQueue(ctx context.Context, op string, ids []NodeID, sum *Summary) bool {
	if len(ids) == 0 {
		return false
	}

	s.mu.Lock()
	items := make([]queued, 0, len(ids))
	var bytesTotal int64
	for _, id := range ids {
		rec, ok := s.tree.Record(id)
		if !ok {
			continue
		}
		items = append(items, queued{id: id, prior: rec})
		if rec.Size > 0 {
			bytesTotal += rec.Size
		}
		s.tree.SetStatus(id, StatusQueued)
	}
	workDir := s.meta.WorkingDir()
	alg := s.meta.Algorithm
	s.mu.Unlock()

	sum.Queued += len(items)
	start := s.clock.Now()
	s.logger.Debug("queue started", "operation", op, "items", len(items), "bytes", bytesTotal)

	var bytesDone int64
	for i, it := range items {
		if ctx.Err() != nil {
			s.revert(items[i:])
			sum.Canceled = true
			s.logger.Info("queue canceled", "operation", op, "done", i, "total", len(items))
			return true
		}

		s.mu.Lock()
		s.tree.SetStatus(it.id, StatusCalculating)
		s.mu.Unlock()

		base := bytesDone
		s.report(Progress{Operation: op, Path: it.prior.Path, Done: i, Total: len(items), BytesDone: base, BytesTotal: bytesTotal})
		checksum, err := s.hasher.Hash(ctx, s.absPath(workDir, it.prior.Path), alg, func(n int64) {
			bytesDone += n
			s.report(Progress{Operation: op, Path: it.prior.Path, Done: i, Total: len(items), BytesDone: bytesDone, BytesTotal: bytesTotal})
		})
		if err != nil && isCanceled(err) {
			s.revert(items[i:])
			sum.Canceled = true
			s.logger.Info("queue canceled", "operation", op, "done", i, "total", len(items))
			return true
		}
		if it.prior.Size > 0 {
			bytesDone = base + it.prior.Size
		}

		s.mu.Lock()
		status := s.applyHash(it, checksum, err)
		s.mu.Unlock()
		sum.count(status)
		sum.Processed++
	}

	s.report(Progress{Operation: op, Done: len(items), Total: len(items), BytesDone: bytesDone, BytesTotal: bytesTotal})
	s.logger.Debug("queue finished", "operation", op, "items", len(items), "elapsed", s.since(start))
	return false
}

// applyHash records the outcome of hashing one item. The caller holds s.mu.
func (s *Session) applyHash(it queued, checksum string, err error) Status {
	var status Status
	s.tree.Update(it.id, func(rec *FileRecord) {
		switch {
		case err != nil && errors.Is(err, ErrNotFound) && rec.Checksum != "":
			rec.Status = StatusMissing
			rec.Size = SizeUnknown
		case err != nil:
			rec.Status = StatusUnreadable
		case rec.Checksum == "":
			rec.Checksum = checksum
			rec.Status = StatusAdded
		case strings.EqualFold(rec.Checksum, checksum):
			rec.Status = StatusMatched
		default:
			rec.Status = StatusMismatched
			rec.Recomputed = checksum
		}
		status = rec.Status
	})
	if err != nil {
		s.logger.Warn("hashing failed", "path", it.prior.Path, "kind", Classify(err), "error", err)
	} else if status == StatusMismatched {
		s.logger.Warn("checksum mismatch", "path", it.prior.Path)
	}
	return status
}

// revert puts items back to their pre-queue records.
func (s *Session) revert(items []queued) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.tree.Update(it.id, func(rec *FileRecord) {
			*rec = it.prior
		})
	}
}

func normalizeChecksum(sum string) string {
	return strings.ToLower(strings.TrimSpace(sum))
}
