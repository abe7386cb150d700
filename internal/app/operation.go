package app

import (
	"github.com/artemvlas/veretino-sub000/internal/history"
	"github.com/artemvlas/veretino-sub000/internal/vt"
)

// Operation tracks one CLI operation against a database. Operations get an
// ID only when a history is configured.
type Operation struct {
	ID     int64
	Name   string
	DbPath string
	Status string
}

// Persisted returns true if this operation has been saved to the history.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// record runs fn as the operation name on dbPath and stores its outcome.
// History failures are logged and never fail the operation itself.
func (a *VeretinoApp) record(name, dbPath string, fn func() (vt.Summary, error)) (vt.Summary, error) {
	op := &Operation{Name: name, DbPath: dbPath, Status: history.StatusRunning}
	if a.history != nil {
		rec, err := a.history.CreateOperation(name, dbPath, a.clock.Now())
		if err != nil {
			a.logger.Warn("cannot record operation", "operation", name, "error", err)
		} else {
			op.ID = rec.ID
		}
	}

	a.logger.Info("operation started", "operation", name, "db", dbPath)
	sum, err := fn()
	op.Status = history.StatusOf(sum, err)
	if sum.Operation == "" {
		sum.Operation = name
	}

	if err != nil {
		a.logger.Error("operation failed", "operation", name, "error", err, "class", vt.Classify(err))
	} else {
		a.logger.Info("operation finished", "operation", name, "status", op.Status, "summary", sum.String())
	}

	if op.Persisted() {
		if ferr := a.history.FinishOperation(op.ID, op.Status, a.clock.Now(), sum); ferr != nil {
			a.logger.Warn("cannot finish operation record", "operation", name, "error", ferr)
		}
	}
	return sum, err
}

// History returns the most recent operations, newest first.
func (a *VeretinoApp) History(limit int) ([]*vt.Operation, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.ListOperations(limit)
}
