package vt

import (
	"database/sql"
	"time"
)

// Operation is one recorded run of a database operation.
type Operation struct {
	ID         int64
	Operation  string
	DbPath     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "running", "success", "canceled" or "error"
	Summary    Summary
}

// History records the operations run against checksum databases.
type History interface {
	// CreateOperation records the start of an operation.
	CreateOperation(operation, dbPath string, startedAt time.Time) (*Operation, error)

	// FinishOperation records the outcome of an operation.
	FinishOperation(id int64, status string, finishedAt time.Time, summary Summary) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*Operation, error)

	// Close releases the underlying storage.
	Close() error
}
