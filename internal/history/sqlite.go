package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/artemvlas/veretino-sub000/internal/history/migrations"
	"github.com/artemvlas/veretino-sub000/internal/vt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteHistory implements vt.History using SQLite.
type SQLiteHistory struct {
	db   *sql.DB
	path string
}

// NewSQLiteHistory opens the history at path and migrates it to the latest
// schema. path can be a file path or ":memory:".
func NewSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteHistory{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	// Each connection to ":memory:" gets its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

func (h *SQLiteHistory) CreateOperation(operation, dbPath string, startedAt time.Time) (*vt.Operation, error) {
	res, err := h.db.Exec(
		`INSERT INTO operations (operation, db_path, started_at, status) VALUES (?, ?, ?, ?)`,
		operation, dbPath, startedAt.UTC(), StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	return &vt.Operation{
		ID:        id,
		Operation: operation,
		DbPath:    dbPath,
		StartedAt: startedAt.UTC(),
		Status:    StatusRunning,
	}, nil
}

func (h *SQLiteHistory) FinishOperation(id int64, status string, finishedAt time.Time, summary vt.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	res, err := h.db.Exec(
		`UPDATE operations SET status = ?, finished_at = ?, summary_json = ? WHERE id = ?`,
		status, finishedAt.UTC(), string(data), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finishing operation %d: %w", id, vt.ErrNotFound)
	}
	return nil
}

func (h *SQLiteHistory) ListOperations(limit int) ([]*vt.Operation, error) {
	rows, err := h.db.Query(
		`SELECT id, operation, db_path, started_at, finished_at, status, summary_json
		   FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*vt.Operation
	for rows.Next() {
		var (
			op      vt.Operation
			summary string
		)
		if err := rows.Scan(&op.ID, &op.Operation, &op.DbPath, &op.StartedAt, &op.FinishedAt, &op.Status, &summary); err != nil {
			return nil, fmt.Errorf("listing operations: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &op.Summary); err != nil {
			return nil, fmt.Errorf("decoding summary of operation %d: %w", op.ID, err)
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the history file path, or ":memory:".
func (h *SQLiteHistory) Path() string {
	return h.path
}

// CheckMigrations verifies the schema is up-to-date.
func (h *SQLiteHistory) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(h.db)
}

// BackupTo writes a complete copy of the history to destPath using VACUUM INTO.
func (h *SQLiteHistory) BackupTo(destPath string) error {
	if _, err := h.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up history: %w", err)
	}
	return nil
}

func (h *SQLiteHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

var _ vt.History = (*SQLiteHistory)(nil)
