package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	for _, table := range []string{"operations", "schema_migrations"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)
		defer db.Close()

		err := CheckDBMigrationStatus(db)
		if err == nil {
			t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
		}
		if err.Error() != "history has no schema version (needs migration)" {
			t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
		}
	})

	t.Run("migrated database is current", func(t *testing.T) {
		db := openTestDB(t)
		defer db.Close()

		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}
		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_OperationDefaults(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	res, err := db.Exec("INSERT INTO operations (operation, db_path, started_at) VALUES ('verify', '/data/data.ver.json', datetime('now'))")
	if err != nil {
		t.Fatalf("Failed to insert operation: %v", err)
	}
	id, _ := res.LastInsertId()

	var status, summary string
	if err := db.QueryRow("SELECT status, summary_json FROM operations WHERE id = ?", id).Scan(&status, &summary); err != nil {
		t.Fatalf("Failed to read operation: %v", err)
	}
	if status != "running" {
		t.Errorf("status = %q, want %q", status, "running")
	}
	if summary != "{}" {
		t.Errorf("summary_json = %q, want %q", summary, "{}")
	}
}

func TestSchema_OperationRequiresPath(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec("INSERT INTO operations (operation, started_at) VALUES ('verify', datetime('now'))")
	if err == nil {
		t.Error("Expected NOT NULL violation for missing db_path, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database on a single connection.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	return db
}
