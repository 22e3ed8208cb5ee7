package migrations

import (
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

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

	var idx string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_operations_started_at'").Scan(&idx)
	if err != nil {
		t.Errorf("started_at index was not created: %v", err)
	}
}

func TestCheckStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)
		err := CheckStatus(db)
		if err == nil {
			t.Fatal("CheckStatus() expected error for fresh database, got nil")
		}
		if !strings.Contains(err.Error(), "needs migration") {
			t.Errorf("CheckStatus() error = %q, want error about needing migration", err.Error())
		}
	})

	t.Run("up to date after migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}
		if err := CheckStatus(db); err != nil {
			t.Errorf("CheckStatus() after migration returned error: %v", err)
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_OperationDefaults(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO operations (name, started_at) VALUES ('snapshot create', datetime('now'))"); err != nil {
		t.Fatalf("Failed to insert operation: %v", err)
	}
	var status, message string
	if err := db.QueryRow("SELECT status, message FROM operations").Scan(&status, &message); err != nil {
		t.Fatalf("Failed to read operation: %v", err)
	}
	if status != "started" || message != "" {
		t.Errorf("defaults = (%q, %q), want (started, \"\")", status, message)
	}

	if _, err := db.Exec("INSERT INTO operations (started_at) VALUES (datetime('now'))"); err == nil {
		t.Error("Expected NOT NULL violation for missing name, but insert succeeded")
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// One connection, so every query sees the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
