package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gsm-go/internal/gsm"
	"gsm-go/internal/journal/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal records operations in a SQLite database.
type SQLiteJournal struct {
	db    *sql.DB
	clock gsm.Clock
}

// Open opens (creating if needed) the journal at path and migrates it to the
// latest schema. path may be ":memory:".
func Open(path string, clock gsm.Clock) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	if clock == nil {
		clock = gsm.RealClock{}
	}
	return &SQLiteJournal{db: db, clock: clock}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

func (j *SQLiteJournal) Begin(name, parameters string) (int64, error) {
	res, err := j.db.Exec(
		"INSERT INTO operations (name, parameters, status, started_at) VALUES (?, ?, ?, ?)",
		name, parameters, gsm.OperationStarted, j.clock.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recording operation: %w", err)
	}
	return id, nil
}

func (j *SQLiteJournal) Finish(id int64, status, message string) error {
	res, err := j.db.Exec(
		"UPDATE operations SET status = ?, message = ?, finished_at = ? WHERE id = ?",
		status, message, j.clock.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finishing operation %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// List returns the most recent operations, newest first.
func (j *SQLiteJournal) List(limit int) ([]*gsm.Operation, error) {
	rows, err := j.db.Query(
		"SELECT id, name, parameters, status, message, started_at, finished_at FROM operations ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*gsm.Operation
	for rows.Next() {
		var (
			op       gsm.Operation
			finished sql.NullTime
		)
		if err := rows.Scan(&op.ID, &op.Name, &op.Parameters, &op.Status, &op.Message, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (j *SQLiteJournal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// IsNotFound reports whether err is a Finish call for an unknown operation.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

var _ gsm.Journal = (*SQLiteJournal)(nil)
