// Package db opens the SQLite file that holds annotation layers, login
// sessions and the AI request history.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// MemoryPath is reported by Path for databases from OpenMemory.
const MemoryPath = ":memory:"

// DB is a migrated flipbook database.
type DB struct {
	*sql.DB
	path string
}

// Open creates or opens the database file at path, creating its directory
// when missing. WAL mode lets the viewer and CLI commands share the file.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return open(path, path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", 0)
}

// OpenMemory creates a private in-memory database.
func OpenMemory() (*DB, error) {
	// Each pooled connection to :memory: would be its own database.
	return open(MemoryPath, MemoryPath, 1)
}

func open(path, dsn string, maxConns int) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database %s: %w", path, err)
	}
	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return d, nil
}

// Path returns the file the database lives in, or MemoryPath.
func (d *DB) Path() string { return d.path }

// Version is the schema version recorded in the file.
func (d *DB) Version() (int, error) {
	var v int
	err := d.QueryRow(`PRAGMA user_version`).Scan(&v)
	return v, err
}

// migrate applies every migration newer than the recorded user_version,
// each in its own transaction.
func (d *DB) migrate() error {
	current, err := d.Version()
	if err != nil {
		return err
	}
	for i := current; i < len(migrations); i++ {
		tx, err := d.BeginTx(context.Background(), nil)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// migrations are applied in order; append, never edit.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS annotations (
    key TEXT PRIMARY KEY,
    page INTEGER NOT NULL,
    data BLOB NOT NULL,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_annotations_page ON annotations(page);

CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`,

	`CREATE TABLE IF NOT EXISTS ai_requests (
    id TEXT PRIMARY KEY,
    action TEXT NOT NULL,
    page INTEGER NOT NULL DEFAULT 0,
    attempts INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL CHECK(status IN ('ok','error')),
    error TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_ai_requests_created ON ai_requests(created_at);`,
}
