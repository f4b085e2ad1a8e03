package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// OpenConnection opens a SQLite database with foreign keys enabled.
// path can be a file path or ":memory:". File databases use WAL and a busy
// timeout so several terminals can share one file.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// NewSQLiteDatabase opens a SQLite-backed database at path.
func NewSQLiteDatabase(path string) (*SQLDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return newSQLDatabase(db, DialectSQLite, path), nil
}
