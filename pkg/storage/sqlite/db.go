// Package sqlite implements the storage interfaces on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// DB wraps the SQLite database handle shared by the stores.
type DB struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and applies
// any pending migrations. Use ":memory:" for an ephemeral database in tests.
func Open(ctx context.Context, path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}

	return &DB{db: db}, nil
}

// DB returns the underlying sql.DB handle.
func (d *DB) DB() *sql.DB {
	return d.db
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// isUniqueViolation reports whether err is a SQLite unique or primary key
// constraint violation.
func isUniqueViolation(err error) bool {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE ||
		serr.Code() == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}
