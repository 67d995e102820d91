package lambdameta

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "modernc.org/sqlite"
)

// SQLiteLocator serves class resources stored in a SQLite database, one row
// per resource in the table classes(name, data).
type SQLiteLocator struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (and creates if needed) a class archive database.
func OpenSQLite(path string) (*SQLiteLocator, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS classes (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &SQLiteLocator{db: db, path: path}, nil
}

// Put stores or replaces a resource.
func (l *SQLiteLocator) Put(name string, data []byte) error {
	_, err := l.db.Exec("INSERT OR REPLACE INTO classes (name, data) VALUES (?, ?)", name, data)
	if err != nil {
		return fmt.Errorf("saving %s: %w", name, err)
	}
	return nil
}

// Delete removes a resource if present.
func (l *SQLiteLocator) Delete(name string) error {
	if _, err := l.db.Exec("DELETE FROM classes WHERE name = ?", name); err != nil {
		return fmt.Errorf("deleting %s: %w", name, err)
	}
	return nil
}

func (l *SQLiteLocator) Open(name string) (io.ReadCloser, error) {
	var data []byte
	err := l.db.QueryRow("SELECT data FROM classes WHERE name = ?", name).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s in %s", ErrResourceNotFound, name, l.path)
		}
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Close closes the database connection.
func (l *SQLiteLocator) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}
