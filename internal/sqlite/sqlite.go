// Package sqlite opens the SQLite files the state database and the event log
// are kept in.
//
// Every file is opened the same way:
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One pooled connection, which also keeps ":memory:" databases alive
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Migration upgrades a file from one schema version to the next.
type Migration func(db *sql.DB) error

// Schema describes one kind of database file.
type Schema struct {
	// Name is used in error messages, e.g. "event log".
	Name string

	// DDL runs on every open and must be idempotent.
	DDL string

	// Migrations[i] upgrades a file at version i. Files are left at
	// len(Migrations), or at Version if that is higher.
	Migrations []Migration
	Version    int
}

func (s Schema) version() int {
	return max(s.Version, len(s.Migrations))
}

// Open creates or opens the file at path and brings it up to date with
// schema.
func Open(path string, schema Schema) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", schema.Name, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", schema.Name, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if err := migrate(db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply %s schema: %w", schema.Name, err)
	}

	return db, nil
}

func migrate(db *sql.DB, schema Schema) error {
	if _, err := db.Exec(schema.DDL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	version, err := UserVersion(db)
	if err != nil {
		return err
	}
	for v := version; v < len(schema.Migrations); v++ {
		if err := schema.Migrations[v](db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schema.version())); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// UserVersion returns the schema version recorded in the file.
func UserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// Pragma returns the current value of a pragma as text.
func Pragma(db *sql.DB, name string) (string, error) {
	var value string
	if err := db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
