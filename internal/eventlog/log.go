package eventlog

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/roach88/eventstate/internal/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
//
//	0 - events table only
//	1 - index on events(key, position)
var schema = sqlite.Schema{
	Name:       "event log",
	DDL:        schemaSQL,
	Migrations: []sqlite.Migration{addKeyIndex},
}

// Log is a durable, position-ordered event log.
type Log struct {
	db *sql.DB
}

// Open creates or opens an event log at path and migrates it to the
// current schema.
func Open(path string) (*Log, error) {
	db, err := sqlite.Open(path, schema)
	if err != nil {
		return nil, err
	}
	return &Log{db: db}, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// addKeyIndex adds the per-key index to logs created before it was part of
// schema.sql.
func addKeyIndex(db *sql.DB) error {
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_key ON events(key, position)`); err != nil {
		return fmt.Errorf("add key index: %w", err)
	}
	return nil
}
