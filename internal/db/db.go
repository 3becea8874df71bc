package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/roach88/eventstate/internal/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
//
//	1 - kv and meta tables
var schema = sqlite.Schema{Name: "state database", DDL: schemaSQL, Version: 1}

// DB is an ordered, byte-keyed store with atomic multi-key transactions,
// backed by SQLite.
type DB struct {
	db *sql.DB
}

// Open creates or opens the state database at path. Use ":memory:" only
// for throwaway state.
func Open(path string) (*DB, error) {
	sqlDB, err := sqlite.Open(path, schema)
	if err != nil {
		return nil, err
	}
	return &DB{db: sqlDB}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

const metaLastPosition = "last_position"

// LastPosition returns the position of the last event whose mutations were
// committed, or 0 if nothing has been applied yet.
func (d *DB) LastPosition(ctx context.Context) (int64, error) {
	var pos int64
	err := d.conn(ctx).QueryRowContext(ctx,
		`SELECT value FROM meta WHERE name = ?`, metaLastPosition).Scan(&pos)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read last position: %w", err)
	}
	return pos, nil
}

// SetLastPosition records pos as the last applied position. Call it inside
// the transaction that applies the event so both commit together.
func (d *DB) SetLastPosition(ctx context.Context, pos int64) error {
	_, err := d.conn(ctx).ExecContext(ctx, `
		INSERT INTO meta (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, metaLastPosition, pos)
	if err != nil {
		return fmt.Errorf("write last position: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
