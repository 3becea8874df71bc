package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/eventstate/internal/protocol"
)

// ErrOutOfOrder is returned when an event would be inserted below the last
// stored position without being a duplicate of a stored event.
var ErrOutOfOrder = errors.New("event position out of order")

// Append stores events in one transaction. Uses ON CONFLICT(position) DO
// NOTHING for idempotency: re-appending an already stored position is
// silently ignored, so a committed batch can be shipped twice.
func (l *Log) Append(ctx context.Context, events ...protocol.Event) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	defer tx.Rollback()

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM events`).Scan(&last); err != nil {
		return fmt.Errorf("append events: %w", err)
	}

	for _, e := range events {
		if e.Position <= 0 {
			return fmt.Errorf("append events: position %d must be positive", e.Position)
		}
		if !e.Intent.Valid() {
			return fmt.Errorf("append events: position %d has unknown intent", e.Position)
		}
		if e.RecordVersion < 0 {
			return fmt.Errorf("append events: position %d has negative record version", e.Position)
		}

		value, err := marshalValue(e.Value)
		if err != nil {
			return fmt.Errorf("append event %d: %w", e.Position, err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO events (position, key, intent, record_version, timestamp, value)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(position) DO NOTHING
		`,
			e.Position,
			e.Key,
			e.Intent.String(),
			e.RecordVersion,
			e.Timestamp,
			value,
		)
		if err != nil {
			return fmt.Errorf("append event %d: %w", e.Position, err)
		}

		inserted, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("append event %d: %w", e.Position, err)
		}
		if inserted == 0 {
			continue
		}
		if e.Position <= last {
			return fmt.Errorf("append event %d after %d: %w", e.Position, last, ErrOutOfOrder)
		}
		last = e.Position
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}

// marshalValue converts a record value to JSON TEXT for storage.
// HTML escaping is disabled so stored values match what was committed.
func marshalValue(v protocol.RecordValue) (string, error) {
	if v == nil {
		return "null", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
