package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/eventstate/internal/protocol"
)

// Read returns up to limit events with a position greater than after,
// ordered by position. A limit of zero or less returns every such event.
func (l *Log) Read(ctx context.Context, after int64, limit int) ([]protocol.Event, error) {
	events := make([]protocol.Event, 0)
	err := l.Each(ctx, after, func(e protocol.Event) error {
		events = append(events, e)
		if limit > 0 && len(events) >= limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return events, nil
}

// Each calls fn for every event with a position greater than after, in
// position order. Iteration stops at the first error fn returns, and that
// error is returned unwrapped.
func (l *Log) Each(ctx context.Context, after int64, fn func(protocol.Event) error) error {
	rows, err := l.db.QueryContext(ctx, `
		SELECT position, key, intent, record_version, timestamp, value
		FROM events
		WHERE position > ?
		ORDER BY position ASC
	`, after)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

// ReadByKey returns every event about key, ordered by position.
func (l *Log) ReadByKey(ctx context.Context, key int64) ([]protocol.Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT position, key, intent, record_version, timestamp, value
		FROM events
		WHERE key = ?
		ORDER BY position ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("read events by key: %w", err)
	}
	defer rows.Close()

	events := make([]protocol.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("read events by key: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events by key: %w", err)
	}
	return events, nil
}

// LastPosition returns the highest stored position, or 0 for an empty log.
func (l *Log) LastPosition(ctx context.Context) (int64, error) {
	var pos int64
	if err := l.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM events`).Scan(&pos); err != nil {
		return 0, fmt.Errorf("read last position: %w", err)
	}
	return pos, nil
}

// Count returns the number of stored events.
func (l *Log) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

func scanEvent(rows *sql.Rows) (protocol.Event, error) {
	var (
		e      protocol.Event
		intent string
		value  string
	)
	if err := rows.Scan(&e.Position, &e.Key, &intent, &e.RecordVersion, &e.Timestamp, &value); err != nil {
		return e, fmt.Errorf("scan event: %w", err)
	}

	parsed, err := protocol.ParseIntent(intent)
	if err != nil {
		return e, fmt.Errorf("event %d: %w", e.Position, err)
	}
	e.Intent = parsed

	e.Value, err = protocol.DecodeRecordValue(parsed, []byte(value))
	if err != nil {
		return e, fmt.Errorf("event %d: %w", e.Position, err)
	}
	return e, nil
}

// errStop ends an Each iteration early without reporting a failure.
var errStop = errors.New("stop")
