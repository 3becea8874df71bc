package db

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/roach88/eventstate/internal/protocol"
)

// Digest hashes every key/value pair of every column family in (cf, key)
// order. Two stores that applied the same events hold the same digest.
// Bookkeeping in the meta table is not part of the digest.
func (d *DB) Digest(ctx context.Context) (string, error) {
	rows, err := d.conn(ctx).QueryContext(ctx, `SELECT cf, key, value FROM kv ORDER BY cf, key`)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	defer rows.Close()

	h := protocol.NewDomainHash(protocol.DomainStateDigest)
	var lenBuf [8]byte
	for rows.Next() {
		var cf int64
		var key, value []byte
		if err := rows.Scan(&cf, &key, &value); err != nil {
			return "", fmt.Errorf("digest: %w", err)
		}
		binary.BigEndian.PutUint64(lenBuf[:], uint64(cf))
		h.Write(lenBuf[:])
		for _, part := range [][]byte{key, value} {
			binary.BigEndian.PutUint64(lenBuf[:], uint64(len(part)))
			h.Write(lenBuf[:])
			h.Write(part)
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type snapshotLine struct {
	LastPosition *int64          `json:"last_position,omitempty"`
	CF           int64           `json:"cf,omitempty"`
	Key          []byte          `json:"key,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
}

// Snapshot writes the full state as JSON lines: a header with the last
// applied position followed by one line per key in (cf, key) order.
func (d *DB) Snapshot(ctx context.Context, w io.Writer) error {
	pos, err := d.LastPosition(ctx)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	if err := enc.Encode(snapshotLine{LastPosition: &pos}); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	rows, err := d.conn(ctx).QueryContext(ctx, `SELECT cf, key, value FROM kv ORDER BY cf, key`)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line snapshotLine
		var value []byte
		if err := rows.Scan(&line.CF, &line.Key, &value); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		line.Value = value
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	return bw.Flush()
}

// Restore replaces the whole state with a snapshot written by Snapshot.
func (d *DB) Restore(ctx context.Context, r io.Reader) error {
	return d.Transaction(ctx, func(ctx context.Context) error {
		conn := d.conn(ctx)
		if _, err := conn.ExecContext(ctx, `DELETE FROM kv`); err != nil {
			return fmt.Errorf("clear state: %w", err)
		}
		if _, err := conn.ExecContext(ctx, `DELETE FROM meta`); err != nil {
			return fmt.Errorf("clear meta: %w", err)
		}

		dec := json.NewDecoder(r)
		first := true
		for {
			var line snapshotLine
			if err := dec.Decode(&line); err == io.EOF {
				break
			} else if err != nil {
				return fmt.Errorf("read snapshot: %w", err)
			}

			if first {
				first = false
				if line.LastPosition == nil {
					return fmt.Errorf("read snapshot: missing header")
				}
				if err := d.SetLastPosition(ctx, *line.LastPosition); err != nil {
					return err
				}
				continue
			}

			if _, err := conn.ExecContext(ctx,
				`INSERT INTO kv (cf, key, value) VALUES (?, ?, ?)`,
				line.CF, line.Key, []byte(line.Value)); err != nil {
				return fmt.Errorf("restore row: %w", err)
			}
		}
		return nil
	})
}
