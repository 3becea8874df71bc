package db

import (
	"context"
	"encoding/json"
	"fmt"
)

// ColumnFamilyID identifies a disjoint key space in the store.
type ColumnFamilyID int64

// Nil is the value type of column families used as sets or indexes.
type Nil struct{}

// ColumnFamily is a typed view over one key space. Values are stored as
// JSON; encoding/json writes struct fields in declaration order and map
// keys sorted, so equal values always produce equal bytes.
type ColumnFamily[V any] struct {
	db   *DB
	id   ColumnFamilyID
	name string
}

// NewColumnFamily returns the column family id of d, named for errors.
func NewColumnFamily[V any](d *DB, id ColumnFamilyID, name string) *ColumnFamily[V] {
	return &ColumnFamily[V]{db: d, id: id, name: name}
}

// Name returns the column family name.
func (c *ColumnFamily[V]) Name() string {
	return c.name
}

func (c *ColumnFamily[V]) inconsistent(op string, key Key, err error) error {
	return &InconsistencyError{ColumnFamily: c.name, Key: key, Op: op, Err: err}
}

// Get returns the value stored at key and whether it exists.
func (c *ColumnFamily[V]) Get(ctx context.Context, key Key) (V, bool, error) {
	var zero V
	var raw []byte
	err := c.db.conn(ctx).QueryRowContext(ctx,
		`SELECT value FROM kv WHERE cf = ? AND key = ?`, c.id, []byte(key)).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("get %s: %w", c.name, err)
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, fmt.Errorf("decode %s value: %w", c.name, err)
	}
	return v, true, nil
}

// Exists reports whether key is present.
func (c *ColumnFamily[V]) Exists(ctx context.Context, key Key) (bool, error) {
	var one int
	err := c.db.conn(ctx).QueryRowContext(ctx,
		`SELECT 1 FROM kv WHERE cf = ? AND key = ?`, c.id, []byte(key)).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("exists %s: %w", c.name, err)
	}
	return true, nil
}

// Insert stores v at key. It fails with an InconsistencyError wrapping
// ErrKeyExists if key is already present.
func (c *ColumnFamily[V]) Insert(ctx context.Context, key Key, v V) error {
	raw, err := c.encode(v)
	if err != nil {
		return err
	}
	res, err := c.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO kv (cf, key, value) VALUES (?, ?, ?)
		ON CONFLICT(cf, key) DO NOTHING
	`, c.id, []byte(key), raw)
	if err != nil {
		return fmt.Errorf("insert %s: %w", c.name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.inconsistent("insert", key, ErrKeyExists)
	}
	return nil
}

// Update replaces the value at key. It fails with an InconsistencyError
// wrapping ErrKeyNotFound if key is absent.
func (c *ColumnFamily[V]) Update(ctx context.Context, key Key, v V) error {
	raw, err := c.encode(v)
	if err != nil {
		return err
	}
	res, err := c.db.conn(ctx).ExecContext(ctx,
		`UPDATE kv SET value = ? WHERE cf = ? AND key = ?`, raw, c.id, []byte(key))
	if err != nil {
		return fmt.Errorf("update %s: %w", c.name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return c.inconsistent("update", key, ErrKeyNotFound)
	}
	return nil
}

// Upsert stores v at key whether or not it exists.
func (c *ColumnFamily[V]) Upsert(ctx context.Context, key Key, v V) error {
	raw, err := c.encode(v)
	if err != nil {
		return err
	}
	_, err = c.db.conn(ctx).ExecContext(ctx, `
		INSERT INTO kv (cf, key, value) VALUES (?, ?, ?)
		ON CONFLICT(cf, key) DO UPDATE SET value = excluded.value
	`, c.id, []byte(key), raw)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", c.name, err)
	}
	return nil
}

// Delete removes key. It fails with an InconsistencyError wrapping
// ErrKeyNotFound if key is absent.
func (c *ColumnFamily[V]) Delete(ctx context.Context, key Key) error {
	deleted, err := c.delete(ctx, key)
	if err != nil {
		return err
	}
	if !deleted {
		return c.inconsistent("delete", key, ErrKeyNotFound)
	}
	return nil
}

// DeleteIfExists removes key if present.
func (c *ColumnFamily[V]) DeleteIfExists(ctx context.Context, key Key) error {
	_, err := c.delete(ctx, key)
	return err
}

func (c *ColumnFamily[V]) delete(ctx context.Context, key Key) (bool, error) {
	res, err := c.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM kv WHERE cf = ? AND key = ?`, c.id, []byte(key))
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", c.name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Entry is one key/value pair read from a column family.
type Entry[V any] struct {
	Key   Key
	Value V
}

// Scan returns every entry whose key starts with prefix, in key order.
// An empty prefix returns the whole column family.
func (c *ColumnFamily[V]) Scan(ctx context.Context, prefix Key) ([]Entry[V], error) {
	query := `SELECT key, value FROM kv WHERE cf = ? ORDER BY key`
	args := []any{c.id}
	if len(prefix) > 0 {
		query = `SELECT key, value FROM kv WHERE cf = ? AND key >= ? ORDER BY key`
		args = append(args, []byte(prefix))
		if end := prefixEnd(prefix); end != nil {
			query = `SELECT key, value FROM kv WHERE cf = ? AND key >= ? AND key < ? ORDER BY key`
			args = append(args, end)
		}
	}

	rows, err := c.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.name, err)
	}
	defer rows.Close()

	entries := []Entry[V]{}
	for rows.Next() {
		var key, raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s value: %w", c.name, err)
		}
		entries = append(entries, Entry[V]{Key: key, Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.name, err)
	}
	return entries, nil
}

// WhileEqualPrefix visits entries starting with prefix in key order until
// visit returns false. The rows are read before the first visit, so visit
// may modify the column family.
func (c *ColumnFamily[V]) WhileEqualPrefix(ctx context.Context, prefix Key, visit func(key Key, v V) (bool, error)) error {
	entries, err := c.Scan(ctx, prefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		more, err := visit(e.Key, e.Value)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (c *ColumnFamily[V]) DeletePrefix(ctx context.Context, prefix Key) (int64, error) {
	query := `DELETE FROM kv WHERE cf = ?`
	args := []any{c.id}
	if len(prefix) > 0 {
		query = `DELETE FROM kv WHERE cf = ? AND key >= ?`
		args = append(args, []byte(prefix))
		if end := prefixEnd(prefix); end != nil {
			query = `DELETE FROM kv WHERE cf = ? AND key >= ? AND key < ?`
			args = append(args, end)
		}
	}
	res, err := c.db.conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete prefix %s: %w", c.name, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// IsEmpty reports whether the column family has no entries.
func (c *ColumnFamily[V]) IsEmpty(ctx context.Context) (bool, error) {
	var one int
	err := c.db.conn(ctx).QueryRowContext(ctx,
		`SELECT 1 FROM kv WHERE cf = ? LIMIT 1`, c.id).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return true, nil
		}
		return false, fmt.Errorf("is empty %s: %w", c.name, err)
	}
	return false, nil
}

func (c *ColumnFamily[V]) encode(v V) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", c.name, err)
	}
	return raw, nil
}
