package db

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound is returned when an update or delete targets a key
	// that does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists is returned when an insert targets a key that already
	// exists.
	ErrKeyExists = errors.New("key already exists")
)

// InconsistencyError means the state does not match what the event being
// applied expects. Replay cannot continue past it.
type InconsistencyError struct {
	ColumnFamily string
	Key          []byte
	Op           string
	Err          error
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("inconsistent state: %s %s[%x]: %v", e.Op, e.ColumnFamily, e.Key, e.Err)
}

func (e *InconsistencyError) Unwrap() error {
	return e.Err
}

// IsInconsistencyError reports whether err, or anything it wraps, is an
// InconsistencyError.
func IsInconsistencyError(err error) bool {
	var ie *InconsistencyError
	return errors.As(err, &ie)
}

// Inconsistent builds an InconsistencyError for checks made outside a
// column family, e.g. by a state partition that found a dangling index.
func Inconsistent(op, what string, err error) *InconsistencyError {
	return &InconsistencyError{ColumnFamily: what, Op: op, Err: err}
}
