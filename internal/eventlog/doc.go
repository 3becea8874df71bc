// Package eventlog provides a SQLite-backed copy of the committed event log.
//
// The log is append-only and ordered by position. It is the event source the
// replay driver reads when rebuilding state outside a running cluster: every
// committed record is stored with its intent name, record version, logical
// timestamp and JSON value.
//
// # Ordering
//
//   - All reads use ORDER BY position ASC
//   - Appending a position that is already stored is a no-op
//   - Appending into a gap below the last position is rejected
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package eventlog
