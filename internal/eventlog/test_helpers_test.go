package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/roach88/eventstate/internal/protocol"
)

// createTestLog creates a new event log in a temp directory.
func createTestLog(t *testing.T) *Log {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// formEvent creates a FORM:CREATED event at the given position.
func formEvent(pos, key int64, version int32) protocol.Event {
	return protocol.Event{
		Position:      pos,
		Key:           key,
		Intent:        protocol.FormCreated,
		RecordVersion: 2,
		Timestamp:     1_000 * pos,
		Value: &protocol.FormRecord{
			FormID:   "invoice",
			FormKey:  key,
			Version:  version,
			TenantID: protocol.DefaultTenantID,
		},
	}
}
