package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/roach88/eventstate/internal/protocol"
)

// FSM applies committed raft log entries through a Driver. Each command
// entry carries one JSON-encoded protocol.Event; when the event has no
// position, the raft log index is used.
type FSM struct {
	mu     sync.Mutex
	driver *Driver
}

var _ raft.FSM = (*FSM)(nil)

// NewFSM wraps d. Call d.Resume before handing the FSM to raft.
func NewFSM(d *Driver) *FSM {
	return &FSM{driver: d}
}

// Apply implements raft.FSM. It returns nil or the apply error.
func (f *FSM) Apply(l *raft.Log) interface{} {
	if l == nil || l.Type != raft.LogCommand || len(l.Data) == 0 {
		return nil
	}

	var e protocol.Event
	if err := json.Unmarshal(l.Data, &e); err != nil {
		return fmt.Errorf("decode log entry %d: %w", l.Index, err)
	}
	if e.Position == 0 {
		e.Position = int64(l.Index)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.driver.Apply(context.Background(), e); err != nil {
		return err
	}
	return nil
}

// Snapshot implements raft.FSM. The state is serialized eagerly so later
// Apply calls cannot leak into the snapshot.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf bytes.Buffer
	if err := f.driver.state.DB.Snapshot(context.Background(), &buf); err != nil {
		return nil, fmt.Errorf("snapshot state: %w", err)
	}
	return &stateSnapshot{data: buf.Bytes()}, nil
}

// Restore implements raft.FSM. It replaces the whole state and resumes from
// the snapshot's last applied position.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	f.mu.Lock()
	defer f.mu.Unlock()

	ctx := context.Background()
	if err := f.driver.state.DB.Restore(ctx, rc); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	_, err := f.driver.Resume(ctx)
	return err
}

type stateSnapshot struct {
	data []byte
}

// Persist implements raft.FSMSnapshot.
func (s *stateSnapshot) Persist(sink raft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		sink.Cancel()
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return sink.Close()
}

// Release implements raft.FSMSnapshot.
func (s *stateSnapshot) Release() {}
