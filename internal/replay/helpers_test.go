package replay

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/appliers"
	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
	"github.com/roach88/eventstate/internal/testutil"
)

func newTestDriver(t *testing.T, opts ...Option) (*Driver, *state.ProcessingState) {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ps := state.NewProcessingState(d, state.Options{})
	ea := appliers.NewEventAppliers()
	require.NoError(t, appliers.RegisterStateAppliers(ea, ps))

	opts = append([]Option{WithIDGenerator(testutil.NewIDSequence("replay").Next)}, opts...)
	return New(ps, ea, opts...), ps
}

func formCreated(pos, key int64, version int32) protocol.Event {
	return protocol.Event{
		Position:      pos,
		Key:           key,
		Intent:        protocol.FormCreated,
		RecordVersion: 2,
		Timestamp:     1_000 * pos,
		Value: &protocol.FormRecord{
			FormID:        "invoice",
			FormKey:       key,
			Version:       version,
			VersionTag:    fmt.Sprintf("v%d", version),
			DeploymentKey: 100 + key,
			TenantID:      protocol.DefaultTenantID,
		},
	}
}

func formDeleted(pos, key int64, version int32) protocol.Event {
	e := formCreated(pos, key, version)
	e.Intent = protocol.FormDeleted
	e.RecordVersion = 1
	return e
}

// recordingObserver remembers what the driver reported.
type recordingObserver struct {
	applied []int64
	skipped []int64
	failed  []string
}

func (o *recordingObserver) Applied(e protocol.Event, _ time.Duration) {
	o.applied = append(o.applied, e.Position)
}

func (o *recordingObserver) Skipped(e protocol.Event) {
	o.skipped = append(o.skipped, e.Position)
}

func (o *recordingObserver) Failed(_ protocol.Event, code string) {
	o.failed = append(o.failed, code)
}

func digest(t *testing.T, ps *state.ProcessingState) string {
	t.Helper()
	d, err := ps.DB.Digest(context.Background())
	require.NoError(t, err)
	return d
}
