package appliers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type fixture struct {
	ea  *EventAppliers
	ps  *state.ProcessingState
	ctx context.Context
}

func setupAppliers(t *testing.T) *fixture {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	ps := state.NewProcessingState(d, state.Options{})
	ea := NewEventAppliers()
	require.NoError(t, RegisterStateAppliers(ea, ps))
	return &fixture{ea: ea, ps: ps, ctx: context.Background()}
}

// apply applies one event with the latest version of its applier.
func (f *fixture) apply(t *testing.T, key int64, intent protocol.Intent, value protocol.RecordValue) {
	t.Helper()
	f.applyVersion(t, key, intent, value, f.ea.LatestVersion(intent))
}

func (f *fixture) applyVersion(t *testing.T, key int64, intent protocol.Intent, value protocol.RecordValue, version int32) {
	t.Helper()
	require.NoError(t, f.ea.ApplyState(f.ctx, key, intent, value, version), "apply %s v%d", intent, version)
}
