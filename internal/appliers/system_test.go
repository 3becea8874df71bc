package appliers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/protocol"
)

func TestGlobalListeners_PinnedCopiesAreReferenceCounted(t *testing.T) {
	f := setupAppliers(t)
	f.apply(t, 100, protocol.GlobalListenerBatchConfigured, &protocol.GlobalListenerBatchRecord{
		Listeners: []protocol.GlobalListener{{ID: "audit", Type: "audit-job", EventTypes: []string{"creating"}, Retries: 3}},
	})

	f.applyVersion(t, 1, protocol.UserTaskCreating, newTask(""), 2)
	f.applyVersion(t, 2, protocol.UserTaskCreating, newTask(""), 2)

	refs, err := f.ps.GlobalListeners.References(f.ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, refs)

	f.apply(t, 200, protocol.GlobalListenerBatchConfigured, &protocol.GlobalListenerBatchRecord{})
	current, ok, err := f.ps.GlobalListeners.Current(f.ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), current.GlobalListenerBatchKey)

	f.applyVersion(t, 1, protocol.UserTaskCreated, newTask(""), 2)
	pinned, ok, err := f.ps.GlobalListeners.Pinned(f.ctx, 100)
	require.NoError(t, err)
	require.True(t, ok, "still referenced by task 2")
	require.Len(t, pinned.Listeners, 1)
	assert.Equal(t, "audit", pinned.Listeners[0].ID)

	f.applyVersion(t, 2, protocol.UserTaskCreated, newTask(""), 2)
	_, ok, err = f.ps.GlobalListeners.Pinned(f.ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	// A new transition pins the configuration current at that time.
	f.applyVersion(t, 1, protocol.UserTaskUpdating, newTask(""), 2)
	version, ok, err := f.ps.GlobalListeners.PinnedVersion(f.ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), version)
}

func TestUsageMetric_ExportRotatesBucket(t *testing.T) {
	f := setupAppliers(t)

	f.ps.Clock.SetRecordTime(1_000)
	f.applyVersion(t, 1, protocol.ProcessInstanceCreationCreated, &protocol.ProcessInstanceCreationRecord{TenantID: "acme"}, 2)
	f.applyVersion(t, 2, protocol.ProcessInstanceCreationCreated, &protocol.ProcessInstanceCreationRecord{}, 2)
	f.applyVersion(t, 3, protocol.ProcessInstanceCreationCreated, &protocol.ProcessInstanceCreationRecord{}, 1)
	f.applyVersion(t, 4, protocol.DecisionEvaluationEvaluated, &protocol.DecisionEvaluationRecord{TenantID: "acme"}, 2)
	f.applyVersion(t, 5, protocol.DecisionEvaluationEvaluated, &protocol.DecisionEvaluationRecord{TenantID: "acme"}, 1)
	f.apply(t, 6, protocol.DecisionEvaluationFailed, &protocol.DecisionEvaluationRecord{TenantID: "acme"})

	bucket, ok, err := f.ps.UsageMetrics.ActiveBucket(f.ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1_000), bucket.FromTime)
	assert.Equal(t, map[string]int64{"acme": 1, protocol.DefaultTenantID: 1}, bucket.RPI)
	assert.Equal(t, map[string]int64{"acme": 1}, bucket.EDI)

	f.apply(t, 7, protocol.UsageMetricExported, &protocol.UsageMetricRecord{ResetTime: 300_000})
	bucket, _, err = f.ps.UsageMetrics.ActiveBucket(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), bucket.FromTime)
	assert.Equal(t, int64(600_000), bucket.ToTime)
	assert.Empty(t, bucket.RPI)

	f.applyVersion(t, 8, protocol.ProcessInstanceCreationCreated, &protocol.ProcessInstanceCreationRecord{}, 2)
	f.apply(t, 9, protocol.UsageMetricExported, &protocol.UsageMetricRecord{ResetTime: 300_000})
	bucket, _, err = f.ps.UsageMetrics.ActiveBucket(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), bucket.RPI[protocol.DefaultTenantID], "repeated export for the same reset time keeps the bucket")
}

func TestClock_PinAndReset(t *testing.T) {
	f := setupAppliers(t)
	f.ps.Clock.SetRecordTime(42)

	f.apply(t, 1, protocol.ClockPinned, &protocol.ClockRecord{Time: 7_000})
	now, err := f.ps.Clock.Now(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7_000), now)

	f.apply(t, 2, protocol.ClockResetted, &protocol.ClockRecord{})
	now, err = f.ps.Clock.Now(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), now)
}

func TestVariables_DocumentStagedUntilResolved(t *testing.T) {
	f := setupAppliers(t)

	f.apply(t, 1, protocol.VariableCreated, &protocol.VariableRecord{Name: "total", Value: "10", ScopeKey: 5})
	f.apply(t, 1, protocol.VariableUpdated, &protocol.VariableRecord{Name: "total", Value: "12", ScopeKey: 5})
	v, ok, err := f.ps.Variables.GetVariable(f.ctx, 5, "total")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12", v.Value)

	doc := &protocol.VariableDocumentRecord{ScopeKey: 5, Variables: protocol.Document{"approved": protocol.Bool(true)}}
	f.apply(t, 2, protocol.VariableDocumentUpdating, doc)
	pending, ok, err := f.ps.Variables.PendingDocument(f.ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, protocol.Bool(true), pending.Variables["approved"])

	f.apply(t, 2, protocol.VariableDocumentUpdateDenied, doc)
	_, ok, err = f.ps.Variables.PendingDocument(f.ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}
