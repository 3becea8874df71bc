package appliers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

const taskKey = int64(10)

func newTask(assignee string) *protocol.UserTaskRecord {
	return &protocol.UserTaskRecord{
		Assignee:           assignee,
		ElementID:          "review",
		ElementInstanceKey: 5,
		ProcessInstanceKey: 1,
		BpmnProcessID:      "order",
		TenantID:           protocol.DefaultTenantID,
	}
}

func (f *fixture) lifecycle(t *testing.T, key int64) state.LifecycleState {
	t.Helper()
	ls, err := f.ps.UserTasks.LifecycleState(f.ctx, key)
	require.NoError(t, err)
	return ls
}

func (f *fixture) liveTask(t *testing.T, key int64) *protocol.UserTaskRecord {
	t.Helper()
	task, ok, err := f.ps.UserTasks.Get(f.ctx, key)
	require.NoError(t, err)
	require.True(t, ok, "task %d not found", key)
	return task
}

func (f *fixture) createTask(t *testing.T, key int64, assignee string) {
	t.Helper()
	f.applyVersion(t, key, protocol.UserTaskCreating, newTask(assignee), 2)
	f.applyVersion(t, key, protocol.UserTaskCreated, newTask(""), 2)
}

func TestUserTask_CreatingKeepsInitialAssigneeAside(t *testing.T) {
	f := setupAppliers(t)

	f.applyVersion(t, taskKey, protocol.UserTaskCreating, newTask("alice"), 2)
	assert.Equal(t, state.LifecycleCreating, f.lifecycle(t, taskKey))
	assert.Empty(t, f.liveTask(t, taskKey).Assignee)

	initial, ok, err := f.ps.UserTasks.InitialAssignee(f.ctx, taskKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", initial)

	f.applyVersion(t, taskKey, protocol.UserTaskCreated, newTask(""), 2)
	assert.Equal(t, state.LifecycleCreated, f.lifecycle(t, taskKey))

	f.ps.Clock.SetRecordTime(1_000)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, newTask("alice"), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, newTask("alice"), 3)

	assert.Equal(t, "alice", f.liveTask(t, taskKey).Assignee)
	_, ok, err = f.ps.UserTasks.InitialAssignee(f.ctx, taskKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserTask_AssignmentDeniedLeavesLiveRecord(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, newTask("alice"), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, newTask("alice"), 3)

	assign := newTask("bob")
	assign.RequestID = 42
	assign.RequestStreamID = 3
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, assign, 2)

	assert.Equal(t, state.LifecycleAssigning, f.lifecycle(t, taskKey))
	assert.Equal(t, "alice", f.liveTask(t, taskKey).Assignee)
	staged, ok, err := f.ps.UserTasks.IntermediateState(f.ctx, taskKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", staged.Record.Assignee)
	assert.Equal(t, []string{protocol.AttributeAssignee}, staged.ChangedAttributes)
	meta, ok, err := f.ps.UserTasks.RequestMetadata(f.ctx, taskKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.RequestMetadata{Intent: protocol.UserTaskAssigning, RequestID: 42, RequestStreamID: 3}, *meta)

	f.apply(t, taskKey, protocol.UserTaskAssignmentDenied, newTask("bob"))

	assert.Equal(t, state.LifecycleCreated, f.lifecycle(t, taskKey))
	assert.Equal(t, "alice", f.liveTask(t, taskKey).Assignee)
	_, ok, err = f.ps.UserTasks.IntermediateState(f.ctx, taskKey)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = f.ps.UserTasks.RequestMetadata(f.ctx, taskKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserTask_AssigneeAuditLog(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")

	f.ps.Clock.SetRecordTime(100)
	f.applyVersion(t, taskKey, protocol.UserTaskClaiming, newTask("alice"), 1)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, newTask("alice"), 2)

	f.ps.Clock.SetRecordTime(200)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, newTask(""), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, newTask(""), 2)
	assert.Empty(t, f.liveTask(t, taskKey).Assignee)

	f.ps.Clock.SetRecordTime(300)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, newTask("bob"), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, newTask("bob"), 3)

	log, err := f.ps.UserTasks.AssigneeAuditLog(f.ctx, taskKey)
	require.NoError(t, err)
	assert.Equal(t, []state.AssigneeAuditEntry{
		{Action: state.AuditClaim, Assignee: "alice", Timestamp: 100},
		{Action: state.AuditUnassign, Timestamp: 200},
		{Action: state.AuditAssign, Assignee: "bob", Timestamp: 300},
	}, log)
}

func TestUserTask_AssigneeAuditRecordsActor(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")

	withActor := func(assignee, actor string) *protocol.UserTaskRecord {
		task := newTask(assignee)
		task.Actor = actor
		return task
	}

	f.ps.Clock.SetRecordTime(100)
	f.applyVersion(t, taskKey, protocol.UserTaskClaiming, newTask("alice"), 1)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, withActor("alice", ""), 4)

	f.ps.Clock.SetRecordTime(200)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, withActor("", "carol"), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, withActor("", "carol"), 4)

	f.ps.Clock.SetRecordTime(300)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, withActor("bob", "dave"), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, withActor("bob", "dave"), 4)

	f.ps.Clock.SetRecordTime(400)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, withActor("erin", "dave"), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, withActor("erin", "dave"), 3)

	log, err := f.ps.UserTasks.AssigneeAuditLog(f.ctx, taskKey)
	require.NoError(t, err)
	assert.Equal(t, []state.AssigneeAuditEntry{
		{Action: state.AuditClaim, Assignee: "alice", Actor: "alice", Timestamp: 100},
		{Action: state.AuditUnassign, Actor: "carol", Timestamp: 200},
		{Action: state.AuditAssign, Assignee: "bob", Actor: "dave", Timestamp: 300},
		{Action: state.AuditAssign, Assignee: "erin", Timestamp: 400},
	}, log)
}

func TestUserTask_PinnedClockStampsAudit(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")

	f.apply(t, 1, protocol.ClockPinned, &protocol.ClockRecord{Time: 5_000})
	f.ps.Clock.SetRecordTime(100)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, newTask("alice"), 2)
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, newTask("alice"), 2)

	log, err := f.ps.UserTasks.AssigneeAuditLog(f.ctx, taskKey)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, int64(5_000), log[0].Timestamp)
}

func TestUserTask_UpdateWithCorrection(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")

	update := newTask("")
	update.Priority = 80
	update.ChangedAttributes = []string{protocol.AttributePriority}
	f.applyVersion(t, taskKey, protocol.UserTaskUpdating, update, 2)
	assert.Equal(t, state.LifecycleUpdating, f.lifecycle(t, taskKey))

	correction := newTask("")
	correction.DueDate = "2026-11-01T00:00:00Z"
	correction.ChangedAttributes = []string{protocol.AttributeDueDate}
	f.apply(t, taskKey, protocol.UserTaskCorrected, correction)

	staged, ok, err := f.ps.UserTasks.IntermediateState(f.ctx, taskKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int32(80), staged.Record.Priority)
	assert.Equal(t, "2026-11-01T00:00:00Z", staged.Record.DueDate)
	assert.Equal(t, []string{protocol.AttributeDueDate, protocol.AttributePriority}, staged.ChangedAttributes)

	live := f.liveTask(t, taskKey)
	assert.Zero(t, live.Priority)
	assert.Empty(t, live.DueDate)

	updated := newTask("")
	updated.Priority = 80
	updated.DueDate = "2026-11-01T00:00:00Z"
	updated.FollowUpDate = "ignored"
	updated.ChangedAttributes = []string{protocol.AttributePriority}
	f.applyVersion(t, taskKey, protocol.UserTaskUpdated, updated, 2)

	live = f.liveTask(t, taskKey)
	assert.Equal(t, int32(80), live.Priority)
	assert.Equal(t, "2026-11-01T00:00:00Z", live.DueDate)
	assert.Empty(t, live.FollowUpDate)
	assert.Equal(t, state.LifecycleCreated, f.lifecycle(t, taskKey))
}

func TestUserTask_UpdateDenied(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")

	update := newTask("")
	update.CandidateGroups = []string{"sales"}
	update.ChangedAttributes = []string{protocol.AttributeCandidateGroups}
	f.applyVersion(t, taskKey, protocol.UserTaskUpdating, update, 2)
	f.apply(t, taskKey, protocol.UserTaskUpdateDenied, update)

	assert.Empty(t, f.liveTask(t, taskKey).CandidateGroups)
	assert.Equal(t, state.LifecycleCreated, f.lifecycle(t, taskKey))
}

func TestUserTask_CompletionRemovesEverything(t *testing.T) {
	f := setupAppliers(t)
	f.apply(t, 100, protocol.GlobalListenerBatchConfigured, &protocol.GlobalListenerBatchRecord{
		Listeners: []protocol.GlobalListener{{ID: "audit", Type: "audit-job", Retries: 3}},
	})
	f.createTask(t, taskKey, "")

	f.apply(t, 1, protocol.VariableDocumentUpdating, &protocol.VariableDocumentRecord{ScopeKey: 5})
	f.applyVersion(t, taskKey, protocol.UserTaskCompleting, newTask(""), 2)

	version, ok, err := f.ps.GlobalListeners.PinnedVersion(f.ctx, taskKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), version)

	f.applyVersion(t, taskKey, protocol.UserTaskCompleted, newTask(""), 2)

	_, ok, err = f.ps.UserTasks.Get(f.ctx, taskKey)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, state.LifecycleNotFound, f.lifecycle(t, taskKey))

	_, ok, err = f.ps.Variables.PendingDocument(f.ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = f.ps.GlobalListeners.Pinned(f.ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserTask_CompletionDenied(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")

	f.applyVersion(t, taskKey, protocol.UserTaskCompleting, newTask(""), 2)
	assert.Equal(t, state.LifecycleCompleting, f.lifecycle(t, taskKey))
	f.apply(t, taskKey, protocol.UserTaskCompletionDenied, newTask(""))

	assert.Equal(t, state.LifecycleCreated, f.lifecycle(t, taskKey))
	f.liveTask(t, taskKey)
}

func TestUserTask_LegacyLifecycle(t *testing.T) {
	f := setupAppliers(t)

	f.applyVersion(t, taskKey, protocol.UserTaskCreating, newTask("alice"), 1)
	assert.Equal(t, "alice", f.liveTask(t, taskKey).Assignee)
	f.applyVersion(t, taskKey, protocol.UserTaskCreated, newTask("alice"), 1)

	f.applyVersion(t, taskKey, protocol.UserTaskAssigning, newTask("bob"), 1)
	assert.Equal(t, state.LifecycleAssigning, f.lifecycle(t, taskKey))
	f.applyVersion(t, taskKey, protocol.UserTaskAssigned, newTask("bob"), 1)
	assert.Equal(t, "bob", f.liveTask(t, taskKey).Assignee)

	update := newTask("")
	update.Priority = 10
	update.ChangedAttributes = []string{protocol.AttributePriority}
	f.applyVersion(t, taskKey, protocol.UserTaskUpdating, update, 1)
	f.applyVersion(t, taskKey, protocol.UserTaskUpdated, update, 1)

	live := f.liveTask(t, taskKey)
	assert.Equal(t, int32(10), live.Priority)
	assert.Equal(t, "bob", live.Assignee)

	// Legacy appliers never pin listener configurations.
	f.apply(t, 100, protocol.GlobalListenerBatchConfigured, &protocol.GlobalListenerBatchRecord{})
	f.applyVersion(t, taskKey, protocol.UserTaskCompleting, newTask(""), 1)
	_, ok, err := f.ps.GlobalListeners.PinnedVersion(f.ctx, taskKey)
	require.NoError(t, err)
	assert.False(t, ok)

	f.applyVersion(t, taskKey, protocol.UserTaskCompleted, newTask(""), 1)
	assert.Equal(t, state.LifecycleNotFound, f.lifecycle(t, taskKey))
}

func TestUserTask_Migrated(t *testing.T) {
	f := setupAppliers(t)
	f.createTask(t, taskKey, "")

	target := newTask("")
	target.ProcessDefinitionKey = 77
	target.BpmnProcessID = "order-v2"
	target.ProcessDefinitionVersion = 2
	target.ElementID = "approve"
	target.ElementInstanceKey = 999
	f.apply(t, taskKey, protocol.UserTaskMigrated, target)

	live := f.liveTask(t, taskKey)
	assert.Equal(t, int64(77), live.ProcessDefinitionKey)
	assert.Equal(t, "order-v2", live.BpmnProcessID)
	assert.Equal(t, int32(2), live.ProcessDefinitionVersion)
	assert.Equal(t, "approve", live.ElementID)
	assert.Equal(t, int64(5), live.ElementInstanceKey)
}
