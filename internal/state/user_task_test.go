package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

func TestUserTaskState_CreateAndLifecycle(t *testing.T) {
	ps, ctx := setupTestState(t)
	tasks := ps.UserTasks

	state, err := tasks.LifecycleState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, LifecycleNotFound, state)

	require.NoError(t, tasks.Create(ctx, 1, &protocol.UserTaskRecord{ElementID: "review", ChangedAttributes: []string{"assignee"}}))

	state, err = tasks.LifecycleState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, LifecycleCreating, state)

	task, ok, err := tasks.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), task.UserTaskKey)
	assert.Nil(t, task.ChangedAttributes)

	err = tasks.Create(ctx, 1, &protocol.UserTaskRecord{})
	assert.ErrorIs(t, err, db.ErrKeyExists)

	require.NoError(t, tasks.UpdateLifecycleState(ctx, 1, LifecycleCreated))
	assert.ErrorIs(t, tasks.UpdateLifecycleState(ctx, 2, LifecycleCreated), db.ErrKeyNotFound)
}

func TestUserTaskState_IntermediateStateIsIndependent(t *testing.T) {
	ps, ctx := setupTestState(t)
	tasks := ps.UserTasks

	live := &protocol.UserTaskRecord{Assignee: "alice"}
	require.NoError(t, tasks.Create(ctx, 1, live))

	staged := live.Clone()
	staged.Assignee = "bob"
	require.NoError(t, tasks.StoreIntermediateState(ctx, 1, staged, []string{"assignee", "assignee"}))

	inter, ok, err := tasks.IntermediateState(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bob", inter.Record.Assignee)
	assert.Equal(t, []string{"assignee"}, inter.ChangedAttributes)

	got, _, err := tasks.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Assignee)

	require.NoError(t, tasks.DeleteIntermediateState(ctx, 1))
	_, ok, err = tasks.IntermediateState(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserTaskState_AuditLogAppendsInOrder(t *testing.T) {
	ps, ctx := setupTestState(t)
	tasks := ps.UserTasks

	require.NoError(t, tasks.Create(ctx, 1, &protocol.UserTaskRecord{}))
	entries := []AssigneeAuditEntry{
		{Action: AuditClaim, Assignee: "alice", Timestamp: 10},
		{Action: AuditUnassign, Actor: "carol", Timestamp: 20},
		{Action: AuditAssign, Assignee: "bob", Actor: "dave", Timestamp: 30},
	}
	for _, e := range entries {
		require.NoError(t, tasks.AppendAssigneeAudit(ctx, 1, e))
	}

	got, err := tasks.AssigneeAuditLog(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestUserTaskState_DeleteRemovesEveryRow(t *testing.T) {
	ps, ctx := setupTestState(t)
	tasks := ps.UserTasks

	require.NoError(t, tasks.Create(ctx, 1, &protocol.UserTaskRecord{}))
	require.NoError(t, tasks.StoreIntermediateState(ctx, 1, &protocol.UserTaskRecord{}, nil))
	require.NoError(t, tasks.StoreInitialAssignee(ctx, 1, "alice"))
	require.NoError(t, tasks.StoreRequestMetadata(ctx, 1, RequestMetadata{Intent: protocol.UserTaskAssigning, RequestID: 9}))
	require.NoError(t, tasks.AppendAssigneeAudit(ctx, 1, AssigneeAuditEntry{Action: AuditAssign}))

	require.NoError(t, tasks.Delete(ctx, 1))

	empty, err := ps.DB.Digest(ctx)
	require.NoError(t, err)

	fresh, ctx2 := setupTestState(t)
	want, err := fresh.DB.Digest(ctx2)
	require.NoError(t, err)
	assert.Equal(t, want, empty)
}
