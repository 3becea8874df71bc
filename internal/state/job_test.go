package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/protocol"
)

func TestJobState_FailAndResolve(t *testing.T) {
	ps, ctx := setupTestState(t)
	jobs := ps.Jobs

	job := &protocol.JobRecord{Type: "mail", Retries: 1, ElementID: "send"}
	require.NoError(t, jobs.Create(ctx, 5, job))

	keys, err := jobs.ActivatableKeys(ctx, "mail")
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, keys)

	failed := *job
	failed.Retries = 0
	require.NoError(t, jobs.Fail(ctx, 5, &failed))

	state, err := jobs.State(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, state)
	keys, err = jobs.ActivatableKeys(ctx, "mail")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Resolving without retries keeps the job failed.
	require.NoError(t, jobs.Resolve(ctx, 5, &failed))
	state, _ = jobs.State(ctx, 5)
	assert.Equal(t, JobFailed, state)

	require.NoError(t, jobs.UpdateRetries(ctx, 5, 2))
	updated, _, err := jobs.Get(ctx, 5)
	require.NoError(t, err)
	require.NoError(t, jobs.Resolve(ctx, 5, updated))
	state, _ = jobs.State(ctx, 5)
	assert.Equal(t, JobActivatable, state)

	require.NoError(t, jobs.Delete(ctx, 5))
	state, _ = jobs.State(ctx, 5)
	assert.Equal(t, JobNotFound, state)
}

func TestIncidentState_Indexes(t *testing.T) {
	ps, ctx := setupTestState(t)
	incidents := ps.Incidents

	require.NoError(t, incidents.Create(ctx, 1, &protocol.IncidentRecord{ErrorType: "JOB_NO_RETRIES", JobKey: 5, ElementInstanceKey: 50}))
	require.NoError(t, incidents.Create(ctx, 2, &protocol.IncidentRecord{ErrorType: "IO_MAPPING_ERROR", ElementInstanceKey: 60}))

	key, ok, err := incidents.IncidentKeyByJobKey(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), key)

	key, ok, err = incidents.IncidentKeyByElementInstance(ctx, 60)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), key)

	require.NoError(t, incidents.Delete(ctx, 1))
	_, ok, err = incidents.IncidentKeyByJobKey(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}
