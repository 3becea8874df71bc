package appliers

import (
	"context"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

type jobCreatedApplier struct {
	jobs state.MutableJobState
}

func (a *jobCreatedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	job, err := recordAs[*protocol.JobRecord](value)
	if err != nil {
		return err
	}
	return a.jobs.Create(ctx, key, job)
}

// jobRemovedApplier drops a completed or canceled job.
type jobRemovedApplier struct {
	jobs state.MutableJobState
}

func (a *jobRemovedApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return a.jobs.Delete(ctx, key)
}

type jobFailedApplier struct {
	jobs state.MutableJobState
}

func (a *jobFailedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	job, err := recordAs[*protocol.JobRecord](value)
	if err != nil {
		return err
	}
	return a.jobs.Fail(ctx, key, job)
}

type jobErrorThrownApplier struct {
	jobs state.MutableJobState
}

func (a *jobErrorThrownApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	job, err := recordAs[*protocol.JobRecord](value)
	if err != nil {
		return err
	}
	return a.jobs.ThrowError(ctx, key, job)
}

type jobRetriesUpdatedApplier struct {
	jobs state.MutableJobState
}

func (a *jobRetriesUpdatedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	job, err := recordAs[*protocol.JobRecord](value)
	if err != nil {
		return err
	}
	return a.jobs.UpdateRetries(ctx, key, job.Retries)
}

type jobTimedOutApplier struct {
	jobs state.MutableJobState
}

func (a *jobTimedOutApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return a.jobs.TimeOut(ctx, key)
}
