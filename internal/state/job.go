package state

import (
	"context"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// JobState is the scheduling state of a job.
type JobState string

const (
	JobNotFound    JobState = "NOT_FOUND"
	JobActivatable JobState = "ACTIVATABLE"
	JobFailed      JobState = "FAILED"
	JobErrorThrown JobState = "ERROR_THROWN"
)

// JobStateReader reads jobs, their states and the activatable index.
type JobStateReader interface {
	Get(ctx context.Context, jobKey int64) (*protocol.JobRecord, bool, error)

	// State returns JobNotFound for unknown jobs.
	State(ctx context.Context, jobKey int64) (JobState, error)

	// ActivatableKeys returns the keys of jobs of the given type a worker
	// could pick up, in key order.
	ActivatableKeys(ctx context.Context, jobType string) ([]int64, error)
}

// MutableJobState is the job state the job and incident appliers write.
type MutableJobState interface {
	JobStateReader
	Create(ctx context.Context, jobKey int64, job *protocol.JobRecord) error
	Delete(ctx context.Context, jobKey int64) error
	Fail(ctx context.Context, jobKey int64, job *protocol.JobRecord) error
	ThrowError(ctx context.Context, jobKey int64, job *protocol.JobRecord) error
	UpdateRetries(ctx context.Context, jobKey int64, retries int32) error
	TimeOut(ctx context.Context, jobKey int64) error

	// Resolve stores job and makes it activatable again if it has retries
	// left. Only failed and error-thrown jobs are affected.
	Resolve(ctx context.Context, jobKey int64, job *protocol.JobRecord) error
}

// DBJobState keeps jobs, their states and an activatable index per job
// type.
type DBJobState struct {
	byKey       *db.ColumnFamily[*protocol.JobRecord]
	states      *db.ColumnFamily[JobState]
	activatable *db.ColumnFamily[db.Nil]
}

// NewJobState returns the job partition of d.
func NewJobState(d *db.DB) *DBJobState {
	return &DBJobState{
		byKey:       db.NewColumnFamily[*protocol.JobRecord](d, cfJobByKey, "JOBS"),
		states:      db.NewColumnFamily[JobState](d, cfJobStates, "JOB_STATES"),
		activatable: db.NewColumnFamily[db.Nil](d, cfJobActivatable, "JOB_ACTIVATABLE"),
	}
}

func jobKey(key int64) db.Key {
	return db.NewKey().Int64(key)
}

func activatableKey(jobType string, key int64) db.Key {
	return db.NewKey().Text(jobType).Int64(key)
}

func (s *DBJobState) Get(ctx context.Context, key int64) (*protocol.JobRecord, bool, error) {
	return s.byKey.Get(ctx, jobKey(key))
}

func (s *DBJobState) State(ctx context.Context, key int64) (JobState, error) {
	state, ok, err := s.states.Get(ctx, jobKey(key))
	if err != nil {
		return "", err
	}
	if !ok {
		return JobNotFound, nil
	}
	return state, nil
}

func (s *DBJobState) ActivatableKeys(ctx context.Context, jobType string) ([]int64, error) {
	prefix := db.NewKey().Text(jobType)
	entries, err := s.activatable.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]int64, 0, len(entries))
	for _, e := range entries {
		r := db.ReadKey(e.Key)
		if err := r.Skip(prefix); err != nil {
			return nil, err
		}
		k, err := r.Int64()
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *DBJobState) Create(ctx context.Context, key int64, job *protocol.JobRecord) error {
	stored := *job
	if err := s.byKey.Insert(ctx, jobKey(key), &stored); err != nil {
		return err
	}
	return s.setState(ctx, key, job.Type, JobActivatable)
}

func (s *DBJobState) mustGet(ctx context.Context, key int64, op string) (*protocol.JobRecord, error) {
	job, ok, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &db.InconsistencyError{ColumnFamily: s.byKey.Name(), Key: jobKey(key), Op: op, Err: db.ErrKeyNotFound}
	}
	return job, nil
}

// setState moves the job to state, keeping the activatable index in step.
func (s *DBJobState) setState(ctx context.Context, key int64, jobType string, state JobState) error {
	if err := s.states.Upsert(ctx, jobKey(key), state); err != nil {
		return err
	}
	if state == JobActivatable {
		return s.activatable.Upsert(ctx, activatableKey(jobType, key), db.Nil{})
	}
	return s.activatable.DeleteIfExists(ctx, activatableKey(jobType, key))
}

// Delete removes a completed, canceled or otherwise finished job.
func (s *DBJobState) Delete(ctx context.Context, key int64) error {
	job, err := s.mustGet(ctx, key, "delete")
	if err != nil {
		return err
	}
	if err := s.byKey.Delete(ctx, jobKey(key)); err != nil {
		return err
	}
	if err := s.states.DeleteIfExists(ctx, jobKey(key)); err != nil {
		return err
	}
	return s.activatable.DeleteIfExists(ctx, activatableKey(job.Type, key))
}

func (s *DBJobState) Fail(ctx context.Context, key int64, job *protocol.JobRecord) error {
	if _, err := s.mustGet(ctx, key, "update"); err != nil {
		return err
	}
	stored := *job
	if err := s.byKey.Update(ctx, jobKey(key), &stored); err != nil {
		return err
	}
	if job.Retries > 0 && job.RetryBackoff <= 0 {
		return s.setState(ctx, key, job.Type, JobActivatable)
	}
	return s.setState(ctx, key, job.Type, JobFailed)
}

func (s *DBJobState) ThrowError(ctx context.Context, key int64, job *protocol.JobRecord) error {
	if _, err := s.mustGet(ctx, key, "update"); err != nil {
		return err
	}
	stored := *job
	if err := s.byKey.Update(ctx, jobKey(key), &stored); err != nil {
		return err
	}
	return s.setState(ctx, key, job.Type, JobErrorThrown)
}

func (s *DBJobState) UpdateRetries(ctx context.Context, key int64, retries int32) error {
	job, err := s.mustGet(ctx, key, "update")
	if err != nil {
		return err
	}
	job.Retries = retries
	return s.byKey.Update(ctx, jobKey(key), job)
}

func (s *DBJobState) TimeOut(ctx context.Context, key int64) error {
	job, err := s.mustGet(ctx, key, "update")
	if err != nil {
		return err
	}
	return s.setState(ctx, key, job.Type, JobActivatable)
}

func (s *DBJobState) Resolve(ctx context.Context, key int64, job *protocol.JobRecord) error {
	if _, err := s.mustGet(ctx, key, "update"); err != nil {
		return err
	}
	state, err := s.State(ctx, key)
	if err != nil {
		return err
	}
	stored := *job
	if err := s.byKey.Update(ctx, jobKey(key), &stored); err != nil {
		return err
	}
	if (state == JobFailed || state == JobErrorThrown) && job.Retries > 0 {
		return s.setState(ctx, key, job.Type, JobActivatable)
	}
	return nil
}
