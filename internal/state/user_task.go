package state

import (
	"context"
	"slices"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
)

// LifecycleState is where a user task is in its lifecycle. The in-flight
// states are left by an accepting or denying event.
type LifecycleState string

const (
	LifecycleNotFound   LifecycleState = "NOT_FOUND"
	LifecycleCreating   LifecycleState = "CREATING"
	LifecycleCreated    LifecycleState = "CREATED"
	LifecycleAssigning  LifecycleState = "ASSIGNING"
	LifecycleClaiming   LifecycleState = "CLAIMING"
	LifecycleUpdating   LifecycleState = "UPDATING"
	LifecycleCanceling  LifecycleState = "CANCELING"
	LifecycleCompleting LifecycleState = "COMPLETING"
)

// IntermediateState is the proposed record of an in-flight transition.
// Only the attributes in ChangedAttributes are merged into the live record
// when the transition is accepted.
type IntermediateState struct {
	Record            *protocol.UserTaskRecord `json:"record"`
	ChangedAttributes []string                 `json:"changed_attributes,omitempty"`
}

// RequestMetadata correlates an in-flight transition with the request
// that started it.
type RequestMetadata struct {
	Intent          protocol.Intent `json:"intent"`
	RequestID       int64           `json:"request_id"`
	RequestStreamID int32           `json:"request_stream_id"`
}

// Assignee audit actions.
const (
	AuditAssign   = "assign"
	AuditClaim    = "claim"
	AuditUnassign = "unassign"
)

// AssigneeAuditEntry records one accepted assignment. Actor is who
// performed it; entries written before actors were recorded have none.
type AssigneeAuditEntry struct {
	Action    string `json:"action"`
	Assignee  string `json:"assignee,omitempty"`
	Actor     string `json:"actor,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// UserTaskState reads user tasks together with the rows kept for their
// in-flight transitions.
type UserTaskState interface {
	Get(ctx context.Context, key int64) (*protocol.UserTaskRecord, bool, error)

	// LifecycleState returns LifecycleNotFound for unknown tasks.
	LifecycleState(ctx context.Context, key int64) (LifecycleState, error)
	IntermediateState(ctx context.Context, key int64) (*IntermediateState, bool, error)
	InitialAssignee(ctx context.Context, key int64) (string, bool, error)
	RequestMetadata(ctx context.Context, key int64) (*RequestMetadata, bool, error)
	AssigneeAuditLog(ctx context.Context, key int64) ([]AssigneeAuditEntry, error)
}

// MutableUserTaskState is the user task state the user task appliers
// write.
type MutableUserTaskState interface {
	UserTaskState
	Create(ctx context.Context, key int64, task *protocol.UserTaskRecord) error
	Update(ctx context.Context, key int64, task *protocol.UserTaskRecord) error
	UpdateLifecycleState(ctx context.Context, key int64, state LifecycleState) error
	Delete(ctx context.Context, key int64) error

	StoreIntermediateState(ctx context.Context, key int64, task *protocol.UserTaskRecord, changed []string) error
	DeleteIntermediateState(ctx context.Context, key int64) error
	StoreRequestMetadata(ctx context.Context, key int64, meta RequestMetadata) error
	DeleteRequestMetadata(ctx context.Context, key int64) error
	StoreInitialAssignee(ctx context.Context, key int64, assignee string) error
	DeleteInitialAssignee(ctx context.Context, key int64) error
	AppendAssigneeAudit(ctx context.Context, key int64, entry AssigneeAuditEntry) error
}

// DBUserTaskState keeps the live record of each user task and the rows
// kept alongside it.
type DBUserTaskState struct {
	byKey           *db.ColumnFamily[*protocol.UserTaskRecord]
	lifecycle       *db.ColumnFamily[LifecycleState]
	intermediate    *db.ColumnFamily[*IntermediateState]
	initialAssignee *db.ColumnFamily[string]
	requestMetadata *db.ColumnFamily[RequestMetadata]
	audit           *db.ColumnFamily[AssigneeAuditEntry]
}

// NewUserTaskState returns the user task partition of d.
func NewUserTaskState(d *db.DB) *DBUserTaskState {
	return &DBUserTaskState{
		byKey:           db.NewColumnFamily[*protocol.UserTaskRecord](d, cfUserTaskByKey, "USER_TASKS"),
		lifecycle:       db.NewColumnFamily[LifecycleState](d, cfUserTaskLifecycle, "USER_TASK_STATES"),
		intermediate:    db.NewColumnFamily[*IntermediateState](d, cfUserTaskIntermediate, "USER_TASK_INTERMEDIATE_STATES"),
		initialAssignee: db.NewColumnFamily[string](d, cfUserTaskInitialAssignee, "USER_TASK_INITIAL_ASSIGNEE"),
		requestMetadata: db.NewColumnFamily[RequestMetadata](d, cfUserTaskRequestMetadata, "USER_TASK_TRANSITION_REQUEST_METADATA"),
		audit:           db.NewColumnFamily[AssigneeAuditEntry](d, cfUserTaskAssigneeAudit, "USER_TASK_ASSIGNEE_AUDIT"),
	}
}

func taskKey(key int64) db.Key {
	return db.NewKey().Int64(key)
}

func (s *DBUserTaskState) Get(ctx context.Context, key int64) (*protocol.UserTaskRecord, bool, error) {
	return s.byKey.Get(ctx, taskKey(key))
}

func (s *DBUserTaskState) LifecycleState(ctx context.Context, key int64) (LifecycleState, error) {
	state, ok, err := s.lifecycle.Get(ctx, taskKey(key))
	if err != nil {
		return "", err
	}
	if !ok {
		return LifecycleNotFound, nil
	}
	return state, nil
}

func (s *DBUserTaskState) IntermediateState(ctx context.Context, key int64) (*IntermediateState, bool, error) {
	return s.intermediate.Get(ctx, taskKey(key))
}

func (s *DBUserTaskState) InitialAssignee(ctx context.Context, key int64) (string, bool, error) {
	return s.initialAssignee.Get(ctx, taskKey(key))
}

func (s *DBUserTaskState) RequestMetadata(ctx context.Context, key int64) (*RequestMetadata, bool, error) {
	meta, ok, err := s.requestMetadata.Get(ctx, taskKey(key))
	if err != nil || !ok {
		return nil, false, err
	}
	return &meta, true, nil
}

func (s *DBUserTaskState) AssigneeAuditLog(ctx context.Context, key int64) ([]AssigneeAuditEntry, error) {
	entries, err := s.audit.Scan(ctx, taskKey(key))
	if err != nil {
		return nil, err
	}
	out := make([]AssigneeAuditEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out, nil
}

// Create stores a new task in the CREATING state.
func (s *DBUserTaskState) Create(ctx context.Context, key int64, task *protocol.UserTaskRecord) error {
	stored := task.Clone()
	stored.UserTaskKey = key
	stored.ChangedAttributes = nil
	if err := s.byKey.Insert(ctx, taskKey(key), stored); err != nil {
		return err
	}
	return s.lifecycle.Upsert(ctx, taskKey(key), LifecycleCreating)
}

func (s *DBUserTaskState) Update(ctx context.Context, key int64, task *protocol.UserTaskRecord) error {
	stored := task.Clone()
	stored.UserTaskKey = key
	stored.ChangedAttributes = nil
	return s.byKey.Update(ctx, taskKey(key), stored)
}

func (s *DBUserTaskState) UpdateLifecycleState(ctx context.Context, key int64, state LifecycleState) error {
	return s.lifecycle.Update(ctx, taskKey(key), state)
}

// Delete removes the task and every row kept alongside it.
func (s *DBUserTaskState) Delete(ctx context.Context, key int64) error {
	k := taskKey(key)
	if err := s.byKey.Delete(ctx, k); err != nil {
		return err
	}
	for _, del := range []func(context.Context, db.Key) error{
		s.lifecycle.DeleteIfExists,
		s.intermediate.DeleteIfExists,
		s.initialAssignee.DeleteIfExists,
		s.requestMetadata.DeleteIfExists,
	} {
		if err := del(ctx, k); err != nil {
			return err
		}
	}
	_, err := s.audit.DeletePrefix(ctx, k)
	return err
}

func (s *DBUserTaskState) StoreIntermediateState(ctx context.Context, key int64, task *protocol.UserTaskRecord, changed []string) error {
	staged := task.Clone()
	staged.UserTaskKey = key
	staged.ChangedAttributes = nil
	changed = slices.Clone(changed)
	slices.Sort(changed)
	changed = slices.Compact(changed)
	return s.intermediate.Upsert(ctx, taskKey(key), &IntermediateState{Record: staged, ChangedAttributes: changed})
}

func (s *DBUserTaskState) DeleteIntermediateState(ctx context.Context, key int64) error {
	return s.intermediate.DeleteIfExists(ctx, taskKey(key))
}

func (s *DBUserTaskState) StoreRequestMetadata(ctx context.Context, key int64, meta RequestMetadata) error {
	return s.requestMetadata.Upsert(ctx, taskKey(key), meta)
}

func (s *DBUserTaskState) DeleteRequestMetadata(ctx context.Context, key int64) error {
	return s.requestMetadata.DeleteIfExists(ctx, taskKey(key))
}

func (s *DBUserTaskState) StoreInitialAssignee(ctx context.Context, key int64, assignee string) error {
	return s.initialAssignee.Upsert(ctx, taskKey(key), assignee)
}

func (s *DBUserTaskState) DeleteInitialAssignee(ctx context.Context, key int64) error {
	return s.initialAssignee.DeleteIfExists(ctx, taskKey(key))
}

// AppendAssigneeAudit adds entry after the task's existing entries.
func (s *DBUserTaskState) AppendAssigneeAudit(ctx context.Context, key int64, entry AssigneeAuditEntry) error {
	existing, err := s.audit.Scan(ctx, taskKey(key))
	if err != nil {
		return err
	}
	return s.audit.Insert(ctx, taskKey(key).Int64(int64(len(existing))), entry)
}
