package appliers

import (
	"context"
	"slices"

	"github.com/roach88/eventstate/internal/db"
	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

// The first user task appliers wrote every change straight through to the
// live record. The V2 family stages changes as intermediate state until the
// task listeners accept or deny them, and pins the global listener
// configuration for the duration of the transition.

type userTaskCreatingApplier struct {
	userTasks state.MutableUserTaskState
}

func (a *userTaskCreatingApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	task, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	return a.userTasks.Create(ctx, key, task)
}

// userTaskCreatingV2Applier keeps the requested assignee aside. It is only
// assigned once the task is created, so listeners see an unassigned task.
type userTaskCreatingV2Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
}

func (a *userTaskCreatingV2Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	task := rec.Clone()
	task.Assignee = ""
	if err := a.userTasks.Create(ctx, key, task); err != nil {
		return err
	}
	if rec.Assignee != "" {
		if err := a.userTasks.StoreInitialAssignee(ctx, key, rec.Assignee); err != nil {
			return err
		}
	}
	if err := a.userTasks.DeleteIntermediateState(ctx, key); err != nil {
		return err
	}
	_, _, err = a.globalListeners.PinCurrent(ctx, key)
	return err
}

// userTaskLifecycleApplier only moves the task to an in-flight or resolved
// state.
type userTaskLifecycleApplier struct {
	userTasks state.MutableUserTaskState
	lifecycle state.LifecycleState
}

func (a *userTaskLifecycleApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return a.userTasks.UpdateLifecycleState(ctx, key, a.lifecycle)
}

// userTaskCreatedV2Applier accepts the creation together with any
// corrections the creating listeners made.
type userTaskCreatedV2Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
}

func (a *userTaskCreatedV2Applier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	staged, ok, err := a.userTasks.IntermediateState(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		if err := mergeIntoLive(ctx, a.userTasks, key, staged.Record, staged.ChangedAttributes); err != nil {
			return err
		}
	}
	return resolveTransition(ctx, a.userTasks, a.globalListeners, key)
}

type userTaskAssignedApplier struct {
	userTasks state.MutableUserTaskState
}

func (a *userTaskAssignedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	if err := mergeIntoLive(ctx, a.userTasks, key, rec, []string{protocol.AttributeAssignee}); err != nil {
		return err
	}
	return a.userTasks.UpdateLifecycleState(ctx, key, state.LifecycleCreated)
}

// userTaskAssignedV2Applier accepts an assignment, a claim or an unassign
// and records it in the task's assignee audit log.
type userTaskAssignedV2Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
	clock           *state.StreamClock
}

func (a *userTaskAssignedV2Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	return acceptAssignment(ctx, a.userTasks, a.globalListeners, a.clock, key, rec, false)
}

// userTaskAssignedV3Applier also consumes the assignee put aside on
// creation, which the first assignment after creation applies.
type userTaskAssignedV3Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
	clock           *state.StreamClock
}

func (a *userTaskAssignedV3Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	if err := acceptAssignment(ctx, a.userTasks, a.globalListeners, a.clock, key, rec, false); err != nil {
		return err
	}
	return a.userTasks.DeleteInitialAssignee(ctx, key)
}

// userTaskAssignedV4Applier also records who performed the assignment.
type userTaskAssignedV4Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
	clock           *state.StreamClock
}

func (a *userTaskAssignedV4Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	if err := acceptAssignment(ctx, a.userTasks, a.globalListeners, a.clock, key, rec, true); err != nil {
		return err
	}
	return a.userTasks.DeleteInitialAssignee(ctx, key)
}

type userTaskUpdatedApplier struct {
	userTasks state.MutableUserTaskState
}

func (a *userTaskUpdatedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	if err := mergeIntoLive(ctx, a.userTasks, key, rec, rec.ChangedAttributes); err != nil {
		return err
	}
	return a.userTasks.UpdateLifecycleState(ctx, key, state.LifecycleCreated)
}

type userTaskUpdatedV2Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
}

func (a *userTaskUpdatedV2Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	changed, err := stagedAttributes(ctx, a.userTasks, key, rec.ChangedAttributes)
	if err != nil {
		return err
	}
	if err := mergeIntoLive(ctx, a.userTasks, key, rec, changed); err != nil {
		return err
	}
	return resolveTransition(ctx, a.userTasks, a.globalListeners, key)
}

// userTaskStartV2Applier starts an update, cancellation or completion. The
// live record stays as it is until the transition is accepted.
type userTaskStartV2Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
	lifecycle       state.LifecycleState
	intent          protocol.Intent
}

func (a *userTaskStartV2Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	return startTransition(ctx, a.userTasks, a.globalListeners, key, rec, a.lifecycle, a.intent, rec.ChangedAttributes)
}

// userTaskAssigningV2Applier starts an assignment. The assignee always
// counts as changed, including when it is cleared.
type userTaskAssigningV2Applier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
}

func (a *userTaskAssigningV2Applier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	changed := unionAttributes(rec.ChangedAttributes, []string{protocol.AttributeAssignee})
	return startTransition(ctx, a.userTasks, a.globalListeners, key, rec, state.LifecycleAssigning, protocol.UserTaskAssigning, changed)
}

// userTaskDeniedApplier rejects an in-flight transition. The live record
// is left exactly as it was before the transition started.
type userTaskDeniedApplier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
}

func (a *userTaskDeniedApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return resolveTransition(ctx, a.userTasks, a.globalListeners, key)
}

// userTaskCorrectedApplier applies a listener's corrections to the staged
// record. They reach the live record only if the transition is accepted.
type userTaskCorrectedApplier struct {
	userTasks state.MutableUserTaskState
}

func (a *userTaskCorrectedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	staged, ok, err := a.userTasks.IntermediateState(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		live, err := loadUserTask(ctx, a.userTasks, key, "correct")
		if err != nil {
			return err
		}
		staged = &state.IntermediateState{Record: live}
	}
	corrected := staged.Record.Clone()
	corrected.CopyAttributes(rec, rec.ChangedAttributes)
	return a.userTasks.StoreIntermediateState(ctx, key, corrected, unionAttributes(staged.ChangedAttributes, rec.ChangedAttributes))
}

type userTaskCompletedApplier struct {
	userTasks state.MutableUserTaskState
}

func (a *userTaskCompletedApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	return a.userTasks.Delete(ctx, key)
}

// userTaskTerminatedApplier removes a canceled or completed task, its
// pending variable update and its listener pin.
type userTaskTerminatedApplier struct {
	userTasks       state.MutableUserTaskState
	globalListeners state.MutableGlobalListenersState
	variables       state.MutableVariableState
}

func (a *userTaskTerminatedApplier) ApplyState(ctx context.Context, key int64, _ protocol.RecordValue) error {
	task, err := loadUserTask(ctx, a.userTasks, key, "terminate")
	if err != nil {
		return err
	}
	if err := a.variables.RemoveVariableDocument(ctx, task.ElementInstanceKey); err != nil {
		return err
	}
	if err := a.globalListeners.Release(ctx, key); err != nil {
		return err
	}
	return a.userTasks.Delete(ctx, key)
}

type userTaskMigratedApplier struct {
	userTasks state.MutableUserTaskState
}

func (a *userTaskMigratedApplier) ApplyState(ctx context.Context, key int64, value protocol.RecordValue) error {
	rec, err := recordAs[*protocol.UserTaskRecord](value)
	if err != nil {
		return err
	}
	task, err := loadUserTask(ctx, a.userTasks, key, "migrate")
	if err != nil {
		return err
	}
	task.ProcessDefinitionKey = rec.ProcessDefinitionKey
	task.BpmnProcessID = rec.BpmnProcessID
	task.ProcessDefinitionVersion = rec.ProcessDefinitionVersion
	task.ElementID = rec.ElementID
	return a.userTasks.Update(ctx, key, task)
}

func loadUserTask(ctx context.Context, userTasks state.UserTaskState, key int64, op string) (*protocol.UserTaskRecord, error) {
	task, ok, err := userTasks.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &db.InconsistencyError{ColumnFamily: "USER_TASKS", Key: db.NewKey().Int64(key), Op: op, Err: db.ErrKeyNotFound}
	}
	return task, nil
}

// startTransition stages the live record with the changed attributes of
// rec applied and remembers which request asked for it.
func startTransition(ctx context.Context, userTasks state.MutableUserTaskState, listeners state.MutableGlobalListenersState,
	key int64, rec *protocol.UserTaskRecord, lifecycle state.LifecycleState, intent protocol.Intent, changed []string) error {
	live, err := loadUserTask(ctx, userTasks, key, "stage")
	if err != nil {
		return err
	}
	if err := userTasks.UpdateLifecycleState(ctx, key, lifecycle); err != nil {
		return err
	}
	staged := live.Clone()
	staged.CopyAttributes(rec, changed)
	if err := userTasks.StoreIntermediateState(ctx, key, staged, changed); err != nil {
		return err
	}
	meta := state.RequestMetadata{Intent: intent, RequestID: rec.RequestID, RequestStreamID: rec.RequestStreamID}
	if err := userTasks.StoreRequestMetadata(ctx, key, meta); err != nil {
		return err
	}
	_, _, err = listeners.PinCurrent(ctx, key)
	return err
}

// resolveTransition returns the task to CREATED and drops everything kept
// for the transition in flight.
func resolveTransition(ctx context.Context, userTasks state.MutableUserTaskState, listeners state.MutableGlobalListenersState, key int64) error {
	if err := userTasks.UpdateLifecycleState(ctx, key, state.LifecycleCreated); err != nil {
		return err
	}
	if err := userTasks.DeleteIntermediateState(ctx, key); err != nil {
		return err
	}
	if err := userTasks.DeleteRequestMetadata(ctx, key); err != nil {
		return err
	}
	return listeners.Release(ctx, key)
}

// acceptAssignment merges an accepted assignment into the live record and
// appends it to the audit log. With withActor the entry names who performed
// it: the record's actor, or the claimant of a claim that names none.
func acceptAssignment(ctx context.Context, userTasks state.MutableUserTaskState, listeners state.MutableGlobalListenersState,
	clock *state.StreamClock, key int64, rec *protocol.UserTaskRecord, withActor bool) error {
	lifecycle, err := userTasks.LifecycleState(ctx, key)
	if err != nil {
		return err
	}
	changed, err := stagedAttributes(ctx, userTasks, key, rec.ChangedAttributes, []string{protocol.AttributeAssignee})
	if err != nil {
		return err
	}
	if err := mergeIntoLive(ctx, userTasks, key, rec, changed); err != nil {
		return err
	}

	now, err := clock.Now(ctx)
	if err != nil {
		return err
	}
	entry := state.AssigneeAuditEntry{Action: state.AuditAssign, Assignee: rec.Assignee, Timestamp: now}
	switch {
	case rec.Assignee == "":
		entry.Action = state.AuditUnassign
	case lifecycle == state.LifecycleClaiming || rec.Action == state.AuditClaim:
		entry.Action = state.AuditClaim
	}
	if withActor {
		entry.Actor = rec.Actor
		if entry.Actor == "" && entry.Action == state.AuditClaim {
			entry.Actor = rec.Assignee
		}
	}
	if err := userTasks.AppendAssigneeAudit(ctx, key, entry); err != nil {
		return err
	}
	return resolveTransition(ctx, userTasks, listeners, key)
}

// stagedAttributes returns the attributes changed by the transition in
// flight together with extra.
func stagedAttributes(ctx context.Context, userTasks state.UserTaskState, key int64, extra ...[]string) ([]string, error) {
	staged, ok, err := userTasks.IntermediateState(ctx, key)
	if err != nil {
		return nil, err
	}
	if ok {
		extra = append(extra, staged.ChangedAttributes)
	}
	return unionAttributes(extra...), nil
}

func mergeIntoLive(ctx context.Context, userTasks state.MutableUserTaskState, key int64, src *protocol.UserTaskRecord, changed []string) error {
	live, err := loadUserTask(ctx, userTasks, key, "merge")
	if err != nil {
		return err
	}
	live.CopyAttributes(src, changed)
	return userTasks.Update(ctx, key, live)
}

func unionAttributes(sets ...[]string) []string {
	out := slices.Concat(sets...)
	slices.Sort(out)
	return slices.Compact(out)
}
