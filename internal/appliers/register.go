package appliers

import (
	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/state"
)

// registrar keeps the first registration error so the table below reads as
// a plain list.
type registrar struct {
	ea    *EventAppliers
	added []Registration
	err   error
}

func (r *registrar) add(intent protocol.Intent, version int32, applier Applier) {
	if r.err != nil {
		return
	}
	if r.err = r.ea.Register(intent, version, applier); r.err == nil {
		r.added = append(r.added, Registration{Intent: intent, Version: version, Applier: applier})
	}
}

// RegisterStateAppliers registers every applier over ps. Versions that have
// been released must stay registered so that old logs can be replayed.
func RegisterStateAppliers(ea *EventAppliers, ps *state.ProcessingState) error {
	_, err := registerStateAppliers(ea, ps)
	return err
}

// registerStateAppliers returns the registrations in the order they were
// made, which is their order in this file.
func registerStateAppliers(ea *EventAppliers, ps *state.ProcessingState) ([]Registration, error) {
	r := &registrar{ea: ea}

	registerFormAppliers(r, ps)
	registerIdentityAppliers(r, ps)
	registerProcessInstanceAppliers(r, ps)
	registerUserTaskAppliers(r, ps)
	registerIncidentAndJobAppliers(r, ps)
	registerSystemAppliers(r, ps)

	return r.added, r.err
}

func registerFormAppliers(r *registrar, ps *state.ProcessingState) {
	r.add(protocol.FormCreated, 1, &formCreatedApplier{forms: ps.Forms})
	r.add(protocol.FormCreated, 2, &formCreatedV2Applier{forms: ps.Forms})
	r.add(protocol.FormDeleted, 1, &formDeletedApplier{forms: ps.Forms})
}

func registerIdentityAppliers(r *registrar, ps *state.ProcessingState) {
	r.add(protocol.MappingRuleCreated, 1, &mappingRuleCreatedApplier{mappingRules: ps.MappingRules})
	r.add(protocol.MappingRuleUpdated, 1, &mappingRuleUpdatedApplier{mappingRules: ps.MappingRules})
	r.add(protocol.MappingRuleDeleted, 1, &mappingRuleDeletedApplier{mappingRules: ps.MappingRules, memberships: ps.Memberships, authorizations: ps.Authorizations})

	r.add(protocol.RoleCreated, 1, &roleCreatedApplier{roles: ps.Roles})
	r.add(protocol.RoleUpdated, 1, &roleUpdatedApplier{roles: ps.Roles})
	r.add(protocol.RoleEntityAdded, 1, &roleEntityAddedApplier{roles: ps.Roles, memberships: ps.Memberships})
	r.add(protocol.RoleEntityRemoved, 1, &roleEntityRemovedApplier{memberships: ps.Memberships})
	r.add(protocol.RoleDeleted, 1, &roleDeletedApplier{roles: ps.Roles, memberships: ps.Memberships})

	r.add(protocol.GroupCreated, 1, &groupCreatedApplier{groups: ps.Groups})
	r.add(protocol.GroupUpdated, 1, &groupUpdatedApplier{groups: ps.Groups})
	r.add(protocol.GroupEntityAdded, 1, &groupEntityAddedApplier{groups: ps.Groups, memberships: ps.Memberships})
	r.add(protocol.GroupEntityRemoved, 1, &groupEntityRemovedApplier{memberships: ps.Memberships})
	r.add(protocol.GroupDeleted, 1, &groupDeletedApplier{groups: ps.Groups, memberships: ps.Memberships})

	r.add(protocol.TenantCreated, 1, &tenantCreatedApplier{tenants: ps.Tenants})
	r.add(protocol.TenantUpdated, 1, &tenantUpdatedApplier{tenants: ps.Tenants})
	r.add(protocol.TenantEntityAdded, 1, &tenantEntityAddedApplier{tenants: ps.Tenants, memberships: ps.Memberships})
	r.add(protocol.TenantEntityRemoved, 1, &tenantEntityRemovedApplier{memberships: ps.Memberships})
	r.add(protocol.TenantDeleted, 1, &tenantDeletedApplier{tenants: ps.Tenants, memberships: ps.Memberships})

	r.add(protocol.AuthorizationCreated, 1, &authorizationCreatedApplier{authorizations: ps.Authorizations})
	r.add(protocol.AuthorizationUpdated, 1, &authorizationUpdatedApplier{authorizations: ps.Authorizations})
	r.add(protocol.AuthorizationDeleted, 1, &authorizationDeletedApplier{authorizations: ps.Authorizations})
}

func registerProcessInstanceAppliers(r *registrar, ps *state.ProcessingState) {
	ei := ps.ElementInstances
	r.add(protocol.ProcessInstanceElementActivating, 1, &elementActivatingApplier{elementInstances: ei})
	r.add(protocol.ProcessInstanceElementActivated, 1, &elementStateApplier{elementInstances: ei, state: protocol.ProcessInstanceElementActivated})
	r.add(protocol.ProcessInstanceElementCompleting, 1, &elementStateApplier{elementInstances: ei, state: protocol.ProcessInstanceElementCompleting})
	r.add(protocol.ProcessInstanceElementCompleted, 1, &elementRemovedApplier{elementInstances: ei})
	r.add(protocol.ProcessInstanceElementTerminating, 1, &elementStateApplier{elementInstances: ei, state: protocol.ProcessInstanceElementTerminating})
	r.add(protocol.ProcessInstanceElementTerminated, 1, &elementRemovedApplier{elementInstances: ei})
	r.add(protocol.ProcessInstanceSequenceFlowTaken, 1, &sequenceFlowTakenApplier{elementInstances: ei})
	r.add(protocol.ProcessInstanceSequenceFlowDeleted, 1, &sequenceFlowDeletedApplier{elementInstances: ei})
	r.add(protocol.ProcessInstanceElementMigrated, 1, &elementMigratedApplier{elementInstances: ei})
	r.add(protocol.ProcessInstanceElementMigrated, 2, &elementMigratedV2Applier{elementInstances: ei})

	r.add(protocol.ProcessInstanceCreationCreated, 1, &noopApplier{})
	r.add(protocol.ProcessInstanceCreationCreated, 2, &processInstanceCreatedV2Applier{usageMetrics: ps.UsageMetrics})
}

func registerUserTaskAppliers(r *registrar, ps *state.ProcessingState) {
	ut, gl := ps.UserTasks, ps.GlobalListeners
	r.add(protocol.UserTaskCreating, 1, &userTaskCreatingApplier{userTasks: ut})
	r.add(protocol.UserTaskCreating, 2, &userTaskCreatingV2Applier{userTasks: ut, globalListeners: gl})
	r.add(protocol.UserTaskCreated, 1, &userTaskLifecycleApplier{userTasks: ut, lifecycle: state.LifecycleCreated})
	r.add(protocol.UserTaskCreated, 2, &userTaskCreatedV2Applier{userTasks: ut, globalListeners: gl})
	r.add(protocol.UserTaskAssigning, 1, &userTaskLifecycleApplier{userTasks: ut, lifecycle: state.LifecycleAssigning})
	r.add(protocol.UserTaskAssigning, 2, &userTaskAssigningV2Applier{userTasks: ut, globalListeners: gl})
	r.add(protocol.UserTaskClaiming, 1, &userTaskLifecycleApplier{userTasks: ut, lifecycle: state.LifecycleClaiming})
	r.add(protocol.UserTaskAssigned, 1, &userTaskAssignedApplier{userTasks: ut})
	r.add(protocol.UserTaskAssigned, 2, &userTaskAssignedV2Applier{userTasks: ut, globalListeners: gl, clock: ps.Clock})
	r.add(protocol.UserTaskAssigned, 3, &userTaskAssignedV3Applier{userTasks: ut, globalListeners: gl, clock: ps.Clock})
	r.add(protocol.UserTaskAssigned, 4, &userTaskAssignedV4Applier{userTasks: ut, globalListeners: gl, clock: ps.Clock})
	r.add(protocol.UserTaskAssignmentDenied, 1, &userTaskDeniedApplier{userTasks: ut, globalListeners: gl})
	r.add(protocol.UserTaskUpdating, 1, &userTaskLifecycleApplier{userTasks: ut, lifecycle: state.LifecycleUpdating})
	r.add(protocol.UserTaskUpdating, 2, &userTaskStartV2Applier{userTasks: ut, globalListeners: gl, lifecycle: state.LifecycleUpdating, intent: protocol.UserTaskUpdating})
	r.add(protocol.UserTaskUpdated, 1, &userTaskUpdatedApplier{userTasks: ut})
	r.add(protocol.UserTaskUpdated, 2, &userTaskUpdatedV2Applier{userTasks: ut, globalListeners: gl})
	r.add(protocol.UserTaskUpdateDenied, 1, &userTaskDeniedApplier{userTasks: ut, globalListeners: gl})
	r.add(protocol.UserTaskCorrected, 1, &userTaskCorrectedApplier{userTasks: ut})
	r.add(protocol.UserTaskCanceling, 1, &userTaskLifecycleApplier{userTasks: ut, lifecycle: state.LifecycleCanceling})
	r.add(protocol.UserTaskCanceling, 2, &userTaskStartV2Applier{userTasks: ut, globalListeners: gl, lifecycle: state.LifecycleCanceling, intent: protocol.UserTaskCanceling})
	r.add(protocol.UserTaskCanceled, 1, &userTaskTerminatedApplier{userTasks: ut, globalListeners: gl, variables: ps.Variables})
	r.add(protocol.UserTaskCompleting, 1, &userTaskLifecycleApplier{userTasks: ut, lifecycle: state.LifecycleCompleting})
	r.add(protocol.UserTaskCompleting, 2, &userTaskStartV2Applier{userTasks: ut, globalListeners: gl, lifecycle: state.LifecycleCompleting, intent: protocol.UserTaskCompleting})
	r.add(protocol.UserTaskCompleted, 1, &userTaskCompletedApplier{userTasks: ut})
	r.add(protocol.UserTaskCompleted, 2, &userTaskTerminatedApplier{userTasks: ut, globalListeners: gl, variables: ps.Variables})
	r.add(protocol.UserTaskCompletionDenied, 1, &userTaskDeniedApplier{userTasks: ut, globalListeners: gl})
	r.add(protocol.UserTaskMigrated, 1, &userTaskMigratedApplier{userTasks: ut})
}

func registerIncidentAndJobAppliers(r *registrar, ps *state.ProcessingState) {
	r.add(protocol.IncidentCreated, 1, &incidentCreatedApplier{incidents: ps.Incidents})
	r.add(protocol.IncidentResolved, 1, &incidentResolvedApplier{incidents: ps.Incidents, jobs: ps.Jobs})
	r.add(protocol.IncidentResolved, 2, &incidentResolvedV2Applier{incidents: ps.Incidents, jobs: ps.Jobs, elementInstances: ps.ElementInstances})
	r.add(protocol.IncidentMigrated, 1, &incidentMigratedApplier{incidents: ps.Incidents})

	r.add(protocol.JobCreated, 1, &jobCreatedApplier{jobs: ps.Jobs})
	r.add(protocol.JobCompleted, 1, &jobRemovedApplier{jobs: ps.Jobs})
	r.add(protocol.JobFailed, 1, &jobFailedApplier{jobs: ps.Jobs})
	r.add(protocol.JobErrorThrown, 1, &jobErrorThrownApplier{jobs: ps.Jobs})
	r.add(protocol.JobRetriesUpdated, 1, &jobRetriesUpdatedApplier{jobs: ps.Jobs})
	r.add(protocol.JobTimedOut, 1, &jobTimedOutApplier{jobs: ps.Jobs})
	r.add(protocol.JobCanceled, 1, &jobRemovedApplier{jobs: ps.Jobs})
}

func registerSystemAppliers(r *registrar, ps *state.ProcessingState) {
	r.add(protocol.VariableCreated, 1, &variableSetApplier{variables: ps.Variables})
	r.add(protocol.VariableUpdated, 1, &variableSetApplier{variables: ps.Variables})
	r.add(protocol.VariableDocumentUpdating, 1, &variableDocumentUpdatingApplier{variables: ps.Variables})
	r.add(protocol.VariableDocumentUpdated, 1, &variableDocumentResolvedApplier{variables: ps.Variables})
	r.add(protocol.VariableDocumentUpdateDenied, 1, &variableDocumentResolvedApplier{variables: ps.Variables})

	r.add(protocol.ClockPinned, 1, &clockPinnedApplier{clock: ps.ClockState})
	r.add(protocol.ClockResetted, 1, &clockResettedApplier{clock: ps.ClockState})

	r.add(protocol.UsageMetricExported, 1, &usageMetricExportedApplier{usageMetrics: ps.UsageMetrics})
	r.add(protocol.GlobalListenerBatchConfigured, 1, &globalListenersConfiguredApplier{globalListeners: ps.GlobalListeners})

	r.add(protocol.DecisionEvaluationEvaluated, 1, &noopApplier{})
	r.add(protocol.DecisionEvaluationEvaluated, 2, &decisionEvaluatedV2Applier{usageMetrics: ps.UsageMetrics})
	r.add(protocol.DecisionEvaluationFailed, 1, &noopApplier{})
}
