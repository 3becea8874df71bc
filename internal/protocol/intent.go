package protocol

import (
	"fmt"
	"strings"
)

// ValueType names the kind of record an intent belongs to.
type ValueType string

const (
	ValueTypeForm                    ValueType = "FORM"
	ValueTypeMappingRule             ValueType = "MAPPING_RULE"
	ValueTypeRole                    ValueType = "ROLE"
	ValueTypeGroup                   ValueType = "GROUP"
	ValueTypeTenant                  ValueType = "TENANT"
	ValueTypeAuthorization           ValueType = "AUTHORIZATION"
	ValueTypeProcessInstance         ValueType = "PROCESS_INSTANCE"
	ValueTypeProcessInstanceCreation ValueType = "PROCESS_INSTANCE_CREATION"
	ValueTypeUserTask                ValueType = "USER_TASK"
	ValueTypeIncident                ValueType = "INCIDENT"
	ValueTypeJob                     ValueType = "JOB"
	ValueTypeVariable                ValueType = "VARIABLE"
	ValueTypeVariableDocument        ValueType = "VARIABLE_DOCUMENT"
	ValueTypeClock                   ValueType = "CLOCK"
	ValueTypeUsageMetric             ValueType = "USAGE_METRIC"
	ValueTypeGlobalListenerBatch     ValueType = "GLOBAL_LISTENER_BATCH"
	ValueTypeDecisionEvaluation      ValueType = "DECISION_EVALUATION"
	ValueTypeCheckpoint              ValueType = "CHECKPOINT"
)

// Intent is a closed enumeration of everything a record can say happened
// (events) or was requested (commands). The zero value is IntentUnknown.
type Intent uint16

const (
	IntentUnknown Intent = iota

	FormCreated
	FormDeleted

	MappingRuleCreate
	MappingRuleCreated
	MappingRuleUpdate
	MappingRuleUpdated
	MappingRuleDelete
	MappingRuleDeleted

	RoleCreate
	RoleCreated
	RoleUpdate
	RoleUpdated
	RoleAddEntity
	RoleEntityAdded
	RoleRemoveEntity
	RoleEntityRemoved
	RoleDelete
	RoleDeleted

	GroupCreate
	GroupCreated
	GroupUpdate
	GroupUpdated
	GroupAddEntity
	GroupEntityAdded
	GroupRemoveEntity
	GroupEntityRemoved
	GroupDelete
	GroupDeleted

	TenantCreate
	TenantCreated
	TenantUpdate
	TenantUpdated
	TenantAddEntity
	TenantEntityAdded
	TenantRemoveEntity
	TenantEntityRemoved
	TenantDelete
	TenantDeleted

	AuthorizationCreate
	AuthorizationCreated
	AuthorizationUpdate
	AuthorizationUpdated
	AuthorizationDelete
	AuthorizationDeleted

	ProcessInstanceActivateElement
	ProcessInstanceCompleteElement
	ProcessInstanceTerminateElement
	ProcessInstanceElementActivating
	ProcessInstanceElementActivated
	ProcessInstanceElementCompleting
	ProcessInstanceElementCompleted
	ProcessInstanceElementTerminating
	ProcessInstanceElementTerminated
	ProcessInstanceSequenceFlowTaken
	ProcessInstanceSequenceFlowDeleted
	ProcessInstanceElementMigrated

	ProcessInstanceCreationCreate
	ProcessInstanceCreationCreated

	UserTaskAssign
	UserTaskClaim
	UserTaskUpdate
	UserTaskComplete
	UserTaskCreating
	UserTaskCreated
	UserTaskAssigning
	UserTaskClaiming
	UserTaskAssigned
	UserTaskAssignmentDenied
	UserTaskUpdating
	UserTaskUpdated
	UserTaskUpdateDenied
	UserTaskCorrected
	UserTaskCanceling
	UserTaskCanceled
	UserTaskCompleting
	UserTaskCompleted
	UserTaskCompletionDenied
	UserTaskMigrated

	IncidentResolve
	IncidentCreated
	IncidentResolved
	IncidentMigrated

	JobComplete
	JobFail
	JobCreated
	JobCompleted
	JobFailed
	JobErrorThrown
	JobRetriesUpdated
	JobTimedOut
	JobCanceled

	VariableCreated
	VariableUpdated

	VariableDocumentUpdate
	VariableDocumentUpdating
	VariableDocumentUpdated
	VariableDocumentUpdateDenied

	ClockPin
	ClockReset
	ClockPinned
	ClockResetted

	UsageMetricExport
	UsageMetricExported

	GlobalListenerBatchConfigure
	GlobalListenerBatchConfigured

	DecisionEvaluationEvaluate
	DecisionEvaluationEvaluated
	DecisionEvaluationFailed

	CheckpointCreate
	CheckpointCreated
	CheckpointConfirmedBackup

	intentCount
)

type intentInfo struct {
	valueType ValueType
	name      string
	event     bool
}

func event(vt ValueType, name string) intentInfo   { return intentInfo{vt, name, true} }
func command(vt ValueType, name string) intentInfo { return intentInfo{vt, name, false} }

var intents = [intentCount]intentInfo{
	FormCreated: event(ValueTypeForm, "CREATED"),
	FormDeleted: event(ValueTypeForm, "DELETED"),

	MappingRuleCreate:  command(ValueTypeMappingRule, "CREATE"),
	MappingRuleCreated: event(ValueTypeMappingRule, "CREATED"),
	MappingRuleUpdate:  command(ValueTypeMappingRule, "UPDATE"),
	MappingRuleUpdated: event(ValueTypeMappingRule, "UPDATED"),
	MappingRuleDelete:  command(ValueTypeMappingRule, "DELETE"),
	MappingRuleDeleted: event(ValueTypeMappingRule, "DELETED"),

	RoleCreate:        command(ValueTypeRole, "CREATE"),
	RoleCreated:       event(ValueTypeRole, "CREATED"),
	RoleUpdate:        command(ValueTypeRole, "UPDATE"),
	RoleUpdated:       event(ValueTypeRole, "UPDATED"),
	RoleAddEntity:     command(ValueTypeRole, "ADD_ENTITY"),
	RoleEntityAdded:   event(ValueTypeRole, "ENTITY_ADDED"),
	RoleRemoveEntity:  command(ValueTypeRole, "REMOVE_ENTITY"),
	RoleEntityRemoved: event(ValueTypeRole, "ENTITY_REMOVED"),
	RoleDelete:        command(ValueTypeRole, "DELETE"),
	RoleDeleted:       event(ValueTypeRole, "DELETED"),

	GroupCreate:        command(ValueTypeGroup, "CREATE"),
	GroupCreated:       event(ValueTypeGroup, "CREATED"),
	GroupUpdate:        command(ValueTypeGroup, "UPDATE"),
	GroupUpdated:       event(ValueTypeGroup, "UPDATED"),
	GroupAddEntity:     command(ValueTypeGroup, "ADD_ENTITY"),
	GroupEntityAdded:   event(ValueTypeGroup, "ENTITY_ADDED"),
	GroupRemoveEntity:  command(ValueTypeGroup, "REMOVE_ENTITY"),
	GroupEntityRemoved: event(ValueTypeGroup, "ENTITY_REMOVED"),
	GroupDelete:        command(ValueTypeGroup, "DELETE"),
	GroupDeleted:       event(ValueTypeGroup, "DELETED"),

	TenantCreate:        command(ValueTypeTenant, "CREATE"),
	TenantCreated:       event(ValueTypeTenant, "CREATED"),
	TenantUpdate:        command(ValueTypeTenant, "UPDATE"),
	TenantUpdated:       event(ValueTypeTenant, "UPDATED"),
	TenantAddEntity:     command(ValueTypeTenant, "ADD_ENTITY"),
	TenantEntityAdded:   event(ValueTypeTenant, "ENTITY_ADDED"),
	TenantRemoveEntity:  command(ValueTypeTenant, "REMOVE_ENTITY"),
	TenantEntityRemoved: event(ValueTypeTenant, "ENTITY_REMOVED"),
	TenantDelete:        command(ValueTypeTenant, "DELETE"),
	TenantDeleted:       event(ValueTypeTenant, "DELETED"),

	AuthorizationCreate:  command(ValueTypeAuthorization, "CREATE"),
	AuthorizationCreated: event(ValueTypeAuthorization, "CREATED"),
	AuthorizationUpdate:  command(ValueTypeAuthorization, "UPDATE"),
	AuthorizationUpdated: event(ValueTypeAuthorization, "UPDATED"),
	AuthorizationDelete:  command(ValueTypeAuthorization, "DELETE"),
	AuthorizationDeleted: event(ValueTypeAuthorization, "DELETED"),

	ProcessInstanceActivateElement:     command(ValueTypeProcessInstance, "ACTIVATE_ELEMENT"),
	ProcessInstanceCompleteElement:     command(ValueTypeProcessInstance, "COMPLETE_ELEMENT"),
	ProcessInstanceTerminateElement:    command(ValueTypeProcessInstance, "TERMINATE_ELEMENT"),
	ProcessInstanceElementActivating:   event(ValueTypeProcessInstance, "ELEMENT_ACTIVATING"),
	ProcessInstanceElementActivated:    event(ValueTypeProcessInstance, "ELEMENT_ACTIVATED"),
	ProcessInstanceElementCompleting:   event(ValueTypeProcessInstance, "ELEMENT_COMPLETING"),
	ProcessInstanceElementCompleted:    event(ValueTypeProcessInstance, "ELEMENT_COMPLETED"),
	ProcessInstanceElementTerminating:  event(ValueTypeProcessInstance, "ELEMENT_TERMINATING"),
	ProcessInstanceElementTerminated:   event(ValueTypeProcessInstance, "ELEMENT_TERMINATED"),
	ProcessInstanceSequenceFlowTaken:   event(ValueTypeProcessInstance, "SEQUENCE_FLOW_TAKEN"),
	ProcessInstanceSequenceFlowDeleted: event(ValueTypeProcessInstance, "SEQUENCE_FLOW_DELETED"),
	ProcessInstanceElementMigrated:     event(ValueTypeProcessInstance, "ELEMENT_MIGRATED"),

	ProcessInstanceCreationCreate:  command(ValueTypeProcessInstanceCreation, "CREATE"),
	ProcessInstanceCreationCreated: event(ValueTypeProcessInstanceCreation, "CREATED"),

	UserTaskAssign:           command(ValueTypeUserTask, "ASSIGN"),
	UserTaskClaim:            command(ValueTypeUserTask, "CLAIM"),
	UserTaskUpdate:           command(ValueTypeUserTask, "UPDATE"),
	UserTaskComplete:         command(ValueTypeUserTask, "COMPLETE"),
	UserTaskCreating:         event(ValueTypeUserTask, "CREATING"),
	UserTaskCreated:          event(ValueTypeUserTask, "CREATED"),
	UserTaskAssigning:        event(ValueTypeUserTask, "ASSIGNING"),
	UserTaskClaiming:         event(ValueTypeUserTask, "CLAIMING"),
	UserTaskAssigned:         event(ValueTypeUserTask, "ASSIGNED"),
	UserTaskAssignmentDenied: event(ValueTypeUserTask, "ASSIGNMENT_DENIED"),
	UserTaskUpdating:         event(ValueTypeUserTask, "UPDATING"),
	UserTaskUpdated:          event(ValueTypeUserTask, "UPDATED"),
	UserTaskUpdateDenied:     event(ValueTypeUserTask, "UPDATE_DENIED"),
	UserTaskCorrected:        event(ValueTypeUserTask, "CORRECTED"),
	UserTaskCanceling:        event(ValueTypeUserTask, "CANCELING"),
	UserTaskCanceled:         event(ValueTypeUserTask, "CANCELED"),
	UserTaskCompleting:       event(ValueTypeUserTask, "COMPLETING"),
	UserTaskCompleted:        event(ValueTypeUserTask, "COMPLETED"),
	UserTaskCompletionDenied: event(ValueTypeUserTask, "COMPLETION_DENIED"),
	UserTaskMigrated:         event(ValueTypeUserTask, "MIGRATED"),

	IncidentResolve:  command(ValueTypeIncident, "RESOLVE"),
	IncidentCreated:  event(ValueTypeIncident, "CREATED"),
	IncidentResolved: event(ValueTypeIncident, "RESOLVED"),
	IncidentMigrated: event(ValueTypeIncident, "MIGRATED"),

	JobComplete:       command(ValueTypeJob, "COMPLETE"),
	JobFail:           command(ValueTypeJob, "FAIL"),
	JobCreated:        event(ValueTypeJob, "CREATED"),
	JobCompleted:      event(ValueTypeJob, "COMPLETED"),
	JobFailed:         event(ValueTypeJob, "FAILED"),
	JobErrorThrown:    event(ValueTypeJob, "ERROR_THROWN"),
	JobRetriesUpdated: event(ValueTypeJob, "RETRIES_UPDATED"),
	JobTimedOut:       event(ValueTypeJob, "TIMED_OUT"),
	JobCanceled:       event(ValueTypeJob, "CANCELED"),

	VariableCreated: event(ValueTypeVariable, "CREATED"),
	VariableUpdated: event(ValueTypeVariable, "UPDATED"),

	VariableDocumentUpdate:       command(ValueTypeVariableDocument, "UPDATE"),
	VariableDocumentUpdating:     event(ValueTypeVariableDocument, "UPDATING"),
	VariableDocumentUpdated:      event(ValueTypeVariableDocument, "UPDATED"),
	VariableDocumentUpdateDenied: event(ValueTypeVariableDocument, "UPDATE_DENIED"),

	ClockPin:      command(ValueTypeClock, "PIN"),
	ClockReset:    command(ValueTypeClock, "RESET"),
	ClockPinned:   event(ValueTypeClock, "PINNED"),
	ClockResetted: event(ValueTypeClock, "RESETTED"),

	UsageMetricExport:   command(ValueTypeUsageMetric, "EXPORT"),
	UsageMetricExported: event(ValueTypeUsageMetric, "EXPORTED"),

	GlobalListenerBatchConfigure:  command(ValueTypeGlobalListenerBatch, "CONFIGURE"),
	GlobalListenerBatchConfigured: event(ValueTypeGlobalListenerBatch, "CONFIGURED"),

	DecisionEvaluationEvaluate:  command(ValueTypeDecisionEvaluation, "EVALUATE"),
	DecisionEvaluationEvaluated: event(ValueTypeDecisionEvaluation, "EVALUATED"),
	DecisionEvaluationFailed:    event(ValueTypeDecisionEvaluation, "FAILED"),

	CheckpointCreate:          command(ValueTypeCheckpoint, "CREATE"),
	CheckpointCreated:         event(ValueTypeCheckpoint, "CREATED"),
	CheckpointConfirmedBackup: event(ValueTypeCheckpoint, "CONFIRMED_BACKUP"),
}

var intentsByName = func() map[string]Intent {
	m := make(map[string]Intent, intentCount)
	for i := Intent(1); i < intentCount; i++ {
		m[i.String()] = i
	}
	return m
}()

// AllIntents returns every known intent in declaration order.
func AllIntents() []Intent {
	all := make([]Intent, 0, intentCount-1)
	for i := Intent(1); i < intentCount; i++ {
		all = append(all, i)
	}
	return all
}

// Valid reports whether i is a known, non-zero intent.
func (i Intent) Valid() bool {
	return i > IntentUnknown && i < intentCount
}

// IsEvent reports whether records of this intent describe something that
// already happened and therefore mutate state when applied.
func (i Intent) IsEvent() bool {
	return i.Valid() && intents[i].event
}

// ValueType returns the record kind this intent belongs to.
func (i Intent) ValueType() ValueType {
	if !i.Valid() {
		return ""
	}
	return intents[i].valueType
}

// Name returns the intent name without its value type, e.g. "CREATED".
func (i Intent) Name() string {
	if !i.Valid() {
		return "UNKNOWN"
	}
	return intents[i].name
}

// String returns the qualified name, e.g. "USER_TASK:ASSIGNED".
func (i Intent) String() string {
	if !i.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", uint16(i))
	}
	return string(intents[i].valueType) + ":" + intents[i].name
}

// MarshalText implements encoding.TextMarshaler.
func (i Intent) MarshalText() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("cannot marshal unknown intent %d", uint16(i))
	}
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Intent) UnmarshalText(text []byte) error {
	parsed, err := ParseIntent(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// ParseIntent resolves a qualified intent name such as "FORM:CREATED".
// Matching is case-insensitive.
func ParseIntent(s string) (Intent, error) {
	if i, ok := intentsByName[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return i, nil
	}
	return IntentUnknown, fmt.Errorf("unknown intent %q", s)
}
