package protocol

import "slices"

// BpmnElementType is the kind of flow node an element instance executes.
type BpmnElementType string

const (
	BpmnElementProcess          BpmnElementType = "PROCESS"
	BpmnElementSubProcess       BpmnElementType = "SUB_PROCESS"
	BpmnElementStartEvent       BpmnElementType = "START_EVENT"
	BpmnElementEndEvent         BpmnElementType = "END_EVENT"
	BpmnElementServiceTask      BpmnElementType = "SERVICE_TASK"
	BpmnElementUserTask         BpmnElementType = "USER_TASK"
	BpmnElementExclusiveGateway BpmnElementType = "EXCLUSIVE_GATEWAY"
	BpmnElementParallelGateway  BpmnElementType = "PARALLEL_GATEWAY"
	BpmnElementInclusiveGateway BpmnElementType = "INCLUSIVE_GATEWAY"
	BpmnElementSequenceFlow     BpmnElementType = "SEQUENCE_FLOW"
)

// ProcessInstanceRecord describes an element instance, or a sequence flow
// when the intent is SEQUENCE_FLOW_TAKEN or SEQUENCE_FLOW_DELETED. For
// sequence flows ElementID is the flow id and the Target fields describe the
// element the flow leads to.
type ProcessInstanceRecord struct {
	BpmnProcessID            string          `json:"bpmn_process_id"`
	Version                  int32           `json:"version"`
	ProcessDefinitionKey     int64           `json:"process_definition_key"`
	ProcessInstanceKey       int64           `json:"process_instance_key"`
	ElementID                string          `json:"element_id"`
	FlowScopeKey             int64           `json:"flow_scope_key"`
	BpmnElementType          BpmnElementType `json:"bpmn_element_type"`
	ParentProcessInstanceKey int64           `json:"parent_process_instance_key,omitempty"`
	ParentElementInstanceKey int64           `json:"parent_element_instance_key,omitempty"`
	TenantID                 string          `json:"tenant_id"`
	TargetElementID          string          `json:"target_element_id,omitempty"`
	TargetIncomingFlows      int32           `json:"target_incoming_flows,omitempty"`
}

func (*ProcessInstanceRecord) ValueType() ValueType { return ValueTypeProcessInstance }

// TargetsJoiningGateway reports whether a sequence flow leads into a gateway
// that has to wait for more than one incoming flow.
func (r *ProcessInstanceRecord) TargetsJoiningGateway() bool {
	return r.TargetElementID != "" && r.TargetIncomingFlows > 1
}

// ProcessInstanceCreationRecord is written when a root process instance is
// started.
type ProcessInstanceCreationRecord struct {
	BpmnProcessID        string   `json:"bpmn_process_id"`
	Version              int32    `json:"version"`
	ProcessDefinitionKey int64    `json:"process_definition_key"`
	ProcessInstanceKey   int64    `json:"process_instance_key"`
	TenantID             string   `json:"tenant_id"`
	Variables            Document `json:"variables,omitempty"`
}

func (*ProcessInstanceCreationRecord) ValueType() ValueType {
	return ValueTypeProcessInstanceCreation
}

// User task attribute names used in ChangedAttributes.
const (
	AttributeAssignee        = "assignee"
	AttributeCandidateGroups = "candidate_groups"
	AttributeCandidateUsers  = "candidate_users"
	AttributeDueDate         = "due_date"
	AttributeFollowUpDate    = "follow_up_date"
	AttributePriority        = "priority"
)

// UserTaskAttributes lists every attribute that can be changed by an
// assignment, update or correction.
var UserTaskAttributes = []string{
	AttributeAssignee,
	AttributeCandidateGroups,
	AttributeCandidateUsers,
	AttributeDueDate,
	AttributeFollowUpDate,
	AttributePriority,
}

// UserTaskRecord is the live record of a user task, and also the payload of
// every user task lifecycle event.
type UserTaskRecord struct {
	UserTaskKey              int64             `json:"user_task_key"`
	Assignee                 string            `json:"assignee,omitempty"`
	CandidateGroups          []string          `json:"candidate_groups,omitempty"`
	CandidateUsers           []string          `json:"candidate_users,omitempty"`
	DueDate                  string            `json:"due_date,omitempty"`
	FollowUpDate             string            `json:"follow_up_date,omitempty"`
	Priority                 int32             `json:"priority"`
	FormKey                  int64             `json:"form_key,omitempty"`
	ExternalFormReference    string            `json:"external_form_reference,omitempty"`
	CustomHeaders            map[string]string `json:"custom_headers,omitempty"`
	Variables                Document          `json:"variables,omitempty"`
	ChangedAttributes        []string          `json:"changed_attributes,omitempty"`
	Action                   string            `json:"action,omitempty"`
	Actor                    string            `json:"actor,omitempty"`
	DeniedReason             string            `json:"denied_reason,omitempty"`
	ElementID                string            `json:"element_id"`
	ElementInstanceKey       int64             `json:"element_instance_key"`
	ProcessInstanceKey       int64             `json:"process_instance_key"`
	ProcessDefinitionKey     int64             `json:"process_definition_key"`
	ProcessDefinitionVersion int32             `json:"process_definition_version"`
	BpmnProcessID            string            `json:"bpmn_process_id"`
	TenantID                 string            `json:"tenant_id"`
	CreationTimestamp        int64             `json:"creation_timestamp,omitempty"`
	RequestID                int64             `json:"request_id,omitempty"`
	RequestStreamID          int32             `json:"request_stream_id,omitempty"`
}

func (*UserTaskRecord) ValueType() ValueType { return ValueTypeUserTask }

// Clone returns a deep copy of the record.
func (r *UserTaskRecord) Clone() *UserTaskRecord {
	out := *r
	out.CandidateGroups = slices.Clone(r.CandidateGroups)
	out.CandidateUsers = slices.Clone(r.CandidateUsers)
	out.ChangedAttributes = slices.Clone(r.ChangedAttributes)
	out.Variables = r.Variables.Clone()
	if r.CustomHeaders != nil {
		out.CustomHeaders = make(map[string]string, len(r.CustomHeaders))
		for k, v := range r.CustomHeaders {
			out.CustomHeaders[k] = v
		}
	}
	return &out
}

// CopyAttributes overwrites the named attributes of r with those of src.
// Unknown attribute names are ignored.
func (r *UserTaskRecord) CopyAttributes(src *UserTaskRecord, attributes []string) {
	for _, attr := range attributes {
		switch attr {
		case AttributeAssignee:
			r.Assignee = src.Assignee
		case AttributeCandidateGroups:
			r.CandidateGroups = slices.Clone(src.CandidateGroups)
		case AttributeCandidateUsers:
			r.CandidateUsers = slices.Clone(src.CandidateUsers)
		case AttributeDueDate:
			r.DueDate = src.DueDate
		case AttributeFollowUpDate:
			r.FollowUpDate = src.FollowUpDate
		case AttributePriority:
			r.Priority = src.Priority
		}
	}
}

// NoCatchEventFound replaces a job's element id when an error thrown by the
// job has no matching catch event.
const NoCatchEventFound = "NO_CATCH_EVENT_FOUND"

// IncidentRecord describes an incident raised for an element or a job.
type IncidentRecord struct {
	ErrorType            string `json:"error_type"`
	ErrorMessage         string `json:"error_message,omitempty"`
	BpmnProcessID        string `json:"bpmn_process_id"`
	ProcessDefinitionKey int64  `json:"process_definition_key"`
	ProcessInstanceKey   int64  `json:"process_instance_key"`
	ElementID            string `json:"element_id"`
	ElementInstanceKey   int64  `json:"element_instance_key"`
	JobKey               int64  `json:"job_key,omitempty"`
	VariableScopeKey     int64  `json:"variable_scope_key,omitempty"`
	TenantID             string `json:"tenant_id"`
}

func (*IncidentRecord) ValueType() ValueType { return ValueTypeIncident }

// JobRecord describes a unit of work handed to an external worker.
type JobRecord struct {
	Type                     string            `json:"type"`
	Worker                   string            `json:"worker,omitempty"`
	Retries                  int32             `json:"retries"`
	RetryBackoff             int64             `json:"retry_backoff,omitempty"`
	Deadline                 int64             `json:"deadline,omitempty"`
	ErrorMessage             string            `json:"error_message,omitempty"`
	ErrorCode                string            `json:"error_code,omitempty"`
	ElementID                string            `json:"element_id"`
	ElementInstanceKey       int64             `json:"element_instance_key"`
	ProcessInstanceKey       int64             `json:"process_instance_key"`
	ProcessDefinitionKey     int64             `json:"process_definition_key"`
	ProcessDefinitionVersion int32             `json:"process_definition_version"`
	BpmnProcessID            string            `json:"bpmn_process_id"`
	TenantID                 string            `json:"tenant_id"`
	CustomHeaders            map[string]string `json:"custom_headers,omitempty"`
	Variables                Document          `json:"variables,omitempty"`
}

func (*JobRecord) ValueType() ValueType { return ValueTypeJob }

// VariableRecord sets a single variable in a scope. Value holds canonical
// JSON text.
type VariableRecord struct {
	Name                 string `json:"name"`
	Value                string `json:"value"`
	ScopeKey             int64  `json:"scope_key"`
	ProcessInstanceKey   int64  `json:"process_instance_key"`
	ProcessDefinitionKey int64  `json:"process_definition_key"`
	BpmnProcessID        string `json:"bpmn_process_id"`
	TenantID             string `json:"tenant_id"`
}

func (*VariableRecord) ValueType() ValueType { return ValueTypeVariable }

// VariableDocumentRecord is a batched variable update targeting a scope.
type VariableDocumentRecord struct {
	ScopeKey        int64    `json:"scope_key"`
	UpdateSemantics string   `json:"update_semantics,omitempty"`
	Variables       Document `json:"variables,omitempty"`
	TenantID        string   `json:"tenant_id"`
}

func (*VariableDocumentRecord) ValueType() ValueType { return ValueTypeVariableDocument }

// DecisionEvaluationRecord describes a business rule evaluation.
type DecisionEvaluationRecord struct {
	DecisionKey              int64  `json:"decision_key"`
	DecisionID               string `json:"decision_id"`
	DecisionVersion          int32  `json:"decision_version"`
	ProcessInstanceKey       int64  `json:"process_instance_key,omitempty"`
	ElementInstanceKey       int64  `json:"element_instance_key,omitempty"`
	TenantID                 string `json:"tenant_id"`
	EvaluationFailureMessage string `json:"evaluation_failure_message,omitempty"`
}

func (*DecisionEvaluationRecord) ValueType() ValueType { return ValueTypeDecisionEvaluation }
